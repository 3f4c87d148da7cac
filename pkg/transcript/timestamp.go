package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05"

// Timestamp is a local wall-clock time serialized without a zone offset and
// with microsecond precision. The fraction is omitted when it is zero.
// A parsed timestamp is written back exactly as it was read.
type Timestamp struct {
	time.Time
	text string
}

// NewTimestamp truncates t to microseconds in the local zone
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Round(0).Local().Truncate(time.Microsecond)}
}

// String formats the timestamp as 2006-01-02T15:04:05[.000000], or returns
// the text it was parsed from
func (ts Timestamp) String() string {
	if ts.text != "" {
		return ts.text
	}
	s := ts.Time.Format(timestampLayout)
	if us := ts.Time.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// ParseTimestamp accepts the zone-less layout (any fraction) or RFC 3339
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(timestampLayout, s, time.Local)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	ts := NewTimestamp(t)
	ts.text = s
	return ts, nil
}

// MarshalJSON implements json.Marshaler
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
