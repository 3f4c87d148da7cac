package llm

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/harun/chatline/internal/observability"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// doneSentinel terminates a chat completion event stream
const doneSentinel = "[DONE]"

type chunkKind int

const (
	chunkSkip chunkKind = iota
	chunkOK
)

// chunk is the parse result of one stream event: either a usable chunk
// carrying an optional fragment and usage, or a chunk to skip.
type chunk struct {
	kind     chunkKind
	fragment string
	usage    *Usage
}

// parseChunk never fails; malformed data yields chunkSkip
func parseChunk(data []byte) chunk {
	if !gjson.ValidBytes(data) {
		return chunk{kind: chunkSkip}
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return chunk{kind: chunkSkip}
	}

	c := chunk{
		kind:     chunkOK,
		fragment: parsed.Get("choices.0.delta.content").String(),
	}

	if u := parsed.Get("usage"); u.IsObject() && len(u.Map()) > 0 {
		c.usage = &Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}

	return c
}

// eventTerminator is appended to the body so that a final event the server
// did not close with a blank line is still dispatched
const eventTerminator = "\n\n"

// terminatedBody reads the response body followed by eventTerminator
type terminatedBody struct {
	io.Reader
	io.Closer
}

// newStreamDecoder returns an event decoder over res. Blank events produced
// by the extra terminator carry no data and are ignored by consumeStream.
func newStreamDecoder(res *http.Response) ssestream.Decoder {
	if res == nil || res.Body == nil {
		return nil
	}
	body := res.Body
	framed := *res
	framed.Body = terminatedBody{
		Reader: io.MultiReader(body, strings.NewReader(eventTerminator)),
		Closer: body,
	}
	return ssestream.NewDecoder(&framed)
}

// consumeStream concatenates fragments until the sentinel or the end of the
// body. Every data line is a chunk of its own, also when a server sends
// several lines without a blank line between them. The last usage object
// seen wins since servers report it cumulatively.
func consumeStream(decoder ssestream.Decoder, request Request) (*Response, error) {
	defer decoder.Close()

	var content strings.Builder
	var usage Usage
	chunks := 0

events:
	for decoder.Next() {
		for _, line := range bytes.Split(decoder.Event().Data, []byte("\n")) {
			data := bytes.TrimSpace(line)
			if len(data) == 0 {
				continue
			}
			if string(data) == doneSentinel {
				break events
			}
			chunks++

			c := parseChunk(data)
			if c.kind == chunkSkip {
				observability.RecordSkippedChunk()
				log.Debug().Int("chunk", chunks).Int("bytes", len(data)).Msg("Skipping malformed stream chunk")
				continue
			}

			if c.fragment != "" {
				content.WriteString(c.fragment)
				request.emit(c.fragment)
			}
			if c.usage != nil {
				usage = *c.usage
			}
		}
	}

	if err := decoder.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}

	log.Debug().Int("chunks", chunks).Int("content_len", content.Len()).Msg("Stream finished")

	return &Response{
		Content: content.String(),
		Usage:   usage,
	}, nil
}
