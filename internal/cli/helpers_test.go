package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const batchBody = `{
	"id": "cmpl-1",
	"object": "chat.completion",
	"created": 1769000000,
	"model": "codestral-latest",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
}`

var streamBody = strings.Join([]string{
	`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hi"}}]}`,
	`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":" there"}}]}`,
	`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`,
	`data: [DONE]`,
}, "\n\n") + "\n\n"

// fakeAPI emulates the chat completions endpoint in both modes
type fakeAPI struct {
	server *httptest.Server
	calls  atomic.Int32
	status int
	// streamed records the stream flag of the last request
	streamed atomic.Bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{status: http.StatusOK}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.calls.Add(1)
		if api.status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(api.status)
			_, _ = io.WriteString(w, `{"error": {"message": "boom"}}`)
			return
		}

		var body struct {
			Stream bool `json:"stream"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		api.streamed.Store(body.Stream)

		if body.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, streamBody)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, batchBody)
	}))
	t.Cleanup(api.server.Close)
	return api
}

type cliEnv struct {
	dir    string
	config string
	api    *fakeAPI
}

// newCLIEnv runs the test in an empty working directory with a config file
// pointing at a fake API and no API key in the environment
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	t.Setenv("API_KEY", "")
	t.Setenv("CHATLINE_API_API_KEY", "")

	api := newFakeAPI(t)
	cfgPath := filepath.Join(dir, "config.json")
	cfg := fmt.Sprintf(`{"api": {"base_url": %q}}`, api.server.URL+"/")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0600))

	return &cliEnv{dir: dir, config: cfgPath, api: api}
}

// execute runs the root command with fresh flag state
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))

	err := ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
