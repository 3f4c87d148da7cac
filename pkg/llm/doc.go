// Package llm exchanges a conversation history with a remote completion API
// and normalizes the reply into content plus token usage.
//
// Invariants:
// - One Call issues exactly one request; nothing is retried.
// - Any transport failure is reported as a *TransportError (errors.Is ErrTransport).
// - Streaming and batched calls return the same Response shape; streamed
//   fragments reach Request.OnDelta in arrival order before Call returns.
// - Stream chunks that fail to parse are skipped, never fatal.
//
// Usage:
//
//	p, _ := llm.NewProvider(llm.ProviderConfig{Provider: "openai", APIKey: key})
//	resp, _ := p.Call(ctx, llm.Request{
//		Model:     "codestral-latest",
//		Messages:  []llm.Message{{Role: "user", Content: "hello"}},
//		MaxTokens: 8192,
//	})
//	_ = resp.Content
package llm
