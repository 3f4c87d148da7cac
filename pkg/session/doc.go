// Package session keeps chat transcripts, the active-chat pointer and the
// rendered view consistent across new, continue and load invocations.
//
// Invariants:
// - Nothing is written before an exchange succeeds, except on load.
// - A successful exchange is persisted as transcript, then pointer, then view.
// - Transcript files are replaced atomically and never deleted.
// - A pointer whose target is missing falls back to a new session.
//
// Usage:
//
//	mgr, _ := session.NewManager(session.Config{
//		Store:    session.NewTranscriptStore("history"),
//		Pointer:  session.NewFilePointer("history/active_chat.json"),
//		Provider: provider,
//		Renderer: render.NewFileRenderer("output.md"),
//		Model:    "codestral-latest",
//	})
//	result, err := mgr.Run(ctx, session.Request{Prompt: "hello"})
package session
