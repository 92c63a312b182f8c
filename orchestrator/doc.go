// Package orchestrator is the caller-facing facade over routing, execution,
// streaming, and enhancement.
//
// An Orchestrator owns two operation slots, one for transcription and one
// for enhancement. Starting an operation in a slot supersedes the one
// already running there, and Cancel stops it explicitly:
//
//	o := orchestrator.New(orchestrator.Deps{...})
//	t, err := o.Transcribe(ctx, orchestrator.TranscribeRequest{Model: "base", Audio: a})
//	e, err := o.Enhance(ctx, t.Text, enhance.Prompts{}, "llama3.2")
package orchestrator
