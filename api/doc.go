// Package api exposes the orchestrator over HTTP.
//
// Routes, all under /v1:
//
//	GET    /device                   capability profile (?refresh=true re-measures)
//	GET    /backends                 probed backends, or the plan for ?model=&diarize=
//	POST   /transcriptions           multipart audio, returns the transcript
//	POST   /transcriptions/stream    multipart audio, answers with an event stream
//	POST   /enhancements             title and summary for a transcript text
//	GET    /operations/:slot         the running operation in a slot
//	DELETE /operations/:slot         cancel it
//
// Errors use the errors package response body with the status carried by
// the error.
package api
