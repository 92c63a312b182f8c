// Package transcription holds the vocabulary shared by scribe's routing,
// execution and streaming packages: models and their tags, backend kinds
// and devices, segments and transcripts, the Backend and Streamer
// contracts, and the error taxonomy every backend failure is classified
// into.
//
// Concrete backends live in subpackages:
//
//   - transcription/aligned: aligned-diarization HTTP service
//   - transcription/whisper: heavy inference HTTP server
//   - transcription/onnx: in-process ONNX Runtime inference
//   - transcription/cloud: OpenAI-compatible cloud audio API
package transcription
