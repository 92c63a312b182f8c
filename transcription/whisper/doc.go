// Package whisper talks to the heavy inference server, a faster-whisper
// HTTP service that runs models too large for in-process inference. Its
// multipart form and JSON response are shared with the aligned service.
package whisper
