// Package aligned is the client for the aligned diarization service: a
// sidecar that transcribes, aligns words, and labels speakers. It supports
// batch requests and a server-sent events stream of segments.
package aligned
