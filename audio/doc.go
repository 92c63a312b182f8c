// Package audio decodes WAV payloads into the mono 16 kHz PCM used for
// in-process inference and re-encodes PCM chunks for live transcription.
package audio
