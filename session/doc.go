// Package session caches the single in-process model session. It is the
// only shared mutable resource in the transcription path: one mutex guards
// load and eviction, and leases keep a session open while inference runs
// on it.
package session
