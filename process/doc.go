// Package process runs short-lived helper binaries, such as the GPU query
// tools the device profiler shells out to, with context-driven termination.
package process
