// Package stream consumes streaming transcriptions. A Reassembler
// forwards segments to a live sink as they arrive and assembles the final
// sorted transcript; a LiveChunker runs fixed-duration chunks of a
// recording concurrently and merges them by chunk index.
package stream
