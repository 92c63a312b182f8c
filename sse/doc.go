// Package sse writes Server-Sent Events responses.
//
// A Writer prepares the response for a long-lived stream (event-stream
// headers, no write deadline, proxy buffering off) and then emits named
// JSON events:
//
//	w, err := sse.NewWriter(rw)
//	if err != nil {
//		return err
//	}
//	_ = w.Send("segment", seg)
package sse
