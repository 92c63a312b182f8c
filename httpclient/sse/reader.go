// Package sse reads Server-Sent Events streams.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line. Segment payloads with long text fit
// well within it.
const maxLineSize = 1 << 20

// Event is one server-sent event.
type Event struct {
	Event string
	// Data joins multi-line data fields with newlines.
	Data string
	ID   string
}

// Reader reads events one at a time.
type Reader interface {
	// Next returns io.EOF when the stream ends.
	Next() (*Event, error)
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates a Reader over body.
func NewReader(body io.ReadCloser) Reader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &reader{scanner: s, body: body}
}

func (r *reader) Next() (*Event, error) {
	var event Event
	var data []string

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if len(data) > 0 {
				event.Data = strings.Join(data, "\n")
				return &event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		event.Data = strings.Join(data, "\n")
		return &event, nil
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}
