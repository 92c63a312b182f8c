package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderEvents(t *testing.T) {
	stream := ": keepalive\n" +
		"event: progress\ndata: {\"progress\":0.5}\n\n" +
		"event: segment\r\nid: 7\r\ndata: line one\r\ndata: line two\r\n\r\n" +
		"data: trailing"

	r := NewReader(io.NopCloser(strings.NewReader(stream)))
	defer r.Close()

	want := []Event{
		{Event: "progress", Data: `{"progress":0.5}`},
		{Event: "segment", ID: "7", Data: "line one\nline two"},
		{Data: "trailing"},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if *got != w {
			t.Errorf("event %d = %+v, want %+v", i, *got, w)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderEmptyStream(t *testing.T) {
	r := NewReader(io.NopCloser(strings.NewReader("\n\n")))
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
