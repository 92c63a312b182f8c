package transcription

import (
	"math"
	"slices"
	"strings"
)

// Normalize converts a backend result into the canonical Transcript shape.
//
// Segment text is trimmed and empty segments dropped, negative or NaN
// start times clamp to zero, End is raised to Start when it regresses, and
// segments are stably sorted by Start. When the backend produced no text
// of its own, Text is derived from the segments.
func Normalize(res *Result, kind BackendKind, model ModelID) *Transcript {
	t := &Transcript{Backend: kind, Model: model}
	if res == nil {
		return t
	}
	t.Language = res.Language
	t.Device = res.Device
	t.Timing = res.Timing

	segments := make([]Segment, 0, len(res.Segments))
	for _, s := range res.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 || math.IsNaN(s.Start) {
			s.Start = 0
		}
		if s.End < s.Start || math.IsNaN(s.End) {
			s.End = s.Start
		}
		segments = append(segments, s)
	}
	SortSegments(segments)
	t.Segments = segments

	t.Text = strings.TrimSpace(res.Text)
	if t.Text == "" {
		t.Text = JoinSegments(segments)
	}
	return t
}

// SortSegments stably sorts segments by start time.
func SortSegments(segments []Segment) {
	slices.SortStableFunc(segments, func(a, b Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

// Shift returns a copy of s moved later by offset seconds.
func (s Segment) Shift(offset float64) Segment {
	s.Start += offset
	s.End += offset
	return s
}
