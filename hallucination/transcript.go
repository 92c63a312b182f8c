package hallucination

import "github.com/kbukum/scribe/transcription"

// CleanTranscript checks the transcript as a whole before anything is
// collapsed, so a loop spread over many segments counts every repetition.
// The check covers both the joined segment texts and the backend's own
// Text; either one being rejected sets Flagged, replaces Text with Marker
// and clears Segments. Otherwise each segment's text is cleaned, segments
// left empty or rejected are dropped, as is a segment repeating the
// previous kept one from the same speaker, and Text is rebuilt from what
// remains.
//
// The input is not modified. Applying CleanTranscript twice gives the same
// result as applying it once.
func CleanTranscript(t *transcription.Transcript) (*transcription.Transcript, Report) {
	out := *t
	if t.Flagged {
		out.Segments = nil
		out.Text = Marker
		return &out, Report{Rejected: true}
	}

	text, report := Analyze(t.Text)
	if len(t.Segments) > 0 {
		_, whole := Analyze(transcription.JoinSegments(t.Segments))
		if whole.Rejected || !report.Rejected {
			report = whole
		}
	}
	if report.Rejected {
		out.Flagged = true
		out.Segments = nil
		out.Text = Marker
		return &out, report
	}

	segments := make([]transcription.Segment, 0, len(t.Segments))
	prevNorm, prevSpeaker := "", ""
	for _, s := range t.Segments {
		s.Text = Clean(s.Text)
		if s.Text == "" || s.Text == Marker {
			continue
		}
		norm := normalize(s.Text)
		if len(segments) > 0 && norm == prevNorm && sameSpeaker(s.Speaker, prevSpeaker) {
			continue
		}
		segments = append(segments, s)
		prevNorm, prevSpeaker = norm, s.Speaker
	}
	out.Segments = segments
	if len(segments) > 0 {
		out.Text = transcription.JoinSegments(segments)
	} else {
		out.Text = text
	}
	return &out, report
}

func sameSpeaker(a, b string) bool {
	return a == "" || b == "" || a == b
}
