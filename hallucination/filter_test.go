package hallucination

import (
	"strings"
	"testing"

	"github.com/kbukum/scribe/transcription"
)

func TestCleanCollapsesFrenchRepeats(t *testing.T) {
	in := "Bonjour à tous. Bonjour à tous. Bonjour à tous. Parlons du budget. Merci."
	got, report := Analyze(in)

	want := "Bonjour à tous. Parlons du budget. Merci."
	if got != want {
		t.Errorf("Clean = %q, want %q", got, want)
	}
	if report.Sentences != 5 || report.Removed != 2 || report.Rejected {
		t.Errorf("report = %+v", report)
	}
}

func TestCleanRejectsRepetitionLoops(t *testing.T) {
	in := strings.Repeat("Thank you for watching. ", 20)
	got, report := Analyze(in)
	if got != Marker {
		t.Errorf("Clean = %q, want marker", got)
	}
	if !report.Rejected || report.Removed != 19 {
		t.Errorf("report = %+v", report)
	}
}

func TestCleanThreshold(t *testing.T) {
	tests := []struct {
		name   string
		repeat int
		tail   string
		marker bool
	}{
		{"five identical sentences are never rejected", 5, "", false},
		{"six identical sentences stay under ratio", 6, "", false},
		{"eleven identical sentences exceed ratio", 11, "", true},
		{"ten identical plus one other is exactly 9/11", 10, "Goodbye.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.Repeat("Okay. ", tt.repeat) + tt.tail
			if got := Clean(in) == Marker; got != tt.marker {
				t.Errorf("marker = %v, want %v (text %q)", got, tt.marker, Clean(in))
			}
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"no punctuation at all",
		"Hello. Hello! HELLO? hello",
		"It costs 3.14 dollars. It costs 3.14 dollars. Fine.",
		"\"Stop.\" \"Stop.\" she said.",
		"はい。はい。そうです。",
		"Wait... wait... what?! What?!",
		"A. B. A. B.",
		"... ... hello",
		strings.Repeat("Okay. ", 11),
		strings.Repeat("Okay. ", 10) + "Done.",
		Marker,
		"First line.\nFirst line.\n\nSecond line.",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCleanKeepsNonConsecutiveRepeats(t *testing.T) {
	if got := Clean("A. B. A. B."); got != "A. B. A. B." {
		t.Errorf("Clean = %q", got)
	}
}

func TestCleanComparesNormalizedForms(t *testing.T) {
	if got := Clean("Hello, world! hello world. HELLO WORLD?"); got != "Hello, world!" {
		t.Errorf("Clean = %q", got)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One. ", "Two! ", "Three?"}},
		{"Pi is 3.14 today. Yes", []string{"Pi is 3.14 today. ", "Yes"}},
		{"He said \"no.\" Then left.", []string{"He said \"no.\" ", "Then left."}},
		{"はい。そうです", []string{"はい。", "そうです"}},
		{"Really?! Yes…", []string{"Really?! ", "Yes…"}},
	}
	for _, tt := range tests {
		got := Sentences(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if strings.Join(got, "") != tt.in {
			t.Errorf("Sentences(%q) does not concatenate back", tt.in)
		}
	}
}

func TestCleanTranscriptSegments(t *testing.T) {
	tr := &transcription.Transcript{
		Text: "ignored",
		Segments: []transcription.Segment{
			{Start: 0, End: 1, Speaker: "SPEAKER_00", Text: "Hello everyone. Hello everyone."},
			{Start: 1, End: 2, Speaker: "SPEAKER_00", Text: "Hello everyone."},
			{Start: 2, End: 3, Speaker: "SPEAKER_01", Text: "Hello everyone."},
			{Start: 3, End: 4, Speaker: "SPEAKER_01", Text: "  "},
			{Start: 4, End: 5, Speaker: "SPEAKER_00", Text: "Let's start."},
		},
	}
	got, report := CleanTranscript(tr)

	if len(got.Segments) != 3 {
		t.Fatalf("segments = %+v", got.Segments)
	}
	if got.Segments[0].Text != "Hello everyone." || got.Segments[1].Speaker != "SPEAKER_01" {
		t.Errorf("segments = %+v", got.Segments)
	}
	if got.Text != "Hello everyone. Hello everyone. Let's start." {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Flagged || report.Rejected {
		t.Error("transcript should not be flagged")
	}
	if len(tr.Segments) != 5 {
		t.Error("input must not be modified")
	}

	again, _ := CleanTranscript(got)
	if again.Text != got.Text || len(again.Segments) != len(got.Segments) {
		t.Errorf("CleanTranscript not idempotent: %+v vs %+v", again, got)
	}
}

func TestCleanTranscriptFlagsLoop(t *testing.T) {
	var segs []transcription.Segment
	for i := 0; i < 12; i++ {
		speaker := "SPEAKER_00"
		if i%2 == 1 {
			speaker = "SPEAKER_01"
		}
		segs = append(segs, transcription.Segment{Start: float64(i), End: float64(i + 1), Speaker: speaker, Text: "Subscribe."})
	}
	got, report := CleanTranscript(&transcription.Transcript{Segments: segs})
	if !got.Flagged || got.Text != Marker || got.Segments != nil {
		t.Errorf("transcript = %+v", got)
	}
	if !report.Rejected {
		t.Errorf("report = %+v", report)
	}
}

func TestCleanTranscriptFlagsSingleSpeakerLoop(t *testing.T) {
	tests := []struct {
		name    string
		speaker string
		text    string
	}{
		{"unlabelled with text", "", strings.TrimSpace(strings.Repeat("Thank you for watching. ", 20))},
		{"unlabelled without text", "", ""},
		{"one speaker", "SPEAKER_00", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var segs []transcription.Segment
			for i := range 20 {
				segs = append(segs, transcription.Segment{
					Start: float64(i), End: float64(i + 1), Speaker: tt.speaker, Text: "Thank you for watching.",
				})
			}
			got, report := CleanTranscript(&transcription.Transcript{Text: tt.text, Segments: segs})
			if !got.Flagged || got.Text != Marker || got.Segments != nil {
				t.Errorf("flagged=%v text=%q segments=%d", got.Flagged, got.Text, len(got.Segments))
			}
			if !report.Rejected || report.Sentences != 20 || report.Removed != 19 {
				t.Errorf("report = %+v", report)
			}
		})
	}
}

func TestCleanTranscriptFlagsLoopInText(t *testing.T) {
	tr := &transcription.Transcript{
		Text:     strings.Repeat("Subscribe. ", 10),
		Segments: []transcription.Segment{{Start: 0, End: 30, Text: "Subscribe."}},
	}
	got, _ := CleanTranscript(tr)
	if !got.Flagged || got.Text != Marker {
		t.Errorf("transcript = %+v", got)
	}
}

func TestCleanTranscriptCollapsesShortRepeats(t *testing.T) {
	segs := []transcription.Segment{
		{Start: 0, End: 1, Text: "Okay."},
		{Start: 1, End: 2, Text: "Okay."},
		{Start: 2, End: 3, Text: "Next item."},
	}
	got, report := CleanTranscript(&transcription.Transcript{Segments: segs})
	if got.Flagged || report.Rejected {
		t.Fatalf("short repeat flagged: %+v", report)
	}
	if len(got.Segments) != 2 || got.Text != "Okay. Next item." {
		t.Errorf("transcript = %+v", got)
	}
}

func TestCleanTranscriptWithoutSegments(t *testing.T) {
	got, _ := CleanTranscript(&transcription.Transcript{Text: "Yes. Yes. No."})
	if got.Text != "Yes. No." {
		t.Errorf("Text = %q", got.Text)
	}
}
