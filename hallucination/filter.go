package hallucination

import (
	"strings"
	"unicode"
)

// Marker replaces a transcript rejected as repetitive output.
const Marker = "[Transcription failed: the model produced repetitive output. Retry with a different model.]"

const (
	// minSentences is the sentence count a text must exceed before it can
	// be rejected as a whole.
	minSentences = 5
	// maxRemovedRatio is the removed/total ratio above which a text is
	// rejected.
	maxRemovedRatio = 0.9
)

// Report describes what Clean did to a text.
type Report struct {
	Sentences int
	Removed   int
	// Rejected means the text was replaced by Marker.
	Rejected bool
}

// Ratio is the fraction of sentences removed.
func (r Report) Ratio() float64 {
	if r.Sentences == 0 {
		return 0
	}
	return float64(r.Removed) / float64(r.Sentences)
}

// Clean collapses consecutive repeated sentences. A sentence is dropped when
// its normalized form equals that of the previous kept sentence. When more
// than 90% of more than five sentences are dropped the text is replaced by
// Marker. Clean is idempotent.
func Clean(text string) string {
	out, _ := Analyze(text)
	return out
}

// Analyze is Clean that also reports what was removed.
func Analyze(text string) (string, Report) {
	pieces := Sentences(text)
	report := Report{Sentences: len(pieces)}

	var b strings.Builder
	prev, havePrev := "", false
	for _, p := range pieces {
		norm := normalize(p)
		if havePrev && norm == prev {
			report.Removed++
			continue
		}
		b.WriteString(p)
		prev, havePrev = norm, true
	}

	if report.Sentences > minSentences && report.Ratio() > maxRemovedRatio {
		report.Rejected = true
		return Marker, report
	}
	return strings.TrimSpace(b.String()), report
}

// Sentences splits text after each run of terminal punctuation. Latin
// terminators end a sentence only when followed by whitespace or the end of
// the text, so "3.14" and "e.g.x" stay whole; CJK terminators always end
// one. Closing quotes and brackets after a terminator stay with the
// sentence, as does the whitespace that follows. Concatenating the result
// yields text unchanged.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); {
		if !isTerminator(runes[i]) {
			i++
			continue
		}
		cjk := false
		for i < len(runes) && isTerminator(runes[i]) {
			cjk = cjk || isCJKTerminator(runes[i])
			i++
		}
		for i < len(runes) && isCloser(runes[i]) {
			i++
		}
		if !cjk && i < len(runes) && !unicode.IsSpace(runes[i]) {
			continue
		}
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		out = append(out, string(runes[start:i]))
		start = i
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return isCJKTerminator(r)
}

func isCJKTerminator(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '»', ')', ']', '」', '』':
		return true
	}
	return false
}

// normalize lowercases, drops punctuation and symbols, and collapses
// whitespace.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
