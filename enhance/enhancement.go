package enhance

import (
	"regexp"
	"strings"
	"unicode"
)

// Source names the tier that produced an Enhancement.
type Source string

const (
	SourceLocalLLM      Source = "local_llm"
	SourceCloudSemantic Source = "cloud_semantic"
	SourceRuleBased     Source = "rule_based"
)

// MaxTitleRunes bounds every title.
const MaxTitleRunes = 60

// UntitledTitle is the title of an empty transcript.
const UntitledTitle = "Untitled recording"

// Enhancement is the title and summary of one finished transcript.
type Enhancement struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  Source `json:"source"`
}

// Prompts are the instructions sent to the language model tiers. Empty
// fields use the defaults.
type Prompts struct {
	// Title asks the local model for a title.
	Title string `json:"title,omitempty" yaml:"title"`
	// Summary asks the local model for a summary.
	Summary string `json:"summary,omitempty" yaml:"summary"`
	// Semantic asks the cloud model for both in TITLE:/SUMMARY: form.
	Semantic string `json:"semantic,omitempty" yaml:"semantic"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		Title: "You write titles for recorded conversations. Reply with one short title of at most eight words, " +
			"in the language of the transcript. No quotes, no punctuation at the end, no explanation.",
		Summary: "You summarize recorded conversations. Reply with a concise summary of at most five sentences " +
			"in the language of the transcript, listing decisions and action items if there are any.",
		Semantic: "You title and summarize recorded conversations in the language of the transcript. " +
			"Reply in exactly this format and nothing else:\nTITLE: <title of at most eight words>\nSUMMARY: <summary of at most five sentences>",
	}
}

func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if strings.TrimSpace(p.Title) == "" {
		p.Title = d.Title
	}
	if strings.TrimSpace(p.Summary) == "" {
		p.Summary = d.Summary
	}
	if strings.TrimSpace(p.Semantic) == "" {
		p.Semantic = d.Semantic
	}
	return p
}

var titleLabel = regexp.MustCompile(`(?i)^(title|titre)\s*[:：]\s*`)

// NormalizeTitle collapses whitespace including newlines, strips a leading
// "Title:" label, surrounding quotes and markdown emphasis, and truncates to
// MaxTitleRunes. The result never contains a newline.
func NormalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, "#*_` ")
	s = titleLabel.ReplaceAllString(s, "")
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`"'“”‘’«»*_`+"`", r)
	})
	return truncateRunes(s, MaxTitleRunes)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace)
}
