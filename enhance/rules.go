package enhance

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kbukum/scribe/hallucination"
)

// minSummarySentenceRunes is the length a sentence needs to make the
// fallback summary.
const minSummarySentenceRunes = 20

const maxSummarySentences = 3

var titleKeywords = []string{
	"meeting", "agenda", "topic", "topics", "discuss", "discussion", "project", "plan", "planning",
	"review", "update", "status", "interview", "presentation",
	"réunion", "ordre du jour", "sujet", "sujets", "projet", "discuter", "point",
	"bilan", "entretien", "présentation",
}

var actionKeywords = []string{
	"will", "need to", "needs to", "should", "must", "decided", "decide", "agreed", "action",
	"todo", "to do", "follow up", "deadline", "next step", "next steps", "assign", "assigned",
	"on va", "il faut", "doit", "doivent", "devons", "décidé", "décision", "convenu",
	"prochaine étape", "prochaines étapes", "à faire", "échéance",
}

// fillerPrefixes are greetings and hesitations stripped from the start of
// a title. Longer entries come first so "hi everyone" wins over "hi".
var fillerPrefixes = []string{
	"good morning everyone", "good afternoon everyone", "hello everyone", "hi everyone", "hey everyone",
	"good morning", "good afternoon", "okay so", "ok so", "all right", "alright", "so yeah",
	"hello", "hi", "hey", "okay", "ok", "so", "um", "uh", "well", "yeah",
	"bonjour à tous", "bonjour tout le monde", "salut tout le monde", "bonjour", "salut",
	"alors", "euh", "donc", "bon", "voilà",
}

// RuleBased derives a title and summary without any model. It never fails.
func RuleBased(text string) Enhancement {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return Enhancement{Title: UntitledTitle, Source: SourceRuleBased}
	}
	return Enhancement{
		Title:   ruleTitle(sentences),
		Summary: ruleSummary(sentences),
		Source:  SourceRuleBased,
	}
}

func ruleTitle(sentences []string) string {
	pick := sentences[0]
	for _, s := range sentences {
		if containsKeyword(s, titleKeywords) {
			pick = s
			break
		}
	}
	title := stripFillers(pick)
	if title == "" {
		title = pick
	}
	title = strings.TrimRight(title, ".!?…。！？ ")
	title = NormalizeTitle(capitalize(title))
	if title == "" {
		return UntitledTitle
	}
	return title
}

func ruleSummary(sentences []string) string {
	var actions []string
	for _, s := range sentences {
		if containsKeyword(s, actionKeywords) {
			actions = append(actions, s)
			if len(actions) == maxSummarySentences {
				break
			}
		}
	}
	if len(actions) > 0 {
		var b strings.Builder
		for i, a := range actions {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s", i+1, a)
		}
		return b.String()
	}

	var picked []string
	for _, s := range sentences {
		if utf8.RuneCountInString(s) >= minSummarySentenceRunes {
			picked = append(picked, s)
			if len(picked) == maxSummarySentences {
				break
			}
		}
	}
	if len(picked) == 0 {
		picked = sentences[:min(len(sentences), maxSummarySentences)]
	}
	return strings.Join(picked, " ")
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range hallucination.Sentences(text) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// containsKeyword matches whole words and phrases, case-insensitively.
func containsKeyword(sentence string, keywords []string) bool {
	words := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, kw := range keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

func stripFillers(s string) string {
	for {
		stripped := false
		for _, f := range fillerPrefixes {
			if rest, ok := cutPrefixFold(s, f); ok {
				s = strings.TrimLeft(rest, " ,.!-:;…")
				stripped = true
				break
			}
		}
		if !stripped || s == "" {
			return s
		}
	}
}

// cutPrefixFold removes prefix when it is a whole leading word sequence of
// s, ignoring case.
func cutPrefixFold(s, prefix string) (string, bool) {
	runes := []rune(s)
	n := utf8.RuneCountInString(prefix)
	if len(runes) < n || !strings.EqualFold(string(runes[:n]), prefix) {
		return s, false
	}
	if len(runes) > n && (unicode.IsLetter(runes[n]) || unicode.IsDigit(runes[n])) {
		return s, false
	}
	return string(runes[n:]), true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
