package enhance

import (
	"regexp"
	"strings"
)

var (
	semanticTitle        = regexp.MustCompile(`(?im)^[\s*#_>-]*(?:title|titre)[\s*_]*[:：][\s*_]*(.+?)[\s*_]*$`)
	semanticSummaryLabel = regexp.MustCompile(`(?i)[*_]*\b(?:summary|résumé|resume)[\s*_]*[:：][\s*_]*`)
)

// parseSemantic extracts a TITLE:/SUMMARY: reply. Labels may be in either
// case, wrapped in markdown emphasis, in French, or on the same line.
// Both parts are required.
func parseSemantic(reply string) (title, summary string, ok bool) {
	tm := semanticTitle.FindStringSubmatch(reply)
	loc := semanticSummaryLabel.FindStringIndex(reply)
	if tm == nil || loc == nil {
		return "", "", false
	}
	rawTitle := tm[1]
	if cut := semanticSummaryLabel.FindStringIndex(rawTitle); cut != nil {
		rawTitle = rawTitle[:cut[0]]
	}
	title = NormalizeTitle(rawTitle)
	summary = strings.TrimSpace(strings.Trim(strings.TrimSpace(reply[loc[1]:]), "*_"))
	if title == "" || summary == "" {
		return "", "", false
	}
	return title, summary, true
}
