package llm

import (
	"context"
	"strings"
)

// Complete sends system + user prompts and returns the trimmed text
// response.
func Complete(ctx context.Context, p Provider, system, user string) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: user}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripFences(resp.Content)), nil
}

// stripFences removes a surrounding markdown code fence that chat models
// sometimes wrap plain answers in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s[3:], "\n"); idx >= 0 {
		s = s[3+idx+1:]
	} else {
		s = s[3:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
