package llm

import (
	"regexp"
	"strings"
)

// htmlCommentRe matches HTML comments some models wrap around or inside their
// JSON output.
var htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

// ExtractJSON pulls an embedded JSON object out of noisy model output.
//
// LLM responses routinely wrap JSON in markdown code fences, HTML comments, or
// leading/trailing prose. This strips those artifacts and slices from the
// first '{' to the last '}'. The second return value is false when no object
// can be located; the caller decides how to degrade.
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}

	s = htmlCommentRe.ReplaceAllString(s, "")
	s = stripCodeFences(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}

	return s[start : end+1], true
}

// stripCodeFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
