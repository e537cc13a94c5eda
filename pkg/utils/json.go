package utils

import "strings"

// ExtractJSON pulls a JSON document out of free-form model text. Markdown
// fences (```json ... ```) are stripped first; otherwise the substring from
// the first '{' to the last '}' is taken. Returns "" when no candidate
// document is found.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		inner := trimmed
		if idx := strings.Index(inner, "\n"); idx >= 0 {
			inner = inner[idx+1:]
		}
		if end := strings.LastIndex(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		return strings.TrimSpace(inner)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
