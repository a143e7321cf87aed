package ai

import "strings"

func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	for _, prefix := range []string{"```json", "```html", "```"} {
		if strings.HasPrefix(content, prefix) {
			content = strings.TrimPrefix(content, prefix)
			break
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// CleanHTML removes markdown fences around generated HTML.
func CleanHTML(content string) (string, error) {
	cleaned := stripCodeFences(content)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}
	return cleaned, nil
}
