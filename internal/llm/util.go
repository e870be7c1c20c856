package llm

import "strings"

// CleanJSONBlock strips markdown fences and any prose around the outermost
// JSON object or array. Models add both even when asked for bare JSON.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag such as "json" on the fence line.
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			tag := strings.TrimSpace(text[:idx])
			if tag == "" || !strings.ContainsAny(tag, "{[ ") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if text == "" || text[0] == '{' || text[0] == '[' {
		return text
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text
	}
	return text[start : end+1]
}
