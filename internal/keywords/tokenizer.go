package keywords

import "unicode"

// splitCodeToken splits an identifier-like token (camelCase, kebab-case,
// snake_case) into its constituent lowercase parts. Grounded on the
// teacher's code-identifier tokenizer, generalized here to filename stems
// rather than source identifiers.
func splitCodeToken(token string) []string {
	if token == "" {
		return nil
	}

	var parts []string
	for _, piece := range splitOnSeparators(token) {
		parts = append(parts, splitCamelCase(piece)...)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = trimNonAlnum(p)
		if len(p) < minTokenLen || len(p) > maxTokenLen {
			continue
		}
		out = append(out, p)
	}
	return out
}

func splitOnSeparators(s string) []string {
	var parts []string
	var cur []rune
	for _, r := range s {
		if r == '-' || r == '_' || r == '.' || unicode.IsSpace(r) {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

// splitCamelCase splits "camelCase" / "PascalCase" / "HTTPServer" into
// lowercase words: "camel", "case"; "http", "server".
func splitCamelCase(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	var words []string
	var cur []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && len(cur) > 0) {
				words = append(words, string(cur))
				cur = nil
			}
		}
		cur = append(cur, unicode.ToLower(r))
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

func trimNonAlnum(s string) string {
	runes := []rune(s)
	start, end := 0, len(runes)
	for start < end && !unicode.IsLetter(runes[start]) && !unicode.IsDigit(runes[start]) {
		start++
	}
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsDigit(runes[end-1]) {
		end--
	}
	return string(runes[start:end])
}
