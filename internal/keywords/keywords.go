// Package keywords extracts a bounded, normalized bag of tokens from file
// content and filenames.
package keywords

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
)

const (
	minTokenLen = 3
	maxTokenLen = 32
	binarySniffWindow = 4096
)

// stopWords is the ~60-word English stop list removed before ranking.
var stopWords = buildStopWordMap([]string{
	"the", "a", "an", "and", "or", "but", "if", "then", "else", "for", "to",
	"of", "in", "on", "at", "by", "with", "from", "as", "is", "are", "was",
	"were", "be", "been", "being", "this", "that", "these", "those", "it",
	"its", "it's", "not", "no", "do", "does", "did", "can", "will", "would",
	"should", "could", "has", "have", "had", "he", "she", "they", "we",
	"you", "i", "his", "her", "their", "our", "your", "my", "me", "him",
	"them", "us", "so", "than", "too", "very", "just", "about", "into",
})

// binaryExtensions are declared binary regardless of content sniffing.
var binaryExtensions = buildStopWordMap([]string{
	"png", "jpg", "jpeg", "gif", "bmp", "ico", "webp", "pdf", "zip", "gz",
	"tar", "7z", "rar", "exe", "dll", "so", "dylib", "bin", "woff", "woff2",
	"ttf", "eot", "class", "o", "a", "wasm",
})

// Extract implements the Keyword Extractor contract: given file bytes and
// its filename, return a bounded set of normalized tokens.
func Extract(content []byte, filename string, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = 64
	}

	var tokens []string
	if isBinary(content, filename) {
		tokens = nil
	} else {
		tokens = tokenizeContent(content)
	}

	ranked := rankByFrequency(tokens, maxKeywords)
	stem := filepath.Base(filename)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	ranked = append(ranked, splitCodeToken(stem)...)

	return dedupe(ranked, maxKeywords)
}

func isBinary(content []byte, filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := binaryExtensions[ext]; ok {
		return true
	}
	window := content
	if len(window) > binarySniffWindow {
		window = window[:binarySniffWindow]
	}
	for _, b := range window {
		if b == 0 {
			return true
		}
	}
	return false
}

// tokenizeContent decodes content as UTF-8 (with replacement), lowercases,
// and segments on Unicode word boundaries using the bleve segmenter,
// keeping only letter/number runs within the allowed length range.
func tokenizeContent(content []byte) []string {
	text := strings.ToLower(string(content))
	seg := segment.NewWordSegmenter(strings.NewReader(text))

	var tokens []string
	for seg.Segment() {
		if !isWordSegment(seg.Type()) {
			continue
		}
		tok := string(seg.Bytes())
		if len(tok) < minTokenLen || len(tok) > maxTokenLen {
			continue
		}
		if !isAlphanumeric(tok) {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isWordSegment(t int) bool {
	return t == segment.Letter || t == segment.Number || t == segment.Ideo || t == segment.Kana
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// rankByFrequency keeps the top max tokens by frequency, ties broken by
// first-occurrence order.
func rankByFrequency(tokens []string, max int) []string {
	freq := make(map[string]int, len(tokens))
	firstSeen := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		freq[tok]++
		if _, ok := firstSeen[tok]; !ok {
			firstSeen[tok] = i
		}
	}

	unique := make([]string, 0, len(freq))
	for tok := range freq {
		unique = append(unique, tok)
	}
	sort.Slice(unique, func(i, j int) bool {
		if freq[unique[i]] != freq[unique[j]] {
			return freq[unique[i]] > freq[unique[j]]
		}
		return firstSeen[unique[i]] < firstSeen[unique[j]]
	})

	if len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

func dedupe(tokens []string, max int) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) >= max {
			break
		}
	}
	return out
}

func buildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
