// Package nlintent maps free text to a candidate intent with a confidence
// score, as a pure deterministic function with no I/O.
package nlintent

import (
	"regexp"
	"strings"
)

// Kind names the top-level intent family.
type Kind string

const (
	KindAccess   Kind = "access"
	KindUpdate   Kind = "update"
	KindDiscover Kind = "discover"
	KindOrganize Kind = "organize"
	KindRemove   Kind = "remove"
)

// Intent is the candidate interpretation of a piece of text.
type Intent struct {
	Kind          Kind
	Purpose       string
	Target        string
	SemanticQuery string
}

// Interpretation is one scored reading of the input text.
type Interpretation struct {
	Intent     Intent
	Confidence float64
}

// Result is the outcome of Interpret.
type Result struct {
	Success        bool
	Intent         Intent
	Confidence     float64
	Alternatives   []Interpretation
	Hints          []string
}

// MinConfidence is the floor below which Interpret reports failure.
const MinConfidence = 0.5

type rule struct {
	verbs   []string
	kind    Kind
	purpose string
}

// rules is the ordered verb-keyword table. Order matters: the first
// matching rule wins when a token matches more than one rule's verb set.
var rules = []rule{
	{verbs: []string{"read", "show", "display", "open"}, kind: KindAccess, purpose: "read"},
	{verbs: []string{"create", "make", "write", "add"}, kind: KindUpdate, purpose: "create"},
	{verbs: []string{"append", "add to"}, kind: KindUpdate, purpose: "append"},
	{verbs: []string{"overwrite", "replace"}, kind: KindUpdate, purpose: "overwrite"},
	{verbs: []string{"find", "search", "locate", "look"}, kind: KindDiscover, purpose: "search_semantic"},
	{verbs: []string{"list", "ls"}, kind: KindDiscover, purpose: "list"},
	{verbs: []string{"delete", "remove", "rm"}, kind: KindRemove, purpose: "delete_file"},
	{verbs: []string{"move", "rename"}, kind: KindOrganize, purpose: "move"},
	{verbs: []string{"copy"}, kind: KindOrganize, purpose: "copy"},
	{verbs: []string{"organize", "group"}, kind: KindOrganize, purpose: ""},
}

var quotedSubstring = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// Interpret scores text against the verb table and extracts a target or
// semantic query, falling back to a low-confidence failure with ranked
// alternatives when no reading clears MinConfidence.
func Interpret(text string) Result {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := strings.Fields(lower)

	matches := matchRules(lower, tokens)
	if len(matches) == 0 {
		return Result{
			Success: false,
			Hints:   []string{"no recognized action verb (try read, create, find, delete, move, copy...)"},
		}
	}

	target, semanticQuery := extractTarget(text, tokens, matches[0].verbs, matches[0].kind == KindDiscover && strings.HasPrefix(matches[0].purpose, "search_"))

	confidence := 0.9 - 0.15*float64(len(matches)-1)
	if confidence < 0 {
		confidence = 0
	}

	primary := Intent{
		Kind:          matches[0].kind,
		Purpose:       matches[0].purpose,
		Target:        target,
		SemanticQuery: semanticQuery,
	}

	phrase := target
	if phrase == "" {
		phrase = semanticQuery
	}

	var alternatives []Interpretation
	for i, m := range matches {
		altTarget, altSemanticQuery := phrase, ""
		if m.kind == KindDiscover && strings.HasPrefix(m.purpose, "search_") {
			altTarget, altSemanticQuery = "", phrase
		}
		alt := Intent{Kind: m.kind, Purpose: m.purpose, Target: altTarget, SemanticQuery: altSemanticQuery}
		altConfidence := confidence
		if i > 0 {
			altConfidence = 0.9 - 0.15*float64(i)
			if altConfidence < 0 {
				altConfidence = 0
			}
		}
		alternatives = append(alternatives, Interpretation{Intent: alt, Confidence: altConfidence})
	}

	if confidence < MinConfidence {
		capped := alternatives
		if len(capped) > 3 {
			capped = capped[:3]
		}
		hints := make([]string, 0, len(capped))
		for _, a := range capped {
			hints = append(hints, string(a.Intent.Kind)+"/"+a.Intent.Purpose)
		}
		return Result{
			Success:      false,
			Alternatives: capped,
			Hints:        hints,
		}
	}

	return Result{
		Success:      true,
		Intent:       primary,
		Confidence:   confidence,
		Alternatives: alternatives[1:],
	}
}

// matchRules returns every rule whose verb set appears in the tokenized
// text, in table order — the ordering that determines both the primary
// interpretation and the ambiguity penalty.
func matchRules(lower string, tokens []string) []rule {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	var out []rule
	for _, r := range rules {
		if ruleMatches(r, lower, tokenSet) {
			out = append(out, r)
		}
	}
	return out
}

func ruleMatches(r rule, lower string, tokenSet map[string]struct{}) bool {
	for _, verb := range r.verbs {
		if strings.Contains(verb, " ") {
			if strings.Contains(lower, verb) {
				return true
			}
			continue
		}
		if _, ok := tokenSet[verb]; ok {
			return true
		}
	}
	return false
}

// extractTarget tries a quoted substring first, then the longest non-verb
// token run, then falls back to the whole text as a semantic query. For a
// matched Discover/search_* rule the extracted phrase is a description of
// what to find, not a path, so it is returned as semanticQuery rather than
// target ("find all configuration files" means search for files about
// configuration, not a file literally named that).
func extractTarget(original string, tokens []string, verbs []string, isSemantic bool) (target, semanticQuery string) {
	phrase, quoted := "", false
	if m := quotedSubstring.FindStringSubmatch(original); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				phrase, quoted = g, true
				break
			}
		}
	}

	if phrase == "" {
		verbSet := make(map[string]struct{}, len(verbs))
		for _, v := range verbs {
			for _, part := range strings.Fields(v) {
				verbSet[part] = struct{}{}
			}
		}

		var best []string
		var current []string
		flush := func() {
			if len(current) > len(best) {
				best = append([]string(nil), current...)
			}
			current = nil
		}
		for _, t := range tokens {
			if _, isVerb := verbSet[t]; isVerb {
				flush()
				continue
			}
			current = append(current, t)
		}
		flush()

		if len(best) > 0 {
			phrase = strings.Join(best, " ")
		}
	}

	if phrase == "" {
		return "", strings.TrimSpace(original)
	}
	if isSemantic && !quoted {
		return "", phrase
	}
	return phrase, ""
}
