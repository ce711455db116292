// Package recovery attaches actionable suggestions to failed operations:
// sibling listings, near-name matches, ancestor fallback, and broader
// searches, never altering the primary success verdict.
package recovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Kind classifies a Suggestion.
type Kind string

const (
	KindDirectoryListing Kind = "directory_listing"
	KindSimilarFiles     Kind = "similar_files"
	KindParentDirectory  Kind = "parent_directory"
	KindAlternativePath  Kind = "alternative_path"
	KindSearchResults    Kind = "search_results"
)

// Suggestion is one ErrorSuggestion record.
type Suggestion struct {
	Kind        Kind
	Description string
	Payload     map[string]any
	Confidence  float64
}

// DefaultMaxSuggestions bounds suggest() output absent an override.
const DefaultMaxSuggestions = 5

// Engine computes suggestions for a rooted tree.
type Engine struct {
	root string
	max  int
}

// New builds an Engine rooted at root, capping suggestions at max (0 uses
// DefaultMaxSuggestions).
func New(root string, max int) *Engine {
	if max <= 0 {
		max = DefaultMaxSuggestions
	}
	return &Engine{root: root, max: max}
}

// SuggestFileNotFound builds suggestions for a missing relative path p:
// sibling directory listing, similar-name matches, same-stem-different-
// extension candidates, nearest existing ancestor, and same-basename
// matches found elsewhere under the root.
func (e *Engine) SuggestFileNotFound(p string) []Suggestion {
	p = filepath.ToSlash(p)
	var out []Suggestion

	parentRel := filepath.ToSlash(filepath.Dir(p))
	if parentRel == "." {
		parentRel = ""
	}
	parentAbs := filepath.Join(e.root, filepath.FromSlash(parentRel))
	base := filepath.Base(p)

	entries, err := os.ReadDir(parentAbs)
	if err == nil {
		siblings := siblingNames(entries)
		out = append(out, directoryListingSuggestion(parentRel, entries))
		out = append(out, similarFilesSuggestions(parentRel, base, siblings)...)
		out = append(out, alternativePathSuggestion(parentRel, base, siblings)...)
	} else {
		out = append(out, e.parentDirectorySuggestion(parentRel))
	}

	if hits := e.findBasenameElsewhere(base, p); len(hits) > 0 {
		out = append(out, searchResultsSuggestionFromPaths(hits))
	}

	return capSuggestions(out, e.max)
}

// SuggestEmptyDiscovery implements the "empty discovery" rule: split the
// query into tokens and suggest each as a broader search.
func SuggestEmptyDiscovery(query string, max int) []Suggestion {
	if max <= 0 {
		max = DefaultMaxSuggestions
	}
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	payload := map[string]any{"broader_queries": tokens}
	s := Suggestion{
		Kind:        KindSearchResults,
		Description: "no results for the full query; try a broader term",
		Payload:     payload,
		Confidence:  0.5,
	}
	return capSuggestions([]Suggestion{s}, max)
}

func (e *Engine) parentDirectorySuggestion(missingParentRel string) Suggestion {
	ancestor := missingParentRel
	for ancestor != "" {
		abs := filepath.Join(e.root, filepath.FromSlash(ancestor))
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			break
		}
		ancestor = filepath.ToSlash(filepath.Dir(ancestor))
		if ancestor == "." {
			ancestor = ""
			break
		}
	}
	return Suggestion{
		Kind:        KindParentDirectory,
		Description: "parent directory does not exist; deepest existing ancestor noted",
		Payload:     map[string]any{"existing_ancestor": ancestor},
		Confidence:  0.6,
	}
}

func (e *Engine) findBasenameElsewhere(base, excludePath string) []string {
	var hits []string
	_ = filepath.WalkDir(e.root, func(abs string, d os.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() || len(hits) >= 10 {
			return nil
		}
		if d.Name() != base {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, abs)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == excludePath {
			return nil
		}
		hits = append(hits, rel)
		if len(hits) >= 10 {
			return filepath.SkipAll
		}
		return nil
	})
	return hits
}

func siblingNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names
}

// directoryListingSuggestion lists up to 20 siblings with human-readable
// sizes, sorted by name.
func directoryListingSuggestion(parentRel string, entries []os.DirEntry) Suggestion {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	type listing struct {
		Name string `json:"name"`
		Size string `json:"size"`
		Dir  bool   `json:"is_directory"`
	}
	items := make([]listing, 0, len(entries))
	for i, de := range entries {
		if i >= 20 {
			break
		}
		var sizeStr string
		if info, err := de.Info(); err == nil && !de.IsDir() {
			sizeStr = FormatFileSize(info.Size())
		}
		items = append(items, listing{Name: de.Name(), Size: sizeStr, Dir: de.IsDir()})
	}

	return Suggestion{
		Kind:        KindDirectoryListing,
		Description: "sibling files in the parent directory",
		Payload: map[string]any{
			"directory": parentRel,
			"entries":   items,
		},
		Confidence: 0.4,
	}
}

func similarFilesSuggestions(parentRel, base string, siblings []string) []Suggestion {
	type scored struct {
		name     string
		distance int
	}
	threshold := maxInt(2, ceilDiv(len(base), 4))

	var matches []scored
	for _, name := range siblings {
		if name == base {
			continue
		}
		d := levenshtein(base, name)
		if d <= threshold {
			matches = append(matches, scored{name: name, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		confidence := 0.0
		if len(base) > 0 {
			confidence = 1 - float64(m.distance)/float64(len(base))
		}
		if confidence < 0 {
			confidence = 0
		}
		out = append(out, Suggestion{
			Kind:        KindSimilarFiles,
			Description: "name similar to the requested file",
			Payload: map[string]any{
				"directory": parentRel,
				"name":      m.name,
				"distance":  m.distance,
			},
			Confidence: confidence,
		})
	}
	return out
}

func alternativePathSuggestion(parentRel, base string, siblings []string) []Suggestion {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return nil
	}

	var out []Suggestion
	for _, name := range siblings {
		siblingExt := filepath.Ext(name)
		siblingStem := strings.TrimSuffix(name, siblingExt)
		if siblingStem == stem && siblingExt != ext {
			out = append(out, Suggestion{
				Kind:        KindAlternativePath,
				Description: "same stem, different extension",
				Payload: map[string]any{
					"path": joinRel(parentRel, name),
				},
				Confidence: 0.7,
			})
		}
	}
	return out
}

func searchResultsSuggestionFromPaths(paths []string) Suggestion {
	descriptions := make([]string, 0, len(paths))
	for _, p := range paths {
		descriptions = append(descriptions, p)
	}
	return Suggestion{
		Kind:        KindSearchResults,
		Description: "same filename found elsewhere under the root",
		Payload:     map[string]any{"locations": descriptions},
		Confidence:  0.5,
	}
}

// FormatFileSize renders n bytes using the humanize conventions used for
// directory_listing payload sizes.
func FormatFileSize(n int64) string {
	return humanize.Bytes(uint64(n))
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minInt(del, minInt(ins, sub))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func capSuggestions(s []Suggestion, max int) []Suggestion {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
