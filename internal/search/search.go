// Package search resolves discovery queries against an index snapshot:
// directory listing, glob match, content search, and keyword-overlap
// "semantic" scoring.
package search

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/packfs/packfs/internal/indexstore"
	"github.com/packfs/packfs/internal/keywords"
)

// Hit is one ranked search result.
type Hit struct {
	Path    string
	Score   float64
	Snippet string
}

// Options bounds and tunes a search call.
type Options struct {
	MaxResults int
	Threshold  float64
}

// ListEntry describes one child of a listed directory.
type ListEntry struct {
	Name      string
	Path      string
	IsDir     bool
	Size      int64
	ItemCount int
}

// List returns the immediate children of absDir, with type/size/item_count
// for directories.
func List(absDir, relDir string) ([]ListEntry, error) {
	dirEntries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}

	out := make([]ListEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		childAbs := filepath.Join(absDir, de.Name())
		childRel := joinRel(relDir, de.Name())
		entry := ListEntry{Name: de.Name(), Path: childRel, IsDir: de.IsDir()}

		info, err := de.Info()
		if err != nil {
			continue
		}
		if de.IsDir() {
			children, err := os.ReadDir(childAbs)
			if err == nil {
				entry.ItemCount = len(children)
			}
		} else {
			entry.Size = info.Size()
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Find glob-matches pattern against every indexed path: `*` within a
// segment, `**` across segments.
func Find(entries map[string]indexstore.FileEntry, pattern string, opts Options) ([]Hit, error) {
	var hits []Hit
	for path := range entries {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			return nil, err
		}
		if matched {
			hits = append(hits, Hit{Path: path, Score: 1.0})
		}
	}
	return rankAndCap(hits, opts), nil
}

// SearchContent restricts candidates to those whose keywords intersect the
// query tokens (or, when none intersect, every indexed path), then verifies
// the match against the file on disk. query is
// treated as a regular expression when it compiles as one; otherwise it is
// matched as a literal substring.
func SearchContent(root string, store *indexstore.Store, query string, opts Options) ([]Hit, error) {
	queryTokens := keywords.Extract([]byte(query), "", 64)
	candidates := store.QueryByKeywords(queryTokens)
	if len(candidates) == 0 {
		candidates = allPaths(store)
	}

	re, reErr := regexp.Compile(query)
	useRegex := reErr == nil

	var hits []Hit
	for _, path := range candidates {
		entry, ok := store.Get(path)
		if !ok || entry.IsDirectory {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			continue
		}
		var matched bool
		var snippet string
		if useRegex {
			if loc := re.FindIndex(data); loc != nil {
				matched = true
				snippet = snippetAround(data, loc[0], loc[1])
			}
		} else if idx := strings.Index(string(data), query); idx >= 0 {
			matched = true
			snippet = snippetAround(data, idx, idx+len(query))
		}
		if matched {
			hits = append(hits, Hit{Path: path, Score: 1.0, Snippet: snippet})
		}
	}
	return rankAndCap(hits, opts), nil
}

// SearchSemantic scores every candidate by keyword overlap with the query.
func SearchSemantic(store *indexstore.Store, semanticQuery string, opts Options) []Hit {
	queryTokens := keywords.Extract([]byte(semanticQuery), "", 64)
	if len(queryTokens) == 0 {
		return nil
	}
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.3
	}

	var hits []Hit
	for path, entry := range store.Snapshot() {
		if entry.IsDirectory {
			continue
		}
		score := scoreOverlap(querySet, entry, len(queryTokens))
		if score >= threshold {
			hits = append(hits, Hit{Path: path, Score: score})
		}
	}
	return rankAndCap(hits, opts)
}

// SearchIntegrated unions SearchContent and SearchSemantic results,
// deduplicated by path and scored by the max of the two.
func SearchIntegrated(root string, store *indexstore.Store, query string, opts Options) ([]Hit, error) {
	contentHits, err := SearchContent(root, store, query, Options{MaxResults: 0})
	if err != nil {
		return nil, err
	}
	semanticHits := SearchSemantic(store, query, Options{MaxResults: 0, Threshold: opts.Threshold})

	byPath := make(map[string]Hit, len(contentHits)+len(semanticHits))
	for _, h := range contentHits {
		byPath[h.Path] = h
	}
	for _, h := range semanticHits {
		if existing, ok := byPath[h.Path]; !ok || h.Score > existing.Score {
			if ok {
				h.Snippet = existing.Snippet
			}
			byPath[h.Path] = h
		}
	}

	hits := make([]Hit, 0, len(byPath))
	for _, h := range byPath {
		hits = append(hits, h)
	}
	return rankAndCap(hits, opts), nil
}

func scoreOverlap(querySet map[string]struct{}, entry indexstore.FileEntry, queryLen int) float64 {
	overlap := 0
	for _, kw := range entry.Keywords {
		if _, ok := querySet[kw]; ok {
			overlap++
		}
	}
	denom := queryLen
	if denom < 1 {
		denom = 1
	}
	score := float64(overlap) / float64(denom)

	stem := strings.TrimSuffix(filepath.Base(entry.Path), entry.Extension)
	for token := range querySet {
		if strings.Contains(strings.ToLower(stem), token) {
			score += 0.1
			break
		}
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// rankAndCap sorts by descending score, ties broken by shorter path then
// lexicographic, and caps at opts.MaxResults.
func rankAndCap(hits []Hit, opts Options) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if len(hits[i].Path) != len(hits[j].Path) {
			return len(hits[i].Path) < len(hits[j].Path)
		}
		return hits[i].Path < hits[j].Path
	})

	max := opts.MaxResults
	if max <= 0 {
		max = 50
	}
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

func allPaths(store *indexstore.Store) []string {
	snap := store.Snapshot()
	out := make([]string, 0, len(snap))
	for p := range snap {
		out = append(out, p)
	}
	return out
}

func snippetAround(data []byte, start, end int) string {
	const margin = 40
	lo := start - margin
	if lo < 0 {
		lo = 0
	}
	hi := end + margin
	if hi > len(data) {
		hi = len(data)
	}
	return string(data[lo:hi])
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
