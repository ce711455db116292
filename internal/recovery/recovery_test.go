package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte("content"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "config.yaml"), []byte("content"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "notes.txt"), []byte("content"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other", "guide.md"), []byte("content"), 0644))
	return root
}

func TestSuggestFileNotFoundIncludesDirectoryListing(t *testing.T) {
	root := setupTree(t)
	e := New(root, 5)

	suggestions := e.SuggestFileNotFound("docs/guide.mdd")
	require.NotEmpty(t, suggestions)

	var found bool
	for _, s := range suggestions {
		if s.Kind == KindDirectoryListing {
			found = true
			assert.Equal(t, "docs", s.Payload["directory"])
		}
	}
	assert.True(t, found)
}

func TestSuggestFileNotFoundRanksSimilarFilesByDistance(t *testing.T) {
	root := setupTree(t)
	e := New(root, 5)

	suggestions := e.SuggestFileNotFound("docs/guide.mdd")

	var similar []Suggestion
	for _, s := range suggestions {
		if s.Kind == KindSimilarFiles {
			similar = append(similar, s)
		}
	}
	require.NotEmpty(t, similar)
	assert.Equal(t, "guide.md", similar[0].Payload["name"])
	assert.GreaterOrEqual(t, similar[0].Confidence, 0.75)
}

func TestSuggestFileNotFoundParentDirectoryWhenParentMissing(t *testing.T) {
	root := setupTree(t)
	e := New(root, 5)

	suggestions := e.SuggestFileNotFound("docs/missing/deep/file.txt")

	var found bool
	for _, s := range suggestions {
		if s.Kind == KindParentDirectory {
			found = true
			assert.Equal(t, "docs", s.Payload["existing_ancestor"])
		}
	}
	assert.True(t, found)
}

func TestSuggestFileNotFoundFindsBasenameElsewhere(t *testing.T) {
	root := setupTree(t)
	e := New(root, 5)

	suggestions := e.SuggestFileNotFound("missing/guide.md")

	var found bool
	for _, s := range suggestions {
		if s.Kind == KindSearchResults {
			found = true
			locations, ok := s.Payload["locations"].([]string)
			require.True(t, ok)
			assert.Contains(t, locations, "docs/guide.md")
			assert.Contains(t, locations, "other/guide.md")
		}
	}
	assert.True(t, found)
}

func TestSuggestFileNotFoundAlternativeExtension(t *testing.T) {
	root := setupTree(t)
	e := New(root, 5)

	suggestions := e.SuggestFileNotFound("docs/config.yml")

	var found bool
	for _, s := range suggestions {
		if s.Kind == KindAlternativePath {
			found = true
			assert.Equal(t, "docs/config.yaml", s.Payload["path"])
		}
	}
	assert.True(t, found)
}

func TestSuggestFileNotFoundRespectsMaxSuggestions(t *testing.T) {
	root := setupTree(t)
	e := New(root, 1)

	suggestions := e.SuggestFileNotFound("docs/guide.mdd")
	assert.LessOrEqual(t, len(suggestions), 1)
}

func TestSuggestEmptyDiscoverySplitsTokens(t *testing.T) {
	suggestions := SuggestEmptyDiscovery("authentication JWT flow", 5)
	require.Len(t, suggestions, 1)
	assert.Equal(t, KindSearchResults, suggestions[0].Kind)

	tokens, ok := suggestions[0].Payload["broader_queries"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"authentication", "jwt", "flow"}, tokens)
}

func TestSuggestEmptyDiscoveryEmptyQueryReturnsNil(t *testing.T) {
	assert.Empty(t, SuggestEmptyDiscovery("   ", 5))
}

func TestLevenshteinMatchesKnownDistances(t *testing.T) {
	assert.Equal(t, 0, levenshtein("guide.md", "guide.md"))
	assert.Equal(t, 1, levenshtein("guide.md", "guide.mdd"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestFormatFileSizeHumanizesBytes(t *testing.T) {
	assert.Equal(t, "1.0 kB", FormatFileSize(1000))
}
