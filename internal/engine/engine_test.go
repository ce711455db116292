package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packfs/packfs/internal/config"
	"github.com/packfs/packfs/internal/ratelimit"
)

func setupEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte("authentication jwt token guide"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("project overview"), 0644))

	cfg := config.NewConfig()
	cfg.Security.Root = root

	eng, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Shutdown() })
	_, err = eng.Initialize(context.Background())
	require.NoError(t, err)
	return eng, root
}

func TestExecuteAccessReadTypoGetsSimilarFileSuggestion(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindAccess,
		Purpose: "read",
		Target:  Target{Path: "docs/gide.md"},
	})

	require.False(t, result.Success)
	assert.Equal(t, "FILE_NOT_FOUND", result.Code)
	assert.Empty(t, result.Content)
	require.NotEmpty(t, result.Suggestions)

	var foundSimilar bool
	for _, s := range result.Suggestions {
		if s.Kind == "similar_files" && s.Confidence >= 0.75 {
			foundSimilar = true
		}
	}
	assert.True(t, foundSimilar, "expected a high-confidence similar_files suggestion, got %+v", result.Suggestions)
}

func TestExecuteUpdateCreateThenAccessReadRoundTrips(t *testing.T) {
	eng, _ := setupEngine(t)

	createResult := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "create",
		Target:  Target{Path: "notes/todo.txt"},
		Content: []byte("buy milk"),
		Options: Options{CreatePath: true},
	})
	require.True(t, createResult.Success)
	require.NotNil(t, createResult.Created)
	assert.True(t, *createResult.Created)
	dirsCreated, ok := createResult.Metadata["dirs_created"].([]string)
	require.True(t, ok)
	assert.Contains(t, dirsCreated, "notes")

	readResult := eng.Execute(context.Background(), Intent{
		Kind:    KindAccess,
		Purpose: "read",
		Target:  Target{Path: "notes/todo.txt"},
	})
	require.True(t, readResult.Success)
	assert.Equal(t, "buy milk", readResult.Content)
}

func TestExecuteUpdateCreateOnExistingFileFails(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "create",
		Target:  Target{Path: "README.md"},
		Content: []byte("overwritten"),
	})

	require.False(t, result.Success)
	assert.Equal(t, "ALREADY_EXISTS", result.Code)
}

func TestExecuteDiscoverSearchSemanticRanksDescendingByScore(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindDiscover,
		Purpose: "search_semantic",
		Target:  Target{SemanticQuery: "authentication jwt"},
		Options: Options{Threshold: 0.1},
	})

	require.True(t, result.Success)
	require.NotEmpty(t, result.Files)
	for i := 1; i < len(result.Files); i++ {
		assert.GreaterOrEqual(t, result.Files[i-1].Score, result.Files[i].Score)
	}
}

func TestExecuteAccessReadBlockedPathHasNoContentField(t *testing.T) {
	eng, root := setupEngine(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("secret"), 0644))

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindAccess,
		Purpose: "read",
		Target:  Target{Path: ".git/config"},
	})

	require.False(t, result.Success)
	assert.Equal(t, "BLOCKED_PATH", result.Code)
	assert.Empty(t, result.Content)
}

func TestExecuteDiscoverOnNonDefaultRootDoesNotChangeDefaultSnapshotVersion(t *testing.T) {
	eng, _ := setupEngine(t)
	otherRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(otherRoot, "scratch.txt"), []byte("authentication notes"), 0644))

	versionBefore := eng.store.Version()

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindDiscover,
		Purpose: "search_semantic",
		Target:  Target{SemanticQuery: "authentication"},
		Options: Options{WorkingDirectory: otherRoot, Threshold: 0.1},
	})

	require.True(t, result.Success)
	assert.Equal(t, versionBefore, eng.store.Version())
}

func TestExecuteRespectsRateLimit(t *testing.T) {
	eng, _ := setupEngine(t)
	eng.limiter = ratelimit.New(ratelimit.Config{MaxRequests: 1, Window: 60_000_000_000})

	first := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.True(t, first.Success)

	second := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.False(t, second.Success)
	assert.Equal(t, "RATE_LIMITED", second.Code)
}

func TestExecuteCancelledContextReturnsCancelledCode(t *testing.T) {
	eng, _ := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := eng.Execute(ctx, Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.False(t, result.Success)
	assert.Equal(t, "CANCELLED", result.Code)
}

func TestExecuteReloadsStoreWhenSnapshotTamperedExternally(t *testing.T) {
	eng, root := setupEngine(t)
	defer func() { _ = eng.Shutdown() }()

	snapshotPath := filepath.Join(root, ".packfs-index.json")
	foreignDoc := `{"version":1,"root":"` + filepath.ToSlash(root) + `","snapshot_version":999,"entries":[],"keyword_index":[]}`
	require.NoError(t, os.WriteFile(snapshotPath, []byte(foreignDoc), 0644))

	deadline := time.Now().Add(2 * time.Second)
	for !eng.store.Tampered() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, eng.store.Tampered(), "expected fsnotify to observe the foreign write")

	result := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.True(t, result.Success)
	assert.Equal(t, int64(999), eng.store.Version())
	assert.False(t, eng.store.Tampered())
}

func TestExecuteEveryResultHasTraceMetadataAndNoDataKey(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.True(t, result.Success)
	assert.NotEmpty(t, result.Metadata["trace_id"])
	assert.Equal(t, "access/read", result.Metadata["operation_type"])
	assert.NotNil(t, result.Metadata["execution_time_ms"])
	assert.NotEmpty(t, result.Metadata["engine_version"])

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	var top map[string]any
	require.NoError(t, json.Unmarshal(encoded, &top))
	assert.NotContains(t, top, "data")
}
