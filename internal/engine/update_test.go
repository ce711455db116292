package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAppendCreatesWhenMissingAndCreatePathSet(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "append",
		Target:  Target{Path: "log.txt"},
		Content: []byte("line one\n"),
		Options: Options{CreatePath: true},
	})
	require.True(t, result.Success)

	result = eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "append",
		Target:  Target{Path: "log.txt"},
		Content: []byte("line two\n"),
	})
	require.True(t, result.Success)

	read := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "log.txt"}})
	require.True(t, read.Success)
	assert.Equal(t, "line one\nline two\n", read.Content)
}

func TestUpdateAppendWithoutCreatePathFailsOnMissingTarget(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "append",
		Target:  Target{Path: "missing.txt"},
		Content: []byte("x"),
	})
	require.False(t, result.Success)
	assert.Equal(t, "FILE_NOT_FOUND", result.Code)
}

func TestUpdateOverwriteWithBackupPreservesOriginal(t *testing.T) {
	eng, root := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "overwrite",
		Target:  Target{Path: "README.md"},
		Content: []byte("new contents"),
		Options: Options{Backup: true},
	})
	require.True(t, result.Success)

	backup, err := os.ReadFile(filepath.Join(root, "README.md.backup"))
	require.NoError(t, err)
	assert.Equal(t, "project overview", string(backup))

	read := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.True(t, read.Success)
	assert.Equal(t, "new contents", read.Content)
}

func TestUpdateMergeShallowMergesJSONObjects(t *testing.T) {
	eng, root := setupEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "settings.json"), []byte(`{"a":1,"b":2}`), 0644))

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "merge",
		Target:  Target{Path: "settings.json"},
		Content: []byte(`{"b":3,"c":4}`),
	})
	require.True(t, result.Success)

	read := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "settings.json"}})
	require.True(t, read.Success)
	assert.Contains(t, read.Content, `"a": 1`)
	assert.Contains(t, read.Content, `"b": 3`)
	assert.Contains(t, read.Content, `"c": 4`)
}

func TestUpdatePatchBehavesAsOverwrite(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "patch",
		Target:  Target{Path: "README.md"},
		Content: []byte("patched"),
	})
	require.True(t, result.Success)

	read := eng.Execute(context.Background(), Intent{Kind: KindAccess, Purpose: "read", Target: Target{Path: "README.md"}})
	require.True(t, read.Success)
	assert.Equal(t, "patched", read.Content)
}

func TestUpdateAppendExceedingMaxFileSizeFails(t *testing.T) {
	eng, _ := setupEngine(t)
	eng.cfg.Security.MaxFileSize = 5

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindUpdate,
		Purpose: "append",
		Target:  Target{Path: "README.md"},
		Content: []byte("this is more than five bytes"),
	})
	require.False(t, result.Success)
	assert.Equal(t, "FILE_TOO_LARGE", result.Code)
}
