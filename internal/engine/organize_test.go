package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizeCreateDirectoryIsIdempotent(t *testing.T) {
	eng, _ := setupEngine(t)

	first := eng.Execute(context.Background(), Intent{Kind: KindOrganize, Purpose: "create_directory", Target: Target{Path: "assets"}})
	require.True(t, first.Success)
	require.NotNil(t, first.Created)
	assert.True(t, *first.Created)

	second := eng.Execute(context.Background(), Intent{Kind: KindOrganize, Purpose: "create_directory", Target: Target{Path: "assets"}})
	require.True(t, second.Success)
	require.NotNil(t, second.Created)
	assert.False(t, *second.Created)
}

func TestOrganizeMoveRelocatesFile(t *testing.T) {
	eng, root := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:    KindOrganize,
		Purpose: "move",
		Source:  Target{Path: "README.md"},
		Destination: Target{
			Path: "archive/README.md",
		},
		Options: Options{CreatePath: true},
	})
	require.True(t, result.Success)

	_, err := os.Stat(filepath.Join(root, "README.md"))
	assert.True(t, os.IsNotExist(err))

	moved, err := os.ReadFile(filepath.Join(root, "archive", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "project overview", string(moved))
}

func TestOrganizeMoveMissingSourceFails(t *testing.T) {
	eng, _ := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:        KindOrganize,
		Purpose:     "move",
		Source:      Target{Path: "nope.txt"},
		Destination: Target{Path: "elsewhere.txt"},
	})
	require.False(t, result.Success)
	assert.Equal(t, "FILE_NOT_FOUND", result.Code)
}

func TestOrganizeCopyDuplicatesFileAndLeavesSourceIntact(t *testing.T) {
	eng, root := setupEngine(t)

	result := eng.Execute(context.Background(), Intent{
		Kind:        KindOrganize,
		Purpose:     "copy",
		Source:      Target{Path: "README.md"},
		Destination: Target{Path: "backup/README.md"},
		Options:     Options{CreatePath: true},
	})
	require.True(t, result.Success)

	original, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	copied, err := os.ReadFile(filepath.Join(root, "backup", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, string(original), string(copied))
}
