package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, int64(10*1024*1024), cfg.Security.MaxFileSize)
	assert.ElementsMatch(t, []string{".git", "node_modules", ".packfs-index.json"}, cfg.Security.BlockedPathSegments)
	assert.Equal(t, 10, cfg.Engine.MaxIndexDepth)
	assert.Equal(t, 64, cfg.Engine.MaxKeywordsPerFile)
	assert.Equal(t, int64(262144), cfg.Engine.ReadCapBytes)
	assert.Equal(t, 0.3, cfg.Engine.SemanticThreshold)
	assert.Equal(t, 50, cfg.Engine.MaxResults)
	assert.Nil(t, cfg.Security.RateLimit)
}

func TestLoadAppliesProjectFileOverRides(t *testing.T) {
	dir := t.TempDir()
	yamlContent := []byte("security:\n  max_file_size: 2048\nengine:\n  max_results: 5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".packfs.yaml"), yamlContent, 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.Security.MaxFileSize)
	assert.Equal(t, 5, cfg.Engine.MaxResults)
	absDir, _ := filepath.Abs(dir)
	assert.Equal(t, absDir, cfg.Security.Root)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PACKFS_MAX_FILE_SIZE", "4096")
	t.Setenv("PACKFS_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), cfg.Security.MaxFileSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsOutOfRangeSemanticThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.Security.Root = "/tmp/example"
	cfg.Engine.SemanticThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresAbsoluteRoot(t *testing.T) {
	cfg := NewConfig()
	cfg.Security.Root = "relative/path"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsIncompleteRateLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.Security.Root = "/tmp/example"
	cfg.Security.RateLimit = &RateLimit{MaxRequests: 10}
	assert.Error(t, cfg.Validate())
}

func TestWriteYAMLRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Security.Root = dir
	path := filepath.Join(dir, "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, cfg.Engine.MaxResults, loaded.Engine.MaxResults)
}
