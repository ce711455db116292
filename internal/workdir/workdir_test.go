package workdir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packfs/packfs/internal/pathguard"
)

func TestResolveEmptyWorkingDirectoryUsesDefaultRoot(t *testing.T) {
	res := Resolve("", "/data/default")
	assert.Equal(t, "/data/default", res.EffectiveRoot)
	assert.True(t, res.IsDefault)
}

func TestResolveSameAsDefaultIsStillDefault(t *testing.T) {
	res := Resolve("/data/default", "/data/default")
	assert.True(t, res.IsDefault)
}

func TestResolveOverrideIsNotDefault(t *testing.T) {
	res := Resolve("/tmp/projA", "/data/default")
	assert.Equal(t, "/tmp/projA", res.EffectiveRoot)
	assert.False(t, res.IsDefault)
}

func TestGuardForDefaultReturnsExistingGuard(t *testing.T) {
	root := t.TempDir()
	guard, err := pathguard.New(pathguard.Policy{Root: root, MaxFileSize: 1 << 20}, 8)
	require.NoError(t, err)

	res := Resolve("", root)
	got, err := GuardFor(res, pathguard.Policy{Root: root, MaxFileSize: 1 << 20}, guard, 8)
	require.NoError(t, err)
	assert.Same(t, guard, got)
}

func TestGuardForOverrideBuildsNewGuardScopedToOverride(t *testing.T) {
	defaultRoot := t.TempDir()
	overrideRoot := t.TempDir()
	guard, err := pathguard.New(pathguard.Policy{Root: defaultRoot, MaxFileSize: 1 << 20}, 8)
	require.NoError(t, err)

	res := Resolve(overrideRoot, defaultRoot)
	got, err := GuardFor(res, pathguard.Policy{Root: defaultRoot, MaxFileSize: 1 << 20}, guard, 8)
	require.NoError(t, err)
	assert.NotSame(t, guard, got)

	validated, err := got.Validate("file.txt", pathguard.OpOther, 0)
	require.NoError(t, err)
	assert.Contains(t, validated.AbsolutePath, overrideRoot)
}
