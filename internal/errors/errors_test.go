package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := New(CodeFileNotFound, "file not found", nil)
	assert.Equal(t, CategoryNotFound, err.Category)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.False(t, err.Retryable)

	rl := New(CodeRateLimited, "too many requests", nil)
	assert.True(t, rl.Retryable)
	assert.Equal(t, CategoryQuota, rl.Category)
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeInternal, nil))
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	sentinel := &PackError{Code: CodeFileNotFound}
	wrapped := New(CodeFileNotFound, "docs/guide.mdd missing", nil)
	assert.True(t, errors.Is(wrapped, sentinel))

	other := New(CodeBlockedPath, "blocked", nil)
	assert.False(t, errors.Is(other, sentinel))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("permission denied")
	wrapped := Wrap(CodePermissionDenied, cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestWithDetailAndSuggestionChain(t *testing.T) {
	err := New(CodeFileNotFound, "not found", nil).
		WithDetail("path", "docs/guide.mdd").
		WithSuggestion("did you mean docs/guide.md?")
	assert.Equal(t, "docs/guide.mdd", err.Details["path"])
	assert.Equal(t, "did you mean docs/guide.md?", err.Suggestion)
}

func TestIsFatalOnlyForInternal(t *testing.T) {
	assert.True(t, IsFatal(New(CodeInternal, "boom", nil)))
	assert.False(t, IsFatal(New(CodeFileNotFound, "missing", nil)))
	assert.False(t, IsFatal(errors.New("plain error")))
}

func TestIsRecoverableOnlyForMissingTargetCodes(t *testing.T) {
	assert.True(t, IsRecoverable(New(CodeFileNotFound, "x", nil)))
	assert.True(t, IsRecoverable(New(CodeParentNotFound, "x", nil)))
	assert.False(t, IsRecoverable(New(CodeBlockedPath, "x", nil)))
}

func TestFormatJSONRoundTrips(t *testing.T) {
	err := New(CodeFileNotFound, "not found", errors.New("stat failed")).
		WithSuggestion("check the path")
	data, marshalErr := FormatJSON(err)
	require.NoError(t, marshalErr)
	assert.Contains(t, string(data), `"code":"FILE_NOT_FOUND"`)
	assert.Contains(t, string(data), `"cause":"stat failed"`)
}

func TestFormatForLogNonPackError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", attrs["error"])
}
