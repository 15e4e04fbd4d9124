package engine

import (
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_NotFound(t *testing.T) {
	err := ErrNotFound("upload/a.ts")

	var nfErr NotFoundError
	assert.True(t, errors.As(err, &nfErr))
	assert.Equal(t, "upload/a.ts", nfErr.Path)
	assert.Contains(t, err.Error(), "upload/a.ts")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(ErrTimedOut))
}

func TestErrors_Wrapping(t *testing.T) {
	original := errors.New("disk full")
	wrapped := WrapError(original, "failed to write blob")
	assert.True(t, errors.Is(wrapped, original))

	wrapped = WrapError(ErrNotFound("x"), "operation failed")
	assert.True(t, IsNotFound(wrapped))
}

func TestValidatePath(t *testing.T) {
	for _, p := range []string{"a", "upload/a.ts", "a/b/c", "a..b", ".hidden"} {
		assert.NoError(t, ValidatePath(p), p)
	}
	for _, p := range []string{"", "..", "a/../b", "a/..", "a\x00b",
		".", "x/./y", "a/", "/a", "a//b", "/"} {
		assert.ErrorIs(t, ValidatePath(p), ErrInvalidPath, p)
	}
}

func TestValidatePath_AcceptedKeysAreCanonical(t *testing.T) {
	for _, p := range []string{"a", "upload/a.ts", "a/b/c", "a..b", ".hidden", "x/.y/z"} {
		require.NoError(t, ValidatePath(p))
		assert.Equal(t, p, path.Clean(p), "accepted key %q must already be clean", p)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "hit", OutcomeHit.String())
	assert.Equal(t, "woken", OutcomeWoken.String())
	assert.Equal(t, "timeout", OutcomeTimedOut.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "error", OutcomeFailed.String())
}
