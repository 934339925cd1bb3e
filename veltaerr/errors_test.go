package veltaerr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIs(t *testing.T) {
	err := New(KindKeyAlreadyExists, "key %q present", "foo")
	require.True(t, Is(err, KindKeyAlreadyExists))
	require.False(t, Is(err, KindTxFinished))
}

func TestSnippet(t *testing.T) {
	err := NewSpan(KindSyntaxError, Span{Source: "SELECT * FROM\nWHERE", Line: 2, Column: 1}, "unexpected token")
	require.Equal(t, "WHERE\n^", err.Snippet())
}

func TestWrapUnwrap(t *testing.T) {
	cause := New(KindIO, "disk full")
	wrapped := Wrap(KindIO, cause, "writing change-feed entry")
	require.ErrorIs(t, wrapped, cause)
}
