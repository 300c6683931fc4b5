package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAbsentKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("timer-user-1", `{"mode":"focus"}`))

	value, ok, err := store.Get("timer-user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"mode":"focus"}`, value)
}

func TestOverwriteReplacesValue(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "first"))
	require.NoError(t, store.Set("k", "second"))

	value, _, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestKeysAreSanitized(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	// Path separators in keys must not escape the storage directory.
	require.NoError(t, store.Set("../../etc/passwd", "nope"))
	value, ok, err := store.Get("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nope", value)
}
