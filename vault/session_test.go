package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Plaintext(t *testing.T) {
	store := SessionStore{Path: filepath.Join(t.TempDir(), "session.txt")}

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Save("token123\n"))
	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, "token123", string(data))

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token123", token)
}

func TestSessionStore_Encrypted(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "identity.txt")
	require.NoError(t, GenerateIdentity(identity))
	assert.Error(t, GenerateIdentity(identity))

	store := SessionStore{Path: filepath.Join(dir, "state", "session.age"), Identity: identity}
	require.NoError(t, store.Save("token123"))

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "token123")

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token123", token)

	plain := SessionStore{Path: store.Path}
	token, err = plain.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "token123", token)
}

func TestSessionStore_EmptyFile(t *testing.T) {
	store := SessionStore{Path: filepath.Join(t.TempDir(), "session.txt")}
	require.NoError(t, os.WriteFile(store.Path, []byte("\n"), 0o600))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}
