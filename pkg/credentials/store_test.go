package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	t.Run("uses custom path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")

		store, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
	})

	t.Run("defaults to home directory when empty", func(t *testing.T) {
		store, err := NewFileStore("")
		require.NoError(t, err)

		homeDir, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(homeDir, ".farmrunner", "credentials.json"), store.Path())
	})
}

func TestFileStore_Load(t *testing.T) {
	t.Run("missing file is not found", func(t *testing.T) {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
		require.NoError(t, err)

		_, err = store.Load()
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("corrupt file is not found", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		store, err := NewFileStore(path)
		require.NoError(t, err)

		_, err = store.Load()
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("record with empty password is not found", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"username":"alice","password":""}`), 0600))

		store, err := NewFileStore(path)
		require.NoError(t, err)

		_, err = store.Load()
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("reads file written by another process", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"username":"alice","password":"secret"}`), 0600))

		store, err := NewFileStore(path)
		require.NoError(t, err)

		creds, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, Credentials{Username: "alice", Password: "secret"}, creds)
	})
}

func TestFileStore_Save(t *testing.T) {
	t.Run("creates directory and file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "credentials.json")

		store, err := NewFileStore(path)
		require.NoError(t, err)
		require.NoError(t, store.Save(Credentials{Username: "alice", Password: "secret"}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
	})

	t.Run("overwrites previous record", func(t *testing.T) {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
		require.NoError(t, err)

		require.NoError(t, store.Save(Credentials{Username: "alice", Password: "secret"}))
		require.NoError(t, store.Save(Credentials{Username: "bob", Password: "hunter2"}))

		creds, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "bob", creds.Username)
		assert.Equal(t, "hunter2", creds.Password)
	})
}

func TestCredentials_Valid(t *testing.T) {
	assert.True(t, Credentials{Username: "a", Password: "b"}.Valid())
	assert.False(t, Credentials{Username: "a"}.Valid())
	assert.False(t, Credentials{Password: "b"}.Valid())
	assert.False(t, Credentials{}.Valid())
}
