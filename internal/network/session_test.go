package network

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botping.session")
	signedIn := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := &Session{SelfID: 1234, Handle: "@pingbot", SignedInAt: signedIn}
	require.NoError(t, s.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), loaded.SelfID)
	assert.Equal(t, "@pingbot", loaded.Handle)
	assert.True(t, signedIn.Equal(loaded.SignedInAt))
}

func TestLoadSession_Missing(t *testing.T) {
	_, err := LoadSession(filepath.Join(t.TempDir(), "absent.session"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadSession_Invalid(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.session")
		require.NoError(t, os.WriteFile(path, []byte("self_id: [1"), 0600))

		_, err := LoadSession(path)
		assert.Error(t, err)
	})

	t.Run("no self id", func(t *testing.T) {
		path := filepath.Join(dir, "empty.session")
		require.NoError(t, os.WriteFile(path, []byte("handle: '@pingbot'\n"), 0600))

		_, err := LoadSession(path)
		assert.ErrorContains(t, err, "no self_id")
	})
}

func TestSession_SaveUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "botping.session")
	s := &Session{SelfID: 1, Handle: "@pingbot"}
	assert.Error(t, s.Save(path))
}
