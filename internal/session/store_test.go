package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
}

func TestLoadWithoutSession(t *testing.T) {
	_, err := newStore(t).Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSaveLoadClear(t *testing.T) {
	s := newStore(t)
	want := &State{
		Server:      "http://localhost:8080",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		UserID:      "u-1",
		Email:       "a@b.co",
	}
	require.NoError(t, s.Save(want))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.Email, got.Email)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, s.Clear())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, s.Clear(), "clear is idempotent")
}

func TestLoadExpiredClearsFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(&State{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}))

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Save(nil))
	assert.Error(t, s.Save(&State{}))
}

func TestLoadCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))
	_, err := s.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}
