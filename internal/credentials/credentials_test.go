package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv(EnvToken, "")
	s := New(filepath.Join(t.TempDir(), ".tada"))
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	return s
}

func TestGet_NotLoggedIn(t *testing.T) {
	s := newStore(t)
	ti, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, ti)

	tok, err := s.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSetGetDelete(t *testing.T) {
	s := newStore(t)
	exp := s.Now().Add(time.Hour)
	require.NoError(t, s.Set("Bearer abc.def.ghi", &exp))

	info, err := os.Stat(filepath.Join(s.Dir, credFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ti, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, ti)
	assert.Equal(t, "abc.def.ghi", ti.Token)
	assert.Equal(t, "file", ti.Source)
	assert.True(t, exp.Equal(*ti.ExpiresAt))
	assert.True(t, s.Now().Equal(ti.CreatedAt))

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete(), "deleting twice is fine")
	ti, err = s.Get()
	require.NoError(t, err)
	assert.Nil(t, ti)
}

func TestSet_Empty(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Set("  ", nil))
}

func TestEnvOverride(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Set("from-file", nil))
	t.Setenv(EnvToken, "Bearer from-env")

	ti, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "env", ti.Source)
	assert.Equal(t, "from-env", ti.Token)

	require.NoError(t, s.DeleteToken())
	assert.FileExists(t, filepath.Join(s.Dir, credFileName), "env tokens leave the file alone")
}

func TestLoadToken_Expired(t *testing.T) {
	s := newStore(t)
	past := s.Now().Add(-time.Minute)
	require.NoError(t, s.SaveToken("old", &past))

	tok, err := s.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, tok)

	future := s.Now().Add(time.Minute)
	require.NoError(t, s.SaveToken("fresh", &future))
	tok, err = s.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

func TestGet_Corrupt(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(s.Dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, credFileName), []byte("{"), 0o600))
	_, err := s.Get()
	assert.ErrorContains(t, err, "parse credentials")
}
