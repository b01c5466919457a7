package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadWrite(t *testing.T) {
	original := &Config{
		BaseDir:  "/home/user/.tada",
		LogDir:   "/home/user/.tada/log",
		LogLevel: "debug",
		Backend: BackendConfig{
			Type:      BackendSurreal,
			Endpoint:  "ws://db:8000/rpc",
			Namespace: "ns",
			Database:  "db",
			Access:    "account",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}
	require.NoError(t, m.Write(&buf, original))
	assert.NotContains(t, buf.String(), "data_file")

	got, err := m.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestManager_ReadInvalid(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(bytes.NewBufferString("base_dir = ["))
	require.Error(t, err)
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig("/data")
	assert.Equal(t, "/data/log", cfg.LogDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendLocal, cfg.Backend.Type)
	assert.Equal(t, "/data/local.json", cfg.Backend.DataFile)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	d := Defaults{ConfigPath: filepath.Join(dir, "tada.toml"), BaseDir: filepath.Join(dir, "home")}

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(d.ConfigPath, d)
		require.NoError(t, err)
		assert.Equal(t, d.BaseDir, cfg.BaseDir)
		assert.Equal(t, filepath.Join(d.BaseDir, "log"), cfg.LogDir)
		assert.Equal(t, BackendLocal, cfg.Backend.Type)
	})

	t.Run("surreal defaults", func(t *testing.T) {
		path := filepath.Join(dir, "surreal.toml")
		require.NoError(t, os.WriteFile(path, []byte("[backend]\ntype = \"surreal\"\n"), 0o644))
		cfg, err := Load(path, d)
		require.NoError(t, err)
		assert.Equal(t, "ws://localhost:8000/rpc", cfg.Backend.Endpoint)
		assert.Equal(t, "tada", cfg.Backend.Namespace)
		assert.Equal(t, "account", cfg.Backend.Access)
	})

	t.Run("unknown backend", func(t *testing.T) {
		path := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[backend]\ntype = \"firebase\"\n"), 0o644))
		_, err := Load(path, d)
		require.ErrorContains(t, err, "unknown backend type")
	})
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tada.toml")
	cfg := NewConfig("/data")

	require.NoError(t, Init(path, cfg))
	got, err := ReadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.ErrorContains(t, Init(path, cfg), "already exists")
}

func TestGetDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/tada.toml")
	t.Setenv(EnvHome, "/var/lib/tada")

	d, err := GetDefaults()
	require.NoError(t, err)
	assert.Equal(t, "/etc/tada.toml", d.ConfigPath)
	assert.Equal(t, "/var/lib/tada", d.BaseDir)
}

func TestGetDefaults_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvHome, "")

	d, err := GetDefaults()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "tada.toml"), d.ConfigPath)
	assert.Equal(t, filepath.Join(home, ".tada"), d.BaseDir)
}
