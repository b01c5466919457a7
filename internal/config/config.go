package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backend types.
const (
	BackendLocal   = "local"
	BackendSurreal = "surreal"
)

// Config represents the main configuration for todo.
type Config struct {
	BaseDir  string        `toml:"base_dir"`
	LogDir   string        `toml:"log_dir"`
	LogLevel string        `toml:"log_level"` // zerolog level name, default "info"
	Backend  BackendConfig `toml:"backend"`
}

// BackendConfig selects the managed backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BackendConfig struct {
	Type string `toml:"type"` // "local" (default) or "surreal"

	// local-specific fields
	DataFile string `toml:"data_file,omitempty"`

	// surreal-specific fields
	Endpoint  string `toml:"endpoint,omitempty"`
	Namespace string `toml:"namespace,omitempty"`
	Database  string `toml:"database,omitempty"`
	Access    string `toml:"access,omitempty"`
}

// NewConfig creates a Config rooted at baseDir using the local backend.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	b := &c.Backend
	if b.Type == "" {
		b.Type = BackendLocal
	}
	switch b.Type {
	case BackendLocal:
		if b.DataFile == "" && c.BaseDir != "" {
			b.DataFile = filepath.Join(c.BaseDir, "local.json")
		}
	case BackendSurreal:
		if b.Endpoint == "" {
			b.Endpoint = "ws://localhost:8000/rpc"
		}
		if b.Namespace == "" {
			b.Namespace = "tada"
		}
		if b.Database == "" {
			b.Database = "tada"
		}
		if b.Access == "" {
			b.Access = "account"
		}
	}
}

// Validate checks the backend section.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendLocal:
		return nil
	case BackendSurreal:
		if c.Backend.Endpoint == "" {
			return errors.New("surreal backend requires endpoint to be set")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend type: %s", c.Backend.Type)
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path if it exists and fills unset values from d.
// A missing file yields the defaults.
func Load(path string, d Defaults) (*Config, error) {
	cfg, err := ReadFromFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	case err != nil:
		return nil, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = d.BaseDir
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
