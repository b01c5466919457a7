package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment overrides.
const (
	EnvConfig = "TADA_CONFIG"
	EnvHome   = "TADA_HOME"
)

// Defaults are the paths used when neither flags nor the config file set them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// GetDefaults returns default paths, checking environment variables first:
//   - TADA_CONFIG: config file location (default: ~/.config/tada.toml)
//   - TADA_HOME: base directory for credentials, logs and local data (default: ~/.tada)
func GetDefaults() (Defaults, error) {
	var d Defaults
	home := ""
	needHome := os.Getenv(EnvConfig) == "" || os.Getenv(EnvHome) == ""
	if needHome {
		h, err := os.UserHomeDir()
		if err != nil {
			return d, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = h
	}

	d.ConfigPath = os.Getenv(EnvConfig)
	if d.ConfigPath == "" {
		d.ConfigPath = filepath.Join(home, ".config", "tada.toml")
	}
	d.BaseDir = os.Getenv(EnvHome)
	if d.BaseDir == "" {
		d.BaseDir = filepath.Join(home, ".tada")
	}
	return d, nil
}
