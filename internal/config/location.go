package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted by Resolve.
const (
	EnvConfigPath = "HAVIT_CONFIG_PATH"
	EnvHome       = "HAVIT_HOME"
)

// Location is where the config file lives and which base directory holds
// catalog data when the file does not name one.
type Location struct {
	Path    string
	BaseDir string
	// Required is set when the file was named on the command line. A
	// missing file is then an error instead of a request for defaults.
	Required bool
}

// Resolve picks the config file and base directory. flagPath (the value of
// --config) wins over HAVIT_CONFIG_PATH, which wins over
// ~/.config/havit.toml. HAVIT_HOME replaces ~/.local/share/havit.
func Resolve(flagPath string) (Location, error) {
	loc := Location{
		Path:     flagPath,
		BaseDir:  os.Getenv(EnvHome),
		Required: flagPath != "",
	}
	if loc.Path == "" {
		loc.Path = os.Getenv(EnvConfigPath)
	}
	if loc.Path != "" && loc.BaseDir != "" {
		return loc, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Location{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if loc.Path == "" {
		loc.Path = filepath.Join(home, ".config", "havit.toml")
	}
	if loc.BaseDir == "" {
		loc.BaseDir = filepath.Join(home, ".local", "share", "havit")
	}
	return loc, nil
}

// Load reads the config at l.Path. See Load for the missing-file rules.
func (l Location) Load() (*Config, error) {
	return Load(l.Path, l.BaseDir, l.Required)
}

// NewCatalog returns the config written by `havit config init`: a new
// catalog whose database, keys and logs live under the base directory.
func (l Location) NewCatalog(catalogID string) *Config {
	cfg := NewConfig(catalogID, l.BaseDir)
	cfg.Database.Path = filepath.Join(l.BaseDir, DefaultDatabasePath)
	return cfg
}
