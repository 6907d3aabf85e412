package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultDatabasePath is the catalog file used when neither the config
// nor --db names one. It is relative to the working directory.
const DefaultDatabasePath = "havit.sqlite"

// Config represents the main configuration for havit.
type Config struct {
	CatalogID  string           `toml:"catalog_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Hash       HashConfig       `toml:"hash"`
	Walk       WalkConfig       `toml:"walk"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Encryption EncryptionConfig `toml:"encryption"`
	Vaults     []VaultConfig    `toml:"vaults"`
}

// DatabaseConfig represents configuration for the catalog store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type        string `toml:"type"`           // "sqlite" or "memory"
	Path        string `toml:"path,omitempty"` // only used for type=sqlite
	UniquePaths bool   `toml:"unique_paths"`   // forbid cataloging the same (name, path) twice
}

// HashConfig selects the content digest. Changing it on an existing
// catalog makes old and new records incomparable.
type HashConfig struct {
	Algorithm string `toml:"algorithm"` // "blake3" (default) or "sha256"
}

// WalkConfig holds traversal settings.
type WalkConfig struct {
	FollowLinks bool     `toml:"follow_links"`
	Ignore      []string `toml:"ignore"`
}

// CatalogConfig holds record-keeping settings.
type CatalogConfig struct {
	OnMissingMetadata string `toml:"on_missing_metadata"` // "abort" (default) or "skip"
	CanonicalizePaths bool   `toml:"canonicalize_paths"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for a snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// Defaults returns the settings used for anything a config file leaves out.
func Defaults() *Config {
	return &Config{
		Database:   DatabaseConfig{Type: "sqlite", Path: DefaultDatabasePath},
		Hash:       HashConfig{Algorithm: "blake3"},
		Walk:       WalkConfig{FollowLinks: true},
		Catalog:    CatalogConfig{OnMissingMetadata: "abort"},
		Encryption: EncryptionConfig{Type: "none"},
	}
}

// NewConfig creates a new Config with the provided values, default key
// paths and defaults for everything else.
func NewConfig(catalogID, baseDir string) *Config {
	cfg := Defaults()
	cfg.CatalogID = catalogID
	cfg.BaseDir = baseDir
	cfg.LogDir = filepath.Join(baseDir, "log")
	cfg.Encryption.PublicKeyPath = filepath.Join(baseDir, "keys", "havit.pub")
	cfg.Encryption.PrivateKeyPath = filepath.Join(baseDir, "keys", "havit.key")
	return cfg
}

// Validate checks values that would otherwise fail late, half way into a run.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path required for sqlite database")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database type: %q", c.Database.Type)
	}

	switch c.Catalog.OnMissingMetadata {
	case "", "abort", "skip":
	default:
		return fmt.Errorf("catalog.on_missing_metadata must be \"abort\" or \"skip\", got %q", c.Catalog.OnMissingMetadata)
	}

	if len(c.Vaults) > 0 && c.CatalogID == "" {
		return fmt.Errorf("catalog_id required when vaults are configured (run 'havit config init')")
	}
	seen := make(map[string]bool)
	for _, v := range c.Vaults {
		if v.Name == "" {
			return fmt.Errorf("vault of type %q has no name", v.Type)
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate vault name: %s", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys absent from the
// input keep their default values.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
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

// Load reads the config at path. When the file does not exist and
// required is false, defaults rooted at baseDir are returned instead;
// an explicitly named config file must exist.
func Load(path, baseDir string, required bool) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return NewConfig("", baseDir), nil
		}
		return nil, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
