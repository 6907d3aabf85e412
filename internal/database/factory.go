package database

import (
	"fmt"

	"havit-go/internal/config"
)

// NewDatabaseFromConfig opens the catalog store named by the database
// config. A non-empty pathOverride (the --db flag) replaces cfg.Path and
// forces the sqlite type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, pathOverride string) (*SQLiteDatabase, error) {
	if pathOverride != "" {
		return NewSQLiteDatabase(pathOverride)
	}

	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite database")
		}
		return NewSQLiteDatabase(cfg.Path)
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
