package encryption

import (
	"fmt"

	"havit-go/internal/catalog"
	"havit-go/internal/config"
)

// NewEncryptorFromConfig returns the snapshot encryptor for cfg.Type.
// Type "none" (or empty) returns a nil Encryptor: snapshots are uploaded
// as plain SQLite files.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (catalog.Encryptor, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
