package testutil

import (
	"havit-go/internal/catalog"
	"havit-go/internal/encryption"
)

// NewTestEncryptor returns the masking test encryptor, which needs no keys.
func NewTestEncryptor() catalog.Encryptor {
	return encryption.NewTestEncryptor()
}
