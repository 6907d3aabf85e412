package testutil

import (
	"havit-go/internal/vault"
)

// NewTestVault creates an in-memory vault with the given name.
func NewTestVault(name string) *vault.MemoryVault {
	return vault.NewMemoryVault(name)
}
