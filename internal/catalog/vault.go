package catalog

import "io"

// Vault stores copies of the catalog database away from the machine.
// All operations stream so large catalogs are never held in memory.
type Vault interface {
	// Name identifies the vault in logs.
	Name() string

	// PutSnapshot stores a snapshot of the catalog identified by catalogID.
	// size is the number of bytes that will be read from r. version is
	// stored alongside for staleness checks.
	PutSnapshot(catalogID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the stored snapshot for catalogID to w.
	GetSnapshot(catalogID string, w io.Writer) error

	// GetSnapshotVersion returns the stored version, or 0 when the vault
	// holds no snapshot for catalogID.
	GetSnapshotVersion(catalogID string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}

// Encryptor protects snapshots before they leave the machine.
// Encryption needs only the public key; decryption requires unlocking the
// private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair, storing the private key encrypted with
	// passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
