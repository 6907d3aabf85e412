package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Snapshotter copies the catalog database to vaults and back.
// The run sequence number is used as the snapshot version, so a vault
// holding a higher version than the local catalog means another copy of
// the catalog has moved ahead.
type Snapshotter struct {
	database  Database
	vaults    []Vault
	encryptor Encryptor // nil uploads plaintext
	catalogID string
	logger    Logger
}

// NewSnapshotter creates a Snapshotter. encryptor may be nil.
func NewSnapshotter(database Database, vaults []Vault, encryptor Encryptor, catalogID string, logger Logger) *Snapshotter {
	return &Snapshotter{
		database:  database,
		vaults:    vaults,
		encryptor: encryptor,
		catalogID: catalogID,
		logger:    logger,
	}
}

// Enabled reports whether any vault is configured.
func (s *Snapshotter) Enabled() bool {
	return len(s.vaults) > 0
}

// Push uploads a consistent copy of the catalog to every vault and returns
// the version it was stored under. Every vault is checked before anything
// is uploaded.
func (s *Snapshotter) Push() (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	if s.encryptor != nil && !s.encryptor.IsConfigured() {
		return 0, ErrKeysMissing
	}
	for _, v := range s.vaults {
		if err := v.ValidateSetup(); err != nil {
			return 0, fmt.Errorf("vault %s: %w", v.Name(), err)
		}
	}

	version, err := s.database.MaxRunSeq()
	if err != nil {
		return 0, fmt.Errorf("reading catalog version: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "havit-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	uploadPath := filepath.Join(tmpDir, "catalog.db")
	if err := s.database.BackupTo(uploadPath); err != nil {
		return 0, fmt.Errorf("copying catalog: %w", err)
	}

	if s.encryptor != nil {
		encPath := uploadPath + ".age"
		if err := s.encryptFile(uploadPath, encPath); err != nil {
			return 0, err
		}
		uploadPath = encPath
	}

	for _, v := range s.vaults {
		if err := putFile(v, s.catalogID, uploadPath, version); err != nil {
			return 0, fmt.Errorf("uploading snapshot to %s: %w", v.Name(), err)
		}
		s.logger.Info("snapshot uploaded", "vault", v.Name(), "version", version)
	}

	return version, nil
}

// Pull downloads the snapshot from the named vault (the first vault when
// name is empty) to dest, decrypting it with dc when dc is non-nil.
// dest must not exist.
func (s *Snapshotter) Pull(name, dest string, dc DecryptionContext) error {
	v, err := s.findVault(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("destination already exists: %s", dest)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(dest)
		}
	}()

	if dc == nil {
		if err := v.GetSnapshot(s.catalogID, out); err != nil {
			return fmt.Errorf("downloading snapshot: %w", err)
		}
	} else {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(v.GetSnapshot(s.catalogID, pw))
		}()
		err := dc.Decrypt(pr, out)
		pr.Close()
		if err != nil {
			return fmt.Errorf("decrypting snapshot: %w", err)
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing destination: %w", err)
	}
	success = true
	return nil
}

// StaleVaults returns the names of vaults that hold a newer snapshot than
// the local catalog.
func (s *Snapshotter) StaleVaults() ([]string, error) {
	if !s.Enabled() {
		return nil, nil
	}

	local, err := s.database.MaxRunSeq()
	if err != nil {
		return nil, fmt.Errorf("reading catalog version: %w", err)
	}

	var ahead []string
	for _, v := range s.vaults {
		remote, err := v.GetSnapshotVersion(s.catalogID)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot version from %s: %w", v.Name(), err)
		}
		if remote > local {
			ahead = append(ahead, v.Name())
		}
	}
	return ahead, nil
}

func (s *Snapshotter) findVault(name string) (Vault, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return s.vaults[0], nil
	}
	for _, v := range s.vaults {
		if v.Name() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unknown vault: %s", name)
}

func (s *Snapshotter) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening catalog copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating encrypted copy: %w", err)
	}
	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting catalog copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted copy: %w", err)
	}
	return nil
}

func putFile(v Vault, catalogID, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return v.PutSnapshot(catalogID, f, info.Size(), version)
}
