package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"havit-go/internal/catalog"
)

// MemoryVault keeps snapshots in memory. It is used by tests and by the
// "memory" vault type. Safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string][]byte // catalogID -> snapshot bytes
	versions  map[string]int64  // catalogID -> version
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string][]byte),
		versions:  make(map[string]int64),
	}
}

func (m *MemoryVault) Name() string {
	return m.name
}

// PutSnapshot stores the snapshot for catalogID, replacing any earlier one.
func (m *MemoryVault) PutSnapshot(catalogID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[catalogID] = data
	m.versions[catalogID] = version
	return nil
}

func (m *MemoryVault) GetSnapshot(catalogID string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.snapshots[catalogID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w for catalog %s", catalog.ErrSnapshotNotFound, catalogID)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if nothing was stored for catalogID.
func (m *MemoryVault) GetSnapshotVersion(catalogID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[catalogID], nil
}

func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements catalog.Vault
var _ catalog.Vault = (*MemoryVault)(nil)
