package catalog_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"havit-go/internal/catalog"
	"havit-go/internal/database"
	"havit-go/internal/testutil"
)

func openSnapshot(t *testing.T, path string) *database.SQLiteDatabase {
	t.Helper()
	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotter_PushPull(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	h.fsmgr.AddFile("/d/a", []byte("a"))
	h.fsmgr.AddFile("/d/b", []byte("b"))
	stats := h.add(t, "/d")

	primary := testutil.NewTestVault("primary")
	secondary := testutil.NewTestVault("secondary")
	snap := catalog.NewSnapshotter(h.db, []catalog.Vault{primary, secondary}, nil, "cat-1", h.logger)

	version, err := snap.Push()
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if version != stats.Seq {
		t.Errorf("Push() version = %d, want run seq %d", version, stats.Seq)
	}
	for _, v := range []catalog.Vault{primary, secondary} {
		got, _ := v.GetSnapshotVersion("cat-1")
		if got != version {
			t.Errorf("%s version = %d, want %d", v.Name(), got, version)
		}
	}

	t.Run("plain pull", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "restored.db")
		if err := snap.Pull("", dest, nil); err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		restored := openSnapshot(t, dest)
		if n, _ := restored.CountRecords(); n != 2 {
			t.Errorf("restored record count = %d, want 2", n)
		}
	})

	t.Run("named vault", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "restored.db")
		if err := snap.Pull("secondary", dest, nil); err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("destination missing: %v", err)
		}
	})

	t.Run("unknown vault", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "restored.db")
		if err := snap.Pull("elsewhere", dest, nil); err == nil {
			t.Error("Pull() from unknown vault expected error")
		}
	})

	t.Run("destination exists", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "restored.db")
		if err := os.WriteFile(dest, []byte("keep me"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := snap.Pull("", dest, nil); err == nil {
			t.Fatal("Pull() over existing file expected error")
		}
		if data, _ := os.ReadFile(dest); string(data) != "keep me" {
			t.Error("existing destination was modified")
		}
	})
}

func TestSnapshotter_Encrypted(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	h.fsmgr.AddFile("/d/a", []byte("a"))
	h.add(t, "/d")

	vault := testutil.NewTestVault("primary")
	enc := testutil.NewTestEncryptor()
	snap := catalog.NewSnapshotter(h.db, []catalog.Vault{vault}, enc, "cat-1", h.logger)

	if _, err := snap.Push(); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	var stored bytes.Buffer
	if err := vault.GetSnapshot("cat-1", &stored); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if strings.HasPrefix(stored.String(), "SQLite format 3") {
		t.Error("stored snapshot is plaintext")
	}

	dc, err := enc.Unlock("ignored")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	dest := filepath.Join(t.TempDir(), "restored.db")
	if err := snap.Pull("", dest, dc); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	restored := openSnapshot(t, dest)
	if n, _ := restored.CountRecords(); n != 1 {
		t.Errorf("restored record count = %d, want 1", n)
	}

	t.Run("pull without a decryption context keeps ciphertext", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "raw.db")
		if err := snap.Pull("", dest, nil); err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		data, _ := os.ReadFile(dest)
		if !bytes.Equal(data, stored.Bytes()) {
			t.Error("raw pull differs from stored object")
		}
	})
}

func TestSnapshotter_MissingSnapshot(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	snap := catalog.NewSnapshotter(db, []catalog.Vault{testutil.NewTestVault("primary")}, nil, "cat-1", catalog.NewNopLogger())

	dest := filepath.Join(t.TempDir(), "restored.db")
	err := snap.Pull("", dest, nil)
	if !errors.Is(err, catalog.ErrSnapshotNotFound) {
		t.Fatalf("Pull() error = %v, want ErrSnapshotNotFound", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial destination left behind")
	}
}

func TestSnapshotter_StaleVaults(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	h.fsmgr.AddFile("/d/a", []byte("a"))
	h.add(t, "/d")

	current := testutil.NewTestVault("current")
	ahead := testutil.NewTestVault("ahead")
	snap := catalog.NewSnapshotter(h.db, []catalog.Vault{current, ahead}, nil, "cat-1", h.logger)
	if _, err := snap.Push(); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if err := ahead.PutSnapshot("cat-1", strings.NewReader("x"), 1, 99); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	stale, err := snap.StaleVaults()
	if err != nil {
		t.Fatalf("StaleVaults() error = %v", err)
	}
	if len(stale) != 1 || stale[0] != "ahead" {
		t.Errorf("StaleVaults() = %v, want [ahead]", stale)
	}
}

func TestSnapshotter_NoVaults(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	snap := catalog.NewSnapshotter(db, nil, nil, "cat-1", catalog.NewNopLogger())

	if snap.Enabled() {
		t.Error("Enabled() = true with no vaults")
	}
	if v, err := snap.Push(); err != nil || v != 0 {
		t.Errorf("Push() = %d, %v, want 0, nil", v, err)
	}
	if stale, err := snap.StaleVaults(); err != nil || stale != nil {
		t.Errorf("StaleVaults() = %v, %v", stale, err)
	}
	if err := snap.Pull("", filepath.Join(t.TempDir(), "x.db"), nil); err == nil {
		t.Error("Pull() with no vaults expected error")
	}
}
