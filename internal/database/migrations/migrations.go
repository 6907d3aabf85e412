package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"
)

//go:embed files/*.sql
var migrationFiles embed.FS

const uniqueIndexName = "unique_fullpath"

var (
	// ErrSchemaTooNew means the store was migrated by a newer binary.
	ErrSchemaTooNew = errors.New("catalog schema is newer than this binary")

	// ErrDirty means a previous migration failed part way and the store
	// needs manual attention.
	ErrDirty = errors.New("catalog schema is dirty")

	// ErrDuplicatePaths means a unique (name, path) index could not be
	// built because the same full path is cataloged more than once.
	ErrDuplicatePaths = errors.New("catalog holds duplicate full paths")
)

// dedupeHint tells the operator how to clear ErrDuplicatePaths. The oldest
// record of each full path is kept.
const dedupeHint = "remove the extra rows with " +
	"`DELETE FROM files WHERE id NOT IN (SELECT MIN(id) FROM files GROUP BY name, path)` " +
	"and rerun `havit migrate`"

// Options tunes MigrateUp.
type Options struct {
	// UniquePaths keeps a unique index on (name, path) so the same file
	// cannot be cataloged twice. It is dropped again when false.
	UniquePaths bool

	// Log receives golang-migrate's progress messages. May be nil.
	Log migrate.Logger
}

// Report describes what MigrateUp did.
type Report struct {
	Before  uint // 0 for a store that was never migrated
	After   uint
	Applied []string
}

// Status is the schema state of a store.
type Status struct {
	Current uint // 0 when never migrated
	Latest  uint
	Dirty   bool
}

// Pending returns how many migrations have not been applied.
func (s Status) Pending() uint {
	if s.Current >= s.Latest {
		return 0
	}
	return s.Latest - s.Current
}

// MigrateUp applies pending migrations one at a time and then brings the
// unique-path index in line with opts. A store whose version is beyond the
// newest embedded migration is rejected with ErrSchemaTooNew before
// anything is written. If a migration fails, the version marker is reset
// to the last migration that applied cleanly and the error is returned.
func MigrateUp(db *sql.DB, opts Options) (*Report, error) {
	m, src, err := newMigrate(db, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: that would close db, which the caller owns.

	current, dirty, err := readVersion(m)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, fmt.Errorf("%w at version %d (a previous migration failed)", ErrDirty, current)
	}

	pending, latest, err := pendingAfter(src, current)
	if err != nil {
		return nil, err
	}
	if current > int(latest) {
		return nil, fmt.Errorf("%w: store is at version %d, newest known is %d", ErrSchemaTooNew, current, latest)
	}

	report := &Report{Before: versionOrZero(current)}
	for _, mig := range pending {
		if err := m.Steps(1); err != nil {
			if ferr := m.Force(current); ferr != nil {
				err = errors.Join(err, fmt.Errorf("resetting version to %d: %w", current, ferr))
			}
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w (%s): %w", ErrDuplicatePaths, dedupeHint, err)
			}
			return report, fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.name, err)
		}
		current = int(mig.version)
		report.Applied = append(report.Applied, mig.name)
	}
	report.After = versionOrZero(current)

	if err := ensureUniqueIndex(db, opts.UniquePaths); err != nil {
		return report, err
	}
	return report, nil
}

// CheckDBMigrationStatus verifies that the database schema is up-to-date.
// Returns nil if the database is at the latest version.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}

	switch {
	case st.Dirty:
		return fmt.Errorf("%w at version %d (a previous migration failed)", ErrDirty, st.Current)
	case st.Current == 0:
		return fmt.Errorf("database has no schema version (needs migration)")
	case st.Current < st.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			st.Current, st.Latest, st.Pending())
	case st.Current > st.Latest:
		return fmt.Errorf("%w: database version %d is ahead of binary version %d",
			ErrSchemaTooNew, st.Current, st.Latest)
	}
	return nil
}

// ReadStatus reports the store's schema version against the embedded
// migrations without applying anything.
func ReadStatus(db *sql.DB) (Status, error) {
	m, src, err := newMigrate(db, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	current, dirty, err := readVersion(m)
	if err != nil {
		return Status{}, err
	}
	_, latest, err := pendingAfter(src, -1)
	if err != nil {
		return Status{}, err
	}
	return Status{Current: versionOrZero(current), Latest: latest, Dirty: dirty}, nil
}

// ensureUniqueIndex creates or drops the (name, path) index. Creating it
// fails while duplicate full paths are cataloged.
func ensureUniqueIndex(db *sql.DB, enabled bool) error {
	stmt := "DROP INDEX IF EXISTS " + uniqueIndexName
	if enabled {
		stmt = "CREATE UNIQUE INDEX IF NOT EXISTS " + uniqueIndexName + " ON files(name, path)"
	}
	if _, err := db.Exec(stmt); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w (%s): %w", ErrDuplicatePaths, dedupeHint, err)
		}
		return fmt.Errorf("applying unique path option (enabled=%t): %w", enabled, err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// golang-migrate flattens driver errors into text, so the message is
// checked as well as the error chain.
func isUniqueViolation(err error) bool {
	var serr sqlite.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite.ErrConstraintUnique {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// newMigrate creates a migrate instance over db and the embedded files.
// The source driver is returned too so callers can enumerate versions.
func newMigrate(db *sql.DB, logger migrate.Logger) (*migrate.Migrate, source.Driver, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if logger != nil {
		m.Log = logger
	}
	return m, sourceDriver, nil
}

// readVersion returns the store version, -1 when nothing was ever applied.
func readVersion(m *migrate.Migrate) (int, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return -1, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get database version: %w", err)
	}
	return int(v), dirty, nil
}

func versionOrZero(v int) uint {
	if v < 0 {
		return 0
	}
	return uint(v)
}

type migration struct {
	version uint
	name    string
}

// pendingAfter lists the embedded migrations newer than current, and the
// newest version available.
func pendingAfter(src source.Driver, current int) ([]migration, uint, error) {
	version, err := src.First()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read migration files: %w", err)
	}

	var pending []migration
	for {
		if int(version) > current {
			r, name, err := src.ReadUp(version)
			if err != nil {
				return nil, 0, fmt.Errorf("reading migration %d: %w", version, err)
			}
			r.Close()
			pending = append(pending, migration{version: version, name: name})
		}

		next, err := src.Next(version)
		if errors.Is(err, os.ErrNotExist) {
			return pending, version, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to determine latest version: %w", err)
		}
		version = next
	}
}
