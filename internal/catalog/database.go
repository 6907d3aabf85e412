package catalog

// Database provides an interface for catalog storage operations.
// Writes only happen through a Tx; the remaining methods are read-only
// queries used outside a run.
type Database interface {
	// Begin opens the single transaction a run works inside.
	Begin() (Tx, error)

	// ListDuplicates returns hash groups with at least minCount records,
	// largest groups first. limit <= 0 means no limit.
	ListDuplicates(minCount int, limit int) ([]*DuplicateGroup, error)

	// FindRecordsByHash returns every record with the given hash, oldest first.
	FindRecordsByHash(hash string) ([]*Record, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// MaxRunSeq returns the sequence number of the latest run, or 0.
	MaxRunSeq() (int64, error)

	// CountRecords returns the number of rows in the files table.
	CountRecords() (int64, error)

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the underlying connection. An open transaction is
	// rolled back by the store.
	Close() error
}

// Tx is the one transaction enclosing every add and check of a run.
// Inserts made through it are visible to later CountByHash calls on it.
type Tx interface {
	// InsertRecord inserts exactly one file record and sets rec.ID.
	// A unique violation wraps ErrDuplicateRecord, a missing table wraps
	// ErrSchemaMissing, and any affected-row count other than one wraps
	// ErrUnexpectedRowCount.
	InsertRecord(rec *Record) error

	// CountByHash returns how many records carry the given hash.
	CountByHash(hash string) (int64, error)

	// InsertRun records a completed run; rn.Seq is set on success.
	InsertRun(rn *Run) error

	Commit() error
	Rollback() error
}
