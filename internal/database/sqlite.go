package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3" // SQLite driver

	"havit-go/internal/catalog"
)

// SQLiteDatabase implements the catalog Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteDatabaseFromDB(db)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
//
// The pool is limited to one connection: an in-memory database exists
// only on the connection that created it, and a run does all its work on
// a single transaction anyway. Nothing may query the database outside
// an open transaction until it is committed or rolled back.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// DB returns the underlying connection, for the migrator.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// Path returns the path the database was opened from, if any.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Begin starts the transaction a run works inside.
func (s *SQLiteDatabase) Begin() (catalog.Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &sqliteTx{tx: tx, builder: s.builder}, nil
}

// ListDuplicates returns hash groups with at least minCount records.
// Unhashed rows are never grouped.
func (s *SQLiteDatabase) ListDuplicates(minCount int, limit int) ([]*catalog.DuplicateGroup, error) {
	q := s.builder.Select("hash", "COUNT(*) AS copies", "MAX(size) AS size").
		From("files").
		Where(squirrel.NotEq{"hash": catalog.UnhashedSentinel}).
		GroupBy("hash").
		Having("COUNT(*) >= ?", minCount).
		OrderBy("copies DESC", "size DESC", "hash")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building duplicates query: %w", err)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying duplicates: %w", classify(err))
	}
	defer rows.Close()

	var groups []*catalog.DuplicateGroup
	for rows.Next() {
		g := &catalog.DuplicateGroup{}
		if err := rows.Scan(&g.Hash, &g.Count, &g.Size); err != nil {
			return nil, fmt.Errorf("scanning duplicate group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

var recordColumns = []string{"id", "name", "path", "size", "ctime", "mtime", "atime", "hash"}

// FindRecordsByHash returns every record with the given hash, oldest first.
func (s *SQLiteDatabase) FindRecordsByHash(hash string) ([]*catalog.Record, error) {
	query, args, err := s.builder.Select(recordColumns...).
		From("files").
		Where(squirrel.Eq{"hash": hash}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building records query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", classify(err))
	}
	defer rows.Close()

	var records []*catalog.Record
	for rows.Next() {
		r := &catalog.Record{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Path, &r.Size, &r.Ctime, &r.Mtime, &r.Atime, &r.Hash); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteDatabase) ListRuns(limit int) ([]*catalog.Run, error) {
	q := s.builder.Select("seq", "id", "operation", "started_at", "finished_at", "files_added", "files_checked", "bytes").
		From("runs").
		OrderBy("seq DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building runs query: %w", err)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", classify(err))
	}
	defer rows.Close()

	var runs []*catalog.Run
	for rows.Next() {
		r := &catalog.Run{}
		if err := rows.Scan(&r.Seq, &r.ID, &r.Operation, &r.StartedAt, &r.FinishedAt, &r.FilesAdded, &r.FilesChecked, &r.Bytes); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteDatabase) MaxRunSeq() (int64, error) {
	var seq int64
	if err := s.db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM runs").Scan(&seq); err != nil {
		return 0, fmt.Errorf("reading latest run: %w", classify(err))
	}
	return seq, nil
}

func (s *SQLiteDatabase) CountRecords() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", classify(err))
	}
	return n, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const (
	insertFileSQL  = "INSERT INTO files (name, path, size, ctime, mtime, atime, hash) VALUES (?, ?, ?, ?, ?, ?, ?)"
	countByHashSQL = "SELECT COUNT(*) FROM files WHERE hash = ?"
)

// sqliteTx prepares its two hot statements on first use and reuses them
// for every file of the run.
type sqliteTx struct {
	tx         *sql.Tx
	builder    squirrel.StatementBuilderType
	insertFile *sql.Stmt
	countHash  *sql.Stmt
}

func (t *sqliteTx) InsertRecord(rec *catalog.Record) error {
	if t.insertFile == nil {
		stmt, err := t.tx.Prepare(insertFileSQL)
		if err != nil {
			return classify(err)
		}
		t.insertFile = stmt
	}

	res, err := t.insertFile.Exec(rec.Name, rec.Path, rec.Size, rec.Ctime, rec.Mtime, rec.Atime, rec.Hash)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	} else if n != 1 {
		return fmt.Errorf("%w: %d", catalog.ErrUnexpectedRowCount, n)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading record id: %w", err)
	}
	rec.ID = id
	return nil
}

func (t *sqliteTx) CountByHash(hash string) (int64, error) {
	if t.countHash == nil {
		stmt, err := t.tx.Prepare(countByHashSQL)
		if err != nil {
			return 0, classify(err)
		}
		t.countHash = stmt
	}

	var n int64
	if err := t.countHash.QueryRow(hash).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (t *sqliteTx) InsertRun(rn *catalog.Run) error {
	query, args, err := t.builder.Insert("runs").
		Columns("id", "operation", "started_at", "finished_at", "files_added", "files_checked", "bytes").
		Values(rn.ID, rn.Operation, rn.StartedAt, rn.FinishedAt, rn.FilesAdded, rn.FilesChecked, rn.Bytes).
		ToSql()
	if err != nil {
		return fmt.Errorf("building run insert: %w", err)
	}

	res, err := t.tx.Exec(query, args...)
	if err != nil {
		return classify(err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run sequence: %w", err)
	}
	rn.Seq = seq
	return nil
}

func (t *sqliteTx) Commit() error {
	t.closeStatements()
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	t.closeStatements()
	return t.tx.Rollback()
}

func (t *sqliteTx) closeStatements() {
	for _, stmt := range []*sql.Stmt{t.insertFile, t.countHash} {
		if stmt != nil {
			stmt.Close()
		}
	}
	t.insertFile, t.countHash = nil, nil
}

// classify maps driver errors onto the catalog's sentinel errors. The
// driver error stays in the chain.
func classify(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.ExtendedCode == sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %w", catalog.ErrDuplicateRecord, err)
	case se.Code == sqlite3.ErrError && strings.Contains(se.Error(), "no such table"):
		return fmt.Errorf("%w: %w", catalog.ErrSchemaMissing, err)
	}
	return err
}

// Compile-time checks that the SQLite types implement the catalog interfaces
var (
	_ catalog.Database = (*SQLiteDatabase)(nil)
	_ catalog.Tx       = (*sqliteTx)(nil)
)
