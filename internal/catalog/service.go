package catalog

import (
	"fmt"
	"io"
	"time"
)

// Service is the orchestration layer that runs batches of adds and checks
// against the catalog and answers the read-only queries the CLI needs.
type Service struct {
	database Database
	fsmgr    FilesystemManager
	hasher   Hasher
	writer   *Writer
	checker  *Checker
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	opts     Options
}

// NewService creates a Service. Check results are printed to out.
func NewService(database Database, fsmgr FilesystemManager, hasher Hasher, out io.Writer, opts Options, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database: database,
		fsmgr:    fsmgr,
		hasher:   hasher,
		writer:   NewWriter(fsmgr, hasher, logger, opts),
		checker:  NewChecker(fsmgr, hasher, out, logger, opts),
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		opts:     opts,
	}
}

// Batch is the work of one invocation.
type Batch struct {
	Operation string
	Adds      []string
	Checks    []string
}

// RunStats summarizes a committed run.
type RunStats struct {
	RunID   string
	Seq     int64 // 0 when nothing was recorded (check-only runs)
	Added   Tally
	Checked Tally
	Elapsed time.Duration
}

// Bytes returns the total bytes hashed by the run.
func (r *RunStats) Bytes() int64 {
	return r.Added.Bytes + r.Checked.Bytes
}

// Run executes every add root and then every check root inside a single
// transaction and commits once at the end. If anything fails the
// transaction is rolled back and nothing from the batch is persisted.
func (s *Service) Run(batch Batch) (*RunStats, error) {
	stats := &RunStats{RunID: s.idgen.New()}
	started := s.clock.Now()

	tx, err := s.database.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil {
			s.logger.Error("rollback failed", "run", stats.RunID, "error", err)
		}
	}()

	for _, root := range batch.Adds {
		tally, err := s.writer.Add(tx, root)
		stats.Added.Add(tally)
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", root, err)
		}
		s.logger.Info("root added", "root", root, "files", tally.Files, "bytes", tally.Bytes, "skipped", tally.Skipped)
	}

	for _, root := range batch.Checks {
		tally, err := s.checker.Check(tx, root)
		stats.Checked.Add(tally)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", root, err)
		}
		s.logger.Info("root checked", "root", root, "files", tally.Files, "bytes", tally.Bytes)
	}

	finished := s.clock.Now()

	// Check-only runs leave the store untouched.
	if len(batch.Adds) > 0 {
		run := &Run{
			ID:           stats.RunID,
			Operation:    batch.Operation,
			StartedAt:    started,
			FinishedAt:   finished,
			FilesAdded:   stats.Added.Files,
			FilesChecked: stats.Checked.Files,
			Bytes:        stats.Bytes(),
		}
		if err := tx.InsertRun(run); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
		stats.Seq = run.Seq
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	s.opts.progress().Finish()

	stats.Elapsed = finished.Sub(started)
	s.logger.Info("run committed", "run", stats.RunID, "added", stats.Added.Files, "checked", stats.Checked.Files, "bytes", stats.Bytes())
	return stats, nil
}

// Duplicates returns hash groups with at least minCount records.
func (s *Service) Duplicates(minCount, limit int) ([]*DuplicateGroup, error) {
	if minCount < 2 {
		minCount = 2
	}
	groups, err := s.database.ListDuplicates(minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("listing duplicates: %w", err)
	}
	return groups, nil
}

// Locate hashes the file at path and returns every record with the same
// content, along with the digest.
func (s *Service) Locate(path string) (string, []*Record, error) {
	digest, _, err := hashFile(s.fsmgr, s.hasher, path)
	if err != nil {
		return "", nil, err
	}

	records, err := s.database.FindRecordsByHash(digest)
	if err != nil {
		return "", nil, fmt.Errorf("finding records: %w", err)
	}
	return digest, records, nil
}

// History returns the most recent runs, newest first.
func (s *Service) History(limit int) ([]*Run, error) {
	runs, err := s.database.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
