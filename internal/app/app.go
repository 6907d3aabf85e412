package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"havit-go/internal/catalog"
	"havit-go/internal/config"
	"havit-go/internal/database"
	"havit-go/internal/database/migrations"
	"havit-go/internal/encryption"
	"havit-go/internal/fs"
	"havit-go/internal/hash"
	"havit-go/internal/vault"
)

// Options carries command-line settings that override or extend the config.
type Options struct {
	// DBPath, when set, names the SQLite file to use instead of the
	// configured database.
	DBPath string
	// Verbosity is the number of -v flags: 0 logs warnings, 1 adds info
	// and a run summary, 2 adds debug.
	Verbosity int
	// FollowLinks overrides walk.follow_links when non-nil.
	FollowLinks *bool
	// SkipMissingMetadata forces catalog.on_missing_metadata = "skip".
	SkipMissingMetadata bool

	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}

// HavitApp is the application layer between the CLI and catalog.Service.
// It constructs all dependencies from config, migrates the store before
// anything else touches it, and closes everything on Close.
type HavitApp struct {
	cfg       *config.Config
	opts      Options
	runID     string
	db        *database.SQLiteDatabase
	migration *migrations.Report
	service   *catalog.Service
	snapshots *catalog.Snapshotter
	encryptor catalog.Encryptor
	logger    *slog.Logger
	logFile   *os.File
}

// NewHavitApp creates a fully wired HavitApp from the given config.
// The store is opened and migrated; if either fails nothing else runs.
// The caller must call Close when done.
func NewHavitApp(cfg *config.Config, opts Options) (*HavitApp, error) {
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := catalog.UUIDGenerator{}.New()
	logger, logFile, err := newLogger(cfg.LogDir, runID, opts.Verbosity, opts.stderr())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &HavitApp{
		cfg:     cfg,
		opts:    opts,
		runID:   runID,
		logger:  logger,
		logFile: logFile,
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.FollowLinks != nil {
		cfg.Walk.FollowLinks = *opts.FollowLinks
	}
	if opts.SkipMissingMetadata {
		cfg.Catalog.OnMissingMetadata = catalog.SkipOnMissingMetadata.String()
	}
}

func (a *HavitApp) wire() error {
	db, err := database.NewDatabaseFromConfig(a.cfg.Database, a.opts.DBPath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	a.db = db

	report, err := migrations.MigrateUp(db.DB(), migrations.Options{
		UniquePaths: a.cfg.Database.UniquePaths,
		Log:         &migrateLogger{l: a.logger},
	})
	if err != nil {
		return fmt.Errorf("migrating catalog: %w", err)
	}
	a.migration = report
	if len(report.Applied) > 0 {
		a.logger.Info("schema migrated", "from", report.Before, "to", report.After, "applied", len(report.Applied))
	}

	hasher, err := hash.New(a.cfg.Hash.Algorithm)
	if err != nil {
		return err
	}
	policy, err := catalog.ParseMetadataPolicy(a.cfg.Catalog.OnMissingMetadata)
	if err != nil {
		return err
	}

	vaults, err := vault.NewVaultsFromConfig(a.cfg.Vaults)
	if err != nil {
		return fmt.Errorf("creating vaults: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	logger := &slogAdapter{l: a.logger}
	a.snapshots = catalog.NewSnapshotter(db, vaults, enc, a.cfg.CatalogID, logger)

	opts := catalog.Options{
		FollowLinks:       a.cfg.Walk.FollowLinks,
		MetadataPolicy:    policy,
		CanonicalizePaths: a.cfg.Catalog.CanonicalizePaths,
		Progress:          newProgress(a.opts.stderr()),
	}
	fsmgr := fs.NewOSFilesystemManager(a.cfg.Walk.Ignore)
	a.service = catalog.NewService(db, fsmgr, hasher, a.opts.stdout(), opts, logger, catalog.RealClock{}, runIDs(a.runID))
	return nil
}

// warnIfStale reports vaults holding a newer snapshot than the local
// catalog, before a write that would diverge from it. It never fails the
// run: the vault may simply be offline.
func (a *HavitApp) warnIfStale() {
	stale, err := a.snapshots.StaleVaults()
	if err != nil {
		a.logger.Warn("could not read snapshot versions", "error", err)
		return
	}
	for _, name := range stale {
		a.logger.Warn("vault holds a newer snapshot than the local catalog", "vault", name)
	}
}

// runIDs hands the process's run id to the service, so log lines and the
// runs table carry the same id.
type runIDs string

func (r runIDs) New() string { return string(r) }

// Migration returns what the migrator did when the app was opened.
func (a *HavitApp) Migration() *migrations.Report {
	return a.migration
}

// Run executes the request's adds and checks in one transaction. Check
// results go to stdout, the throughput line to stderr. After a committed
// add, the catalog is pushed to every configured vault.
func (a *HavitApp) Run(req *Request) (*catalog.RunStats, error) {
	if req.Mutates() {
		a.warnIfStale()
	}
	stats, err := a.service.Run(req.Batch())
	if err != nil {
		return nil, err
	}

	stderr := a.opts.stderr()
	fmt.Fprintln(stderr, throughput(stats.Bytes(), stats.Elapsed))
	if a.opts.Verbosity > 0 {
		fmt.Fprintf(stderr, "added %d file(s), skipped %d, checked %d\n", stats.Added.Files, stats.Added.Skipped, stats.Checked.Files)
	}

	if req.Mutates() && a.snapshots.Enabled() {
		if _, err := a.snapshots.Push(); err != nil {
			return stats, fmt.Errorf("catalog committed but snapshot upload failed: %w", err)
		}
	}
	return stats, nil
}

// Duplicates returns hash groups with at least minCount records.
func (a *HavitApp) Duplicates(minCount, limit int) ([]*catalog.DuplicateGroup, error) {
	return a.service.Duplicates(minCount, limit)
}

// Locate returns the digest of the file at path and every record sharing it.
func (a *HavitApp) Locate(path string) (string, []*catalog.Record, error) {
	return a.service.Locate(path)
}

// History returns the most recent runs.
func (a *HavitApp) History(limit int) ([]*catalog.Run, error) {
	return a.service.History(limit)
}

// SnapshotPush uploads the catalog to every vault now.
func (a *HavitApp) SnapshotPush() (int64, error) {
	if !a.snapshots.Enabled() {
		return 0, fmt.Errorf("no vaults configured")
	}
	a.warnIfStale()
	return a.snapshots.Push()
}

// SnapshotPull downloads the latest snapshot from the named vault (the
// first one when empty) to dest. When snapshots are encrypted, passphrase
// is called to unlock the private key.
func (a *HavitApp) SnapshotPull(vaultName, dest string, passphrase func() (string, error)) error {
	var dc catalog.DecryptionContext
	if a.encryptor != nil {
		if !a.encryptor.IsConfigured() {
			return catalog.ErrKeysMissing
		}
		pass, err := passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		dc, err = a.encryptor.Unlock(pass)
		if err != nil {
			return err
		}
	}
	return a.snapshots.Pull(vaultName, dest, dc)
}

// Close closes the store and the log file.
func (a *HavitApp) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ReadSchemaStatus reports the store's schema version without migrating
// it. problem describes why the store is not usable as is (behind, dirty or
// too new) and is nil for an up-to-date store.
func ReadSchemaStatus(cfg *config.Config, opts Options) (status migrations.Status, problem error, err error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, opts.DBPath)
	if err != nil {
		return status, nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer db.Close()

	status, err = migrations.ReadStatus(db.DB())
	if err != nil {
		return status, nil, err
	}
	return status, migrations.CheckDBMigrationStatus(db.DB()), nil
}

// InitKeys generates the age key pair named in cfg and returns the public key.
func InitKeys(cfg *config.Config, passphrase string) (string, error) {
	enc := encryption.NewAgeEncryptor(cfg.Encryption)
	if err := enc.Setup(passphrase); err != nil {
		return "", fmt.Errorf("generating keys: %w", err)
	}
	return enc.PublicKey()
}
