package main

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"havit-go/internal/app"
	"havit-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPath returns the config file to read and whether it must exist.
// A file named with --config must exist; the default location may be absent.
// location resolves the config file from --config, the environment and
// the home directory.
func location(cmd *cobra.Command) (config.Location, error) {
	flagPath, _ := cmd.Flags().GetString("config")
	loc, err := config.Resolve(flagPath)
	if err != nil {
		return config.Location{}, fmt.Errorf("locating config: %w", err)
	}
	return loc, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loc, err := location(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loc.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

func appOptions(cmd *cobra.Command) app.Options {
	flags := cmd.Flags()
	opts := app.Options{}
	opts.DBPath, _ = flags.GetString("db")
	opts.Verbosity, _ = flags.GetCount("verbose")
	opts.SkipMissingMetadata, _ = flags.GetBool("skip-missing-metadata")
	if flags.Changed("follow-links") {
		follow, _ := flags.GetBool("follow-links")
		opts.FollowLinks = &follow
	}
	return opts
}

// newApp reads the config and creates a HavitApp. The caller must defer a.Close().
func newApp(cmd *cobra.Command) (*app.HavitApp, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.NewHavitApp(cfg, appOptions(cmd))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readPassphrase(prompt string) (string, error) {
	if pass := os.Getenv("HAVIT_PASSPHRASE"); pass != "" {
		return pass, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set HAVIT_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:          "havit",
	Short:        "Catalog files by content hash and find what you already have",
	SilenceUsage: true,
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Catalog every file under the given paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checks, _ := cmd.Flags().GetStringArray("check")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.Run(app.NewRequest(args, checks))
		return err
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check [PATH...]",
	Short: "Print how many cataloged copies each file under PATH has",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.Run(app.NewRequest(nil, args))
		return err
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the catalog schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")

		if statusOnly {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status, problem, err := app.ReadSchemaStatus(cfg, appOptions(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d of %d\n", status.Current, status.Latest)
			if problem != nil {
				fmt.Println(problem)
			}
			return nil
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report := a.Migration()
		fmt.Printf("Applied %d migration(s); schema version %d\n", len(report.Applied), report.After)
		for _, name := range report.Applied {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "List content cataloged more than once",
	RunE: func(cmd *cobra.Command, args []string) error {
		minCount, _ := cmd.Flags().GetInt("min")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.Duplicates(minCount, limit)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}

		var wasted int64
		for _, g := range groups {
			fmt.Printf("%s  %3d copies  %10s each\n", g.Hash[:16], g.Count, units.BytesSize(float64(g.Size)))
			wasted += g.Wasted()
		}
		fmt.Printf("%d group(s), %s in extra copies\n", len(groups), units.BytesSize(float64(wasted)))
		return nil
	},
}

// locate command
var locateCmd = &cobra.Command{
	Use:   "locate FILE",
	Short: "List every cataloged copy of FILE's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		digest, records, err := a.Locate(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("%s: not cataloged\n", digest)
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %10s  mtime:%s\n", r.FullPath(), units.BytesSize(float64(r.Size)), r.Mtime.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("#%d  %-9s  %s  %6d files  %10s  %s\n",
				r.Seq,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.FilesAdded,
				units.BytesSize(float64(r.Bytes)),
				duration,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := location(cmd)
		if err != nil {
			return err
		}

		catalogID := uuid.New().String()
		cfg := loc.NewCatalog(catalogID)
		if err := config.Init(loc.Path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", loc.Path)
		fmt.Printf("Catalog ID: %s\n", catalogID)
		fmt.Printf("Database:   %s\n", cfg.Database.Path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := location(cmd)
		if err != nil {
			return err
		}
		cfg, err := loc.Load()
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("# %s\n", loc.Path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an age key pair for snapshot encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("HAVIT_PASSPHRASE") == "" {
			again, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if again != pass {
				return fmt.Errorf("passphrases do not match")
			}
		}

		pub, err := app.InitKeys(cfg, pass)
		if err != nil {
			return err
		}
		fmt.Printf("Public key: %s\n", pub)
		if cfg.Encryption.Type != "age" {
			fmt.Println(`Set [encryption] type = "age" to encrypt snapshots with it.`)
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the catalog to and from vaults",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the catalog to every configured vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.SnapshotPush()
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot version %d uploaded\n", version)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull DEST",
	Short: "Download the latest catalog snapshot to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.SnapshotPull(vaultName, args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", args[0])
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default $HAVIT_CONFIG_PATH or ~/.config/havit.toml)")
	flags.String("db", "", "Catalog database file, overriding the config")
	flags.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
	flags.Bool("follow-links", true, "Follow symbolic links while walking")
	flags.Bool("skip-missing-metadata", false, "Skip files whose metadata cannot be read instead of aborting")

	// walking commands
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringArray("check", nil, "Also check PATH after adding (repeatable)")
	rootCmd.AddCommand(checkCmd)

	// queries
	rootCmd.AddCommand(dupesCmd)
	dupesCmd.Flags().Int("min", 2, "Minimum number of copies")
	dupesCmd.Flags().IntP("limit", "n", 0, "Maximum number of groups to show (0 for all)")
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	// maintenance
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "Only report the schema version")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotPullCmd)
	snapshotPullCmd.Flags().String("vault", "", "Vault to download from (default: the first configured)")
	rootCmd.AddCommand(snapshotCmd)
}
