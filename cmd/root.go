package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"library-circulation/config"
	"library-circulation/library"
	"library-circulation/logger"
)

// app carries what PersistentPreRunE resolves for the subcommands.
type app struct {
	overrides config.Overrides
	cfg       *config.Config
	log       *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Library circulation service",
		Long: `Library runs a small lending desk: a catalog of books with copy counts,
students who borrow them, and the staff who issue, return and fine loans.

Data lives in three documents (users, books, loans) kept in a JSON directory,
a SQLite file or a Badger store. The first run seeds sample data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.overrides)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{
				Writer:      cmd.ErrOrStderr(),
				Format:      cfg.Logger.Format,
				Environment: cfg.App.Environment,
				Level:       logger.ParseLevel(cfg.Logger.Level),
			})
			slog.SetDefault(a.log)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.overrides.EnvFile, "env-file", "", "Path to a .env file (default .env)")
	flags.StringVar(&a.overrides.Env, "env", "", "Environment: development, staging or production")
	flags.StringVar(&a.overrides.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.overrides.LogFormat, "log-format", "", "Log format: json or text")
	flags.StringVar(&a.overrides.StorageDriver, "storage", "", "Storage driver: json, sqlite, badger or memory")
	flags.StringVar(&a.overrides.DataDir, "data-dir", "", "Directory holding the library documents")

	cmd.AddCommand(
		newServeCmd(a),
		newShellCmd(a),
		newStatsCmd(a),
		newCheckCmd(a),
		newInitCmd(a),
		newImportCmd(a),
	)

	return cmd
}

// openManager opens the configured storage and wraps it in the circulation
// service. The caller closes the manager.
func (a *app) openManager() (*library.LibraryManager, error) {
	gw, err := a.cfg.Storage.OpenGateway()
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	opts := append(a.cfg.ManagerOptions(), library.WithLogger(a.log))
	return library.NewLibraryManager(gw, opts...), nil
}

// openSeeded is openManager followed by first-run seeding.
func (a *app) openSeeded(cmd *cobra.Command) (*library.LibraryManager, error) {
	mgr, err := a.openManager()
	if err != nil {
		return nil, err
	}
	if _, err := mgr.Seed(cmd.Context()); err != nil {
		mgr.Close()
		return nil, err
	}
	return mgr, nil
}
