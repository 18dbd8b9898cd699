package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/questcore/internal/app"
	"github.com/roach88/questcore/internal/catalog"
	"github.com/roach88/questcore/internal/config"
	"github.com/roach88/questcore/internal/metrics"
	"github.com/roach88/questcore/internal/store"
	fsstore "github.com/roach88/questcore/internal/store/firestore"
	"github.com/roach88/questcore/internal/store/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string

	// Config is loaded from .env and the environment before any command
	// runs. Flags override it.
	Config config.Config

	// ServiceOptions are appended when a command builds the app service
	// (for testing).
	ServiceOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the questcore CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questcore",
		Short: "questcore - family goals and badges",
		Long: `Track family chore goals and badge unlocks.

Goals collect progress from participants and pay XP on completion.
Badges unlock from quest-completion stats.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Database != "" {
				cfg.DBPath = opts.Database
			}
			opts.Config = cfg

			setupLogging(cmd.ErrOrStderr(), cfg.LogFormat, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides QUESTCORE_DB)")

	cmd.AddCommand(NewGoalCommand(opts))
	cmd.AddCommand(NewQuestCommand(opts))
	cmd.AddCommand(NewBadgesCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func setupLogging(w io.Writer, format string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == config.LogJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openService opens the configured store and builds the app service.
// The returned func closes the store and writes the metrics textfile.
func openService(ctx context.Context, opts *RootOptions) (*app.Service, func(), error) {
	cfg := opts.Config
	logger := slog.Default()

	var repo store.Repository
	switch cfg.Store {
	case config.StoreFirestore:
		fs, err := fsstore.Open(ctx, fsstore.Config{
			ProjectID:       cfg.FirebaseProject,
			CredentialsFile: cfg.FirebaseCredentials,
		}, fsstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		repo = fs
	default:
		db, err := sqlite.Open(cfg.DBPath, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		repo = db
	}

	loc, err := cfg.Location()
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	recorder := metrics.NewRecorder()
	svcOpts := []app.Option{
		app.WithLogger(logger),
		app.WithLocation(loc),
		app.WithMetrics(recorder),
	}
	if cfg.CatalogDir != "" {
		cat, err := catalog.LoadDir(cfg.CatalogDir)
		if err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("load badge catalog: %w", err)
		}
		svcOpts = append(svcOpts, app.WithCatalog(cat))
	}
	svcOpts = append(svcOpts, opts.ServiceOptions...)

	closeFn := func() {
		if cfg.MetricsFile != "" {
			if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}
	return app.New(repo, svcOpts...), closeFn, nil
}

// withService runs fn against an open service and maps a failure to open
// it to a command error.
func withService(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx := commandContext(cmd)
	svc, closeFn, err := openService(ctx, opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err, nil)
	}
	defer closeFn()
	return fn(ctx, svc)
}
