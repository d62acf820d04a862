package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tasklist/internal/config"
	"tasklist/internal/logger"
	"tasklist/internal/storage"
	"tasklist/internal/ui"
)

type options struct {
	configPath string
	verbose    bool
}

// env is what every command needs: config, an open store and a logger.
type env struct {
	cfg   config.Config
	store *storage.Store
	log   zerolog.Logger
	close func()
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tasklist",
		Short: "Categorised to-do lists in the terminal",
		Long: `tasklist keeps to-do lists grouped by category in a local SQLite database.

Run without arguments to open the interactive list. The category and task
subcommands operate on the same database from scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.toml (default: $TASKLIST_CONFIG or the user config dir)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr instead of the log file")

	root.AddCommand(newCategoryCmd(opts))
	root.AddCommand(newTaskCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func runTUI(opts *options) error {
	e, err := openEnv(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer e.close()
	return ui.Run(e.store, e.cfg, e.log)
}

func openEnv(opts *options, stderr io.Writer) (*env, error) {
	path := opts.configPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var log zerolog.Logger
	var closer io.Closer
	if opts.verbose {
		log, err = logger.Console(stderr, "debug")
	} else {
		log, closer, err = logger.Open(cfg.LogPath, cfg.LogLevel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Debug().Str("db_path", cfg.DBPath).Msg("database opened")

	return &env{
		cfg:   cfg,
		store: store,
		log:   log,
		close: func() {
			store.Close()
			if closer != nil {
				closer.Close()
			}
		},
	}, nil
}
