// Package main provides the CLI entrypoint for folio.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/outbox"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		outboxFile string
		configPath string
	}
	logger *slog.Logger

	// outboxStore is nil when the outbox is disabled
	outboxStore *outbox.Store
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Contact section ambience and form submission",
	Long: `folio drives the contact section of a portfolio site.

It fades a looping ambient track in while the section is visible and out
when it is not, posts contact form submissions to a hosted form backend,
and keeps a local history of what was sent.

Running folio without a subcommand launches the interactive contact form.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		configPath := globalOpts.configPath
		if configPath == "" {
			configPath = config.ConfigPath()
		}
		if err := config.LoadEnvFiles(filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
			logger.Warn("failed to load env file", "error", err)
		}

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()

		if !cfg.Outbox.Enabled {
			return nil
		}

		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		persistence, err := outbox.NewJSONLPersistence(outboxPath())
		if err != nil {
			return fmt.Errorf("failed to initialize outbox: %w", err)
		}

		outboxStore = outbox.NewStore(persistence)
		if err := outboxStore.Hydrate(); err != nil {
			logger.Warn("failed to hydrate outbox from disk", "error", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if outboxStore != nil {
			return outboxStore.Close()
		}
		return nil
	},
	// Default to the TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.outboxFile, "outbox-file", "",
		"Path to outbox file (default: ~/.local/share/folio/outbox.jsonl)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/folio/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

func outboxPath() string {
	if globalOpts.outboxFile != "" {
		return globalOpts.outboxFile
	}
	return config.OutboxPath()
}

// requireOutbox returns the outbox store or an error when it is disabled.
func requireOutbox() (*outbox.Store, error) {
	if outboxStore == nil {
		return nil, fmt.Errorf("outbox is disabled in %s", config.ConfigPath())
	}
	return outboxStore, nil
}
