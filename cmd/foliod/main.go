// Package main is the entry point for the foliod contact section daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmylchreest/folio/internal/config"
	"github.com/jmylchreest/folio/internal/daemon"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/folio/config.toml)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	outboxPath := flag.String("outbox-file", "", "Path to outbox file (default: ~/.local/share/folio/outbox.jsonl)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("foliod version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}

	if err := config.LoadEnvFiles(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		logger.Warn("failed to load env file", "error", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	if cfg.Outbox.Enabled && *outboxPath == "" {
		if err := config.EnsureDataDir(); err != nil {
			logger.Error("failed to create data directory", "error", err)
			os.Exit(1)
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: path,
		OutboxPath: *outboxPath,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting foliod", "version", version, "listen", cfg.Server.Listen)
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}
