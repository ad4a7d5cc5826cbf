package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/rebeliceyang/lazymy/internal/app"
	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/config"
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/discovery"
	"github.com/rebeliceyang/lazymy/internal/history"
	"github.com/rebeliceyang/lazymy/internal/logger"
	"github.com/rebeliceyang/lazymy/internal/sessions"
)

// discoveryTimeout bounds the first-run scan for local servers
const discoveryTimeout = 2 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml")
	debug := pflag.Bool("debug", false, "log at debug level")
	logFile := pflag.String("log-file", "", "log file path (default: lazymy.log in the config directory)")
	pflag.Parse()

	if err := run(*configPath, *debug, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool, logFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != "" {
			return err
		}
		log.Printf("Warning: Could not load config: %v (using defaults)\n", err)
		cfg = config.GetDefaults()
	}

	dir, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to locate config directory: %w", err)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if debug {
		level = slog.LevelDebug
	}
	if logFile == "" {
		logFile = cfg.Log.File
	}
	lg, err := logger.New(level, logFile, dir)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Close() }()
	lg.Info("starting", slog.String("config_dir", dir), slog.String("log", lg.Path()))

	manager := connection.NewManager(connection.NewOpener(cfg.Performance.ConnectionPoolSize), lg.Logger)
	defer func() { _ = manager.Close() }()
	cat := catalog.New(manager, lg.Logger)

	passwords, err := sessions.NewPasswordStore(dir)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if passwords.IsUsingFallback() {
		lg.Warn("system keyring unavailable, passwords are kept in an encrypted file")
	}
	store, err := sessions.NewStore(dir, passwords, lg.Logger)
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
		seed := discovery.NewDiscoverer().Seed(ctx)
		cancel()
		if _, err := store.Create(seed); err != nil {
			lg.Warn("failed to create first session", slog.String("error", err.Error()))
		}
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.NewStore(filepath.Join(dir, history.FileName), cfg.History.MaxEntries)
		if err != nil {
			lg.Warn("query history disabled", slog.String("error", err.Error()))
			hist = nil
		} else {
			defer func() { _ = hist.Close() }()
		}
	}

	a := app.New(app.Options{
		Config:   cfg,
		Catalog:  cat,
		Manager:  manager,
		Sessions: store,
		History:  hist,
		Logger:   lg.Logger,
	})

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.MouseEnabled {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if _, err := tea.NewProgram(a, opts...).Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}

	// Warnings are invisible behind the alt screen
	if recent := lg.Recent(); len(recent) > 0 {
		fmt.Fprintf(os.Stderr, "%d warning(s) logged to %s:\n", len(recent), lg.Path())
		for _, e := range recent {
			fmt.Fprintln(os.Stderr, e.Format())
		}
	}
	return nil
}
