// Package main is the entry point for the token monitor TUI.
// It loads configuration, wires the sync services and runs the Bubble Tea program.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/j-veylop/token-monitor-tui/internal/app"
	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/config"
	"github.com/j-veylop/token-monitor-tui/internal/db"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/services"
	"github.com/j-veylop/token-monitor-tui/internal/services/stream"
	"github.com/j-veylop/token-monitor-tui/internal/services/watch"
	"github.com/j-veylop/token-monitor-tui/internal/store"
	"github.com/j-veylop/token-monitor-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/token-monitor-tui/internal/ui/tabs/history"
	"github.com/j-veylop/token-monitor-tui/internal/ui/tabs/info"
	"github.com/j-veylop/token-monitor-tui/internal/ui/tabs/providers"
	"github.com/j-veylop/token-monitor-tui/internal/version"
)

const onceTimeout = 30 * time.Second

type options struct {
	once       bool
	backendURL string
	dbPath     string
}

func main() {
	var (
		showVersion bool
		showHelp    bool
		opts        options
	)

	flags := flag.NewFlagSet("tmon", flag.ContinueOnError)
	flags.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flags.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	flags.BoolVar(&opts.once, "once", false, "Refresh once and print the view state as JSON")
	flags.StringVar(&opts.backendURL, "backend", "", "Backend URL (overrides BACKEND_URL)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides DATABASE_PATH)")
	flags.Usage = printUsage

	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}
	if showHelp {
		printUsage()
		os.Exit(0)
	}

	if err := run(flags, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run(flags *flag.FlagSet, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyOverrides(cfg, flags, opts); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logCloser, err := logger.Init(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logCloser.Close()
	if cfg.LogFile == "" && !opts.once {
		// Nothing may write to the terminal under the alt screen.
		logger.Discard()
	}

	st := store.New()

	svcOpts := services.Options{CostAlertUSD: cfg.CostAlertUSD}
	switch cfg.Mode() {
	case config.ModeRemote:
		svcOpts.Backend = backend.NewClient(backend.NewHTTPTransport(
			cfg.BackendURL,
			backend.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		))

		if !opts.once {
			sc := stream.ConfigFrom(cfg)
			services.BindStream(&sc, st)
			client, err := stream.Shared(sc)
			if err != nil {
				return fmt.Errorf("failed to start event stream: %w", err)
			}
			defer func() {
				if err := stream.Destroy(); err != nil {
					logger.Warn("Closing event stream", "error", err)
				}
			}()
			svcOpts.Source = client
			svcOpts.Reconnector = client
		}

	default:
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		svcOpts.Backend = database

		if !opts.once {
			watcher, err := watch.New(cfg.WatchPaths)
			if err != nil {
				return fmt.Errorf("failed to watch %v: %w", cfg.WatchPaths, err)
			}
			defer watcher.Close()
			svcOpts.Source = watcher
		}
	}

	svcManager := services.NewManager(st, svcOpts)
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	logger.Info("Starting token monitor", "mode", cfg.Mode().String(), "version", version.GetVersion())

	if opts.once {
		return runOnce(svcManager)
	}
	return runTUI(svcManager, cfg)
}

// applyOverrides applies command-line flags on top of the loaded configuration.
func applyOverrides(cfg *config.Config, flags *flag.FlagSet, opts options) error {
	changed := false
	if flags.Changed("backend") {
		cfg.BackendURL = opts.backendURL
		cfg.StreamURL = os.Getenv("STREAM_URL")
		changed = true
	}
	if flags.Changed("db") {
		cfg.DatabasePath = opts.dbPath
		if os.Getenv("WATCH_PATHS") == "" {
			cfg.WatchPaths = nil
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return cfg.Finalize()
}

// runOnce performs a single refresh and prints the resulting view state.
func runOnce(mgr *services.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), onceTimeout)
	defer cancel()

	if err := mgr.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	out, err := json.MarshalIndent(mgr.State(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// runTUI mounts the services and blocks until the program exits.
func runTUI(mgr *services.Manager, cfg *config.Config) error {
	if err := mgr.Mount(); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	model := app.NewModel(mgr)

	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		providers.New(state),
		history.New(state, mgr, cfg.ExportDir),
		info.New(state, cfg),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`Token Monitor - token and cost usage dashboard

Usage:
  tmon [flags]

Flags:
  -h, --help        Show this help message
  -v, --version     Show version information
      --once        Refresh once and print the view state as JSON
      --backend URL Read usage from a remote backend
      --db PATH     Read usage from a local SQLite database

Keyboard Shortcuts:
  1-4             Switch between tabs (Dashboard, Providers, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate lists
  Enter           Select/confirm
  r               Refresh data
  x/X             Export history as CSV/JSON
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  BACKEND_URL                 Backend URL; empty selects local mode
  STREAM_URL                  WebSocket URL (default: derived from BACKEND_URL)
  STREAM_CLIENT_ID            Client identifier sent when subscribing
  DATABASE_PATH               SQLite database path
  WATCH_PATHS                 Comma-separated paths to watch in local mode
  EXPORT_DIR                  Directory for history exports (default: ~/.config/token-monitor/exports)
  STREAM_RECONNECT_DELAY      Reconnect backoff base (default: 1s)
  STREAM_MAX_RECONNECT_DELAY  Reconnect backoff cap (default: 30s)
  STREAM_MAX_RECONNECTS       Reconnect attempts before giving up (default: 10)
  HTTP_TIMEOUT                HTTP client timeout (default: none)
  COST_ALERT_USD              Daily cost notification threshold (default: off)
  LOG_FILE                    Log file path
  LOG_LEVEL                   debug, info, warn or error (default: info)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/token-monitor/.env
  - ~/.token-monitor/.env`)
}
