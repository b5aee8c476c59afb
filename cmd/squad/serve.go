package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/squad/internal/config"
	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/planwatch"
	"github.com/ShayCichocki/squad/internal/server"
	"github.com/ShayCichocki/squad/internal/state"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDBPath     string
	servePlanDir    string
	serveDebugLog   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination server",
	Long: `Start the Squad coordination server.

The server exposes the REST API agents use to claim and report tasks,
and operators use to manage missions. When a plan directory is
configured, plan files dropped there are ingested automatically.

Examples:
  squad serve                        # Use config defaults
  squad serve --addr :9090           # Override listen address
  squad serve --plan-dir ./plans     # Watch a plan drop directory`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a config file (overrides discovery)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Database path (overrides config)")
	serveCmd.Flags().StringVar(&servePlanDir, "plan-dir", "", "Plan drop directory (overrides config)")
	serveCmd.Flags().StringVar(&serveDebugLog, "debug-log", "", "Debug log path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	// Persistence
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := state.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Database ready at %s", cfg.Store.Path), color.FgGreen)

	// Debug logging
	logger := orchestrator.NopLogger()
	if cfg.Log.DebugPath != "" {
		logger, err = orchestrator.NewDebugLogger(cfg.Log.DebugPath)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
		printStatus("✓", fmt.Sprintf("Debug log at %s", cfg.Log.DebugPath), color.FgGreen)
	}

	// Event fan-out
	broker := events.NewBroker()
	defer broker.Close()
	go logEvents(logger, broker.SubscribeAll(256))

	coord := orchestrator.NewCoordinator(db,
		orchestrator.WithBroker(broker),
		orchestrator.WithLogger(logger),
	)

	// Plan drop directory
	if cfg.Plans.WatchDir != "" {
		watcher, err := planwatch.NewWatcher(cfg.Plans.WatchDir, coord,
			planwatch.WithLogger(logger),
			planwatch.WithPollInterval(cfg.Plans.PollInterval),
		)
		if err != nil {
			return fmt.Errorf("plan watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start plan watcher: %w", err)
		}
		defer watcher.Stop()
		printStatus("✓", fmt.Sprintf("Watching %s for plan files", cfg.Plans.WatchDir), color.FgGreen)
	}

	srv := server.NewServer(coord, db, &server.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		EnableCORS:   cfg.Server.EnableCORS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus("✓", fmt.Sprintf("Listening on %s", cfg.Server.Address), color.FgGreen)
	return srv.StartWithContext(ctx)
}

// loadServeConfig loads configuration and applies flag overrides.
func loadServeConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if serveConfigPath != "" {
		cfg, err = config.LoadFromPath(serveConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if serveAddr != "" {
		cfg.Server.Address = serveAddr
	}
	if serveDBPath != "" {
		cfg.Store.Path = serveDBPath
	}
	if servePlanDir != "" {
		cfg.Plans.WatchDir = servePlanDir
	}
	if serveDebugLog != "" {
		cfg.Log.DebugPath = serveDebugLog
	}
	return cfg, nil
}

// logEvents drains the broker subscription into the debug log.
func logEvents(logger *orchestrator.DebugLogger, ch <-chan events.Event) {
	for ev := range ch {
		logger.Log("event %s mission=%s", ev.EventType(), ev.MissionID())
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
