/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the point-of-sale ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Initialize structured logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional config file (yaml, toml or json)
  -port    HTTP server port, overrides config when set
  -db      SQLite database path, overrides config when set
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=./pos.yaml

  # Run in-memory without authentication
  POS_AUTH_DISABLED=true ./server -db=":memory:"

ENVIRONMENT:
  Every config key can be set as POS_<KEY>, see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/warp/pos-ledger/api"
	"github.com/warp/pos-ledger/config"
	"github.com/warp/pos-ledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("path", cfg.DBPath), slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize handler
	retries := cfg.PurchaseRetries
	handler, err := api.NewHandler(store, api.Options{
		Currency:        cfg.Currency,
		SearchPageSize:  cfg.SearchPageSize,
		BrowsePageSize:  cfg.BrowsePageSize,
		RankingWindow:   cfg.RankingWindow,
		PurchaseRetries: &retries,
		StrictStock:     cfg.StrictStock,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create handler", slog.Any("error", err))
		store.Close()
		os.Exit(1)
	}

	tokens := make(map[string]string, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		tokens[t.Token] = t.Caller
	}
	if cfg.Auth.Disabled {
		logger.Warn("authentication disabled, every request runs as the anonymous caller")
	}

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.StatementTimeout,
		Auth:           api.NewAuthenticator(tokens, cfg.Auth.Disabled),
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.String("db", cfg.DBPath),
			slog.String("currency", cfg.Currency),
			slog.Bool("strict_stock", cfg.StrictStock))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// The store is closed only after in-flight requests have drained.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"pos-server": func(ctx context.Context) error {
				logger.Info("shutting down server")
				shutdownErr := server.Shutdown(ctx)
				return errors.Join(shutdownErr, store.Close())
			},
		},
	)

	exitCode := <-wait
	logger.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
