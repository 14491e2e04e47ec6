package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"doc-sync/auth"
	"doc-sync/domain"
	"doc-sync/infrastructure/storage"
	"doc-sync/infrastructure/websocket"
	"doc-sync/internal"
	"doc-sync/observability"
	"doc-sync/runtime"
	"doc-sync/runtime/workers"
	"doc-sync/services"
	"doc-sync/sink"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Master terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeCfg := bluge.DefaultConfig(config.BlugeFilepath)
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	store := storage.NewStore(db, blugeWriter, logger)

	// 3. Setup Supervision & Orchestration
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry(logger, store)
	monitoring := observability.NewMonitoringManager(logger, registry)

	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry, monitoring,
		config.BufferSize, config.SinkTimeout,
	)
	orchestrator.RegisterSinks(
		sink.NewTelemetrySink(monitoring),
	)
	orchestrator.AddWorker(
		workers.NewMonitoringWorker(monitoring),
		workers.NewHeartbeatWorker(logger, monitoring, config.HeartbeatInterval),
	)

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, DocumentMapper)
	}

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Orchestrator)
	errChan := make(chan error, 2)

	// 5. Start the Engine (Workers and Fanout)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. WebSocket Server Setup
	access := services.NewAccessService(store, store)
	syncService := services.NewSyncService(registry, access, store, orchestrator)
	wsServer := websocket.NewServer(logger, syncService, auth.Verifier{}, monitoring, config.ConnectionBufferSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: wsServer.Router(),
	}

	go func() {
		logger.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Active connections get a bounded window to finish their close handshake.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// DocumentMapper renders store rows in the debug inspector. Documents show
// their name and content size; collaborator keys only carry identity.
func DocumentMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	var doc domain.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return row
	}
	if doc.ID != (domain.DocumentID{}) {
		row.EntityID = doc.ID.String()
		row.Namespace = doc.Name
		row.Detail = fmt.Sprintf("owner=%s content=%d bytes", doc.OwnerID, len(doc.Content))
		row.Timestamp = doc.UpdatedAt.Format("15:04:05")
	}
	return row
}
