/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored)
  2. Initialize SQLite store and run migrations
  3. Wire the domain: accrual, validation, authorization, lifecycle
  4. Backfill calendar colors and run one accrual pass
  5. Start the cron accrual job and the HTTP server

CONFIGURATION (environment):
  LEAVE_ADDR              Listen address (default :8080)
  LEAVE_DB_PATH           SQLite path (default leave.db, ":memory:" works)
  LEAVE_CHAT_BASE_URL     Chat web API base URL
  LEAVE_CHAT_TOKEN        Chat token; empty logs notifications instead
  LEAVE_SIGNING_SECRET    Webhook signing secret; empty disables verification
  LEAVE_ACCRUAL_SCHEDULE  Cron expression for the manager accrual pass

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cron scheduler and close the database

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment parsing
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Outbound notifications
	var notifier leave.Notifier
	if cfg.ChatToken != "" {
		notifier = notify.NewChatGateway(cfg.ChatBaseURL, cfg.ChatToken)
	} else {
		log.Println("No chat token configured; notifications will be logged")
		notifier = notify.LogGateway{}
	}

	// Wire the domain
	clock := leave.SystemClock{}
	accrual := leave.NewAccrualManager(store, clock)
	validator := leave.NewValidator(clock)
	authz := leave.NewAuthorizer(store, clock)
	lifecycle := leave.NewLifecycle(store, accrual, validator, authz, notifier, clock)

	ctx := context.Background()
	if err := leave.BackfillColors(ctx, store); err != nil {
		log.Printf("Warning: color backfill failed: %v", err)
	}

	// Accrual pass now plus on schedule
	job := api.NewAccrualJob(accrual, cfg.AccrualSchedule)
	if err := job.Start(ctx); err != nil {
		log.Fatalf("Failed to start accrual job: %v", err)
	}
	defer job.Stop()

	// HTTP
	handler := api.NewHandler(lifecycle, authz, accrual, store)
	router := api.NewRouter(handler, cfg.SigningSecret)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Leave engine listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
