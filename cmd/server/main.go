/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement engine server. Handles configuration,
  dependency injection, the cron scheduler, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Initialize SQLite store
  3. Build the financial calculator from configured settings
  4. Create API handler and router
  5. Start the cron scheduler (unless disabled)
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (see config/config.go). Flags override:
  -port    HTTP server port
  -db      SQLite database path ( ":memory:" for in-memory )

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, waiting for in-flight jobs
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/settlement.db"

  # Run on different port
  PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Nightly settlement jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/driveway/settlement-engine/api"
	"github.com/driveway/settlement-engine/config"
	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/store/sqlite"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build the calculator from configured settings
	settings, err := cfg.FinancialSettings()
	if err != nil {
		log.Fatalf("Invalid financial settings: %v", err)
	}
	calc, err := settlement.NewCalculator(settings)
	if err != nil {
		log.Fatalf("Failed to build calculator: %v", err)
	}

	// Initialize handler and router
	handler := api.NewHandler(store, calc)
	router := api.NewRouter(handler)

	// Scheduler
	var scheduler *api.Scheduler
	if cfg.SchedulerEnabled {
		scheduler, err = api.NewScheduler(handler, api.SchedulerConfig{
			PayoutSchedule:     cfg.PayoutJobSchedule,
			SyncTotalsSchedule: cfg.SyncTotalsJobSchedule,
		})
		if err != nil {
			log.Fatalf("Failed to build scheduler: %v", err)
		}
		scheduler.Start()
	} else {
		log.Println("[Scheduler] Disabled by configuration")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // backfill runs can be slow
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Println("Server stopped")
}
