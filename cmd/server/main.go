package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/cache"
	"github.com/nukk-pain/smpain-hr/internal/config"
	"github.com/nukk-pain/smpain-hr/internal/db"
	"github.com/nukk-pain/smpain-hr/internal/ingestion"
	"github.com/nukk-pain/smpain-hr/internal/kvstore"
	"github.com/nukk-pain/smpain-hr/internal/middleware"
	"github.com/nukk-pain/smpain-hr/internal/repository"
	"github.com/nukk-pain/smpain-hr/internal/rollback"
	"github.com/nukk-pain/smpain-hr/internal/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCfg, err := config.LoadAppConfig(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	dbCfg, err := config.LoadDBConfig(".")
	if err != nil {
		log.Fatalf("Failed to load database configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Sessions and idempotency records share one badger database.
	sessions, err := kvstore.OpenBadger(kvstore.BadgerConfig{Path: appCfg.BadgerDir}, "sessions")
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer sessions.Close()
	idempotency := sessions.WithPrefix("idempotency")

	registry := prometheus.NewRegistry()
	parseCache := cache.New(appCfg.CacheCapacity, registry)

	// Create repositories
	payrollRepo := repository.NewPayrollRepository(conn)
	historyRepo := repository.NewUploadHistoryRepository(conn.Pool)

	reader := ingestion.NewReader(ingestion.ReaderOptions{
		MemoryLimitBytes: uint64(appCfg.MemoryLimitBytes),
	})
	issuer := token.NewIssuer([]byte(appCfg.TokenSecret), appCfg.SessionTTL)
	engine := rollback.NewEngine(appCfg.RollbackThreshold)

	coordinator := ingestion.NewCoordinator(
		reader, parseCache, sessions, idempotency, issuer,
		payrollRepo, historyRepo, engine,
		ingestion.CoordinatorOptions{
			SessionTTL:       appCfg.SessionTTL,
			CacheTTL:         appCfg.CacheTTL,
			IdempotencyTTL:   appCfg.IdempotencyTTL,
			BatchSize:        appCfg.BatchSize,
			CommitStrategy:   ingestion.SkipInvalid,
			RollbackStrategy: rollback.Full,
			TemplateLink:     appCfg.TemplateLink,
		},
	)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	ingestionHandler := middleware.LoggingMiddleware(ingestion.NewHTTPHandler(coordinator))

	mux := http.NewServeMux()
	mux.Handle("/api/payroll/", corsHandler.Handler(ingestionHandler))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Create HTTP server
	server := &http.Server{
		Addr:         appCfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic cleanup of expired sessions, idempotency records and cache
	// entries. Expiry is also enforced on access, so this only bounds memory.
	go func() {
		ticker := time.NewTicker(appCfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coordinator.Sweep()
			}
		}
	}()

	// Start server in a goroutine
	go func() {
		log.Printf("Starting payroll ingestion server on %s", appCfg.ListenAddr)
		log.Printf("Preview endpoint available at POST %s/api/payroll/preview", appCfg.ListenAddr)
		log.Printf("Confirm endpoint available at POST %s/api/payroll/confirm", appCfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
