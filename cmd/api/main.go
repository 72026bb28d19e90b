package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/db"
	"github.com/chinmaybhatk/frappe-kit/internal/http"
	"github.com/chinmaybhatk/frappe-kit/internal/queue"
	"github.com/chinmaybhatk/frappe-kit/internal/repository"
	"github.com/chinmaybhatk/frappe-kit/internal/service"
)

func main() {
	log.Println("Starting Provisioner Service...")

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	pool, err := db.NewPool(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize repositories
	requestRepo := repository.NewDemoRequestRepository(pool)
	siteRepo := repository.NewDemoSiteRepository(pool)
	conversionRepo := repository.NewConversionRepository(pool)
	referenceRepo := repository.NewReferenceRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	opsLogRepo := repository.NewOperationLogRepository(pool)

	// Initialize clients
	cloudClient, err := client.NewCloudClient(cfg.Cloud)
	if err != nil {
		log.Fatalf("Failed to configure Frappe Cloud client: %v", err)
	}
	mailerClient := client.NewMailerClient(cfg.Mailer.ServiceURL, cfg.InternalSecret)

	// Workflow queue
	workQueue := queue.New(cfg.Queue.Workers, cfg.Queue.Buffer)

	// Initialize services
	tokenService := service.NewTokenService(siteRepo, cfg)

	provisionService := service.NewProvisionService(
		cfg,
		requestRepo,
		siteRepo,
		referenceRepo,
		notificationRepo,
		opsLogRepo,
		cloudClient,
		mailerClient,
		workQueue,
	)

	conversionService := service.NewConversionService(
		cfg,
		requestRepo,
		siteRepo,
		conversionRepo,
		referenceRepo,
		notificationRepo,
		opsLogRepo,
		cloudClient,
		mailerClient,
		tokenService,
		workQueue,
	)

	sweeperService := service.NewSweeperService(
		cfg,
		requestRepo,
		siteRepo,
		notificationRepo,
		opsLogRepo,
		mailerClient,
	)

	// Scheduled maintenance jobs
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go runSweeper(sweepCtx, sweeperService)

	// Initialize HTTP server
	server := http.NewServer(cfg, pool, provisionService, conversionService, sweeperService)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop HTTP intake first so no handler enqueues work while the queue
	// drains, then stop the scheduler and drain in-flight workflows.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	stopSweeper()
	workQueue.Shutdown()

	log.Println("Server exited")
}

// runSweeper drives the scheduled jobs: stuck-request cleanup hourly,
// expiry and warning passes daily. The internal task endpoints can also
// trigger each job on demand.
func runSweeper(ctx context.Context, sweeper *service.SweeperService) {
	hourly := time.NewTicker(time.Hour)
	defer hourly.Stop()
	daily := time.NewTicker(24 * time.Hour)
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hourly.C:
			if _, err := sweeper.FailStuckRequests(ctx); err != nil {
				log.Printf("[Sweeper] Fail stuck requests: %v", err)
			}
		case <-daily.C:
			if _, err := sweeper.ExpireDemoSites(ctx); err != nil {
				log.Printf("[Sweeper] Expire demo sites: %v", err)
			}
			if _, err := sweeper.SendExpiryWarnings(ctx); err != nil {
				log.Printf("[Sweeper] Send expiry warnings: %v", err)
			}
		}
	}
}
