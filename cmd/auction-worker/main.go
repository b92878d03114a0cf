package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-service/internal/config"
	"auction-service/internal/domain"
	"auction-service/internal/infrastructure/leader"
	"auction-service/internal/infrastructure/minio"
	"auction-service/internal/infrastructure/mysql"
	natsbus "auction-service/internal/infrastructure/nats"
	redisstore "auction-service/internal/infrastructure/redis"
	"auction-service/internal/messages"
	"auction-service/internal/services"
	"auction-service/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction worker")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize NATS
	bus, err := natsbus.NewBus(cfg.NATS.URL, cfg.NATS.QueueGroup, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	log.Info("Connected to NATS", "url", cfg.NATS.URL)

	// Initialize MinIO
	fileStore, err := minio.NewMinioFileStore(
		cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
	if err != nil {
		log.Error("Failed to create MinIO client", "error", err)
		os.Exit(1)
	}
	if err := fileStore.EnsureBucket(ctx); err != nil {
		log.Error("Failed to ensure export bucket", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MinIO", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)

	// Initialize repositories and stores
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	checkpoints := redisstore.NewRedisCheckpointStore(rdb)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize consumers
	attempts := cfg.Worker.ConflictRetryAttempts
	jobs := services.NewJobReporter(bus, log)
	bidSync := services.NewBidSyncConsumer(auctionRepo, attempts, log)
	saga := services.NewBuyNowSaga(auctionRepo, bus, attempts, log)
	importer := services.NewImportConsumer(auctionRepo, checkpoints, jobs, bus, cfg.Worker.ImportBatchSize, log)
	bulkUpdate := services.NewBulkUpdateConsumer(auctionRepo, jobs, bus, cfg.Worker.BulkProgressInterval, attempts, log)
	exporter := services.NewExportConsumer(auctionRepo, fileStore, jobs, bus, log)
	lifecycle := services.NewUserLifecycleReactor(auctionRepo, bus, attempts, log)

	subscriptions := map[string]domain.MessageHandler{
		messages.SubjectBidPlaced:         bidSync.HandleBidPlaced,
		messages.SubjectBidRetracted:      bidSync.HandleBidRetracted,
		messages.SubjectReserveBuyNow:     saga.HandleReserve,
		messages.SubjectCompleteBuyNow:    saga.HandleComplete,
		messages.SubjectReleaseBuyNow:     saga.HandleRelease,
		messages.SubjectProcessImport:     importer.HandleImport,
		messages.SubjectProcessBulkUpdate: bulkUpdate.HandleBulkUpdate,
		messages.SubjectProcessExport:     exporter.HandleExport,
		messages.SubjectUserDeleted:       lifecycle.HandleUserDeleted,
		messages.SubjectUserSuspended:     lifecycle.HandleUserSuspended,
		messages.SubjectUserRoleChanged:   lifecycle.HandleUserRoleChanged,
		messages.SubjectUserUpdated:       lifecycle.HandleUserUpdated,
	}
	for subject, handler := range subscriptions {
		if err := bus.Subscribe(subject, handler); err != nil {
			log.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	// Reservation reaper, gated by leader election
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var reaper *services.ReservationReaper
	if cfg.Reaper.Enabled {
		reaper = services.NewReservationReaper(
			auctionRepo, bus, leaderElection, cfg.Instance.ID,
			cfg.Reaper.ReservationTTL, cfg.Reaper.ScanSpec, log)
		if err := reaper.Start(runCtx); err != nil {
			log.Error("Failed to start reservation reaper", "error", err)
			os.Exit(1)
		}

		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				became, err := leaderElection.BecomeLeader(runCtx, cfg.Instance.ID)
				if err != nil && runCtx.Err() == nil {
					log.Error("Failed to attempt leadership", "error", err)
				}
				if became {
					log.Info("Became reaper leader", "instance_id", cfg.Instance.ID)
				}
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	// Health endpoint
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-worker",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health server failed to start", "error", err)
			os.Exit(1)
		}
	}()
	log.Info("Auction worker running", "address", serverAddr, "instance_id", cfg.Instance.ID)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction worker...")
	stopRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if reaper != nil {
		if err := reaper.Stop(); err != nil {
			log.Error("Failed to stop reaper", "error", err)
		}
		if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server forced to shutdown", "error", err)
	}

	log.Info("Auction worker stopped")
}
