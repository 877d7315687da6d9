package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treasurer/internal/config"
	"treasurer/internal/database"
	"treasurer/internal/events"
	"treasurer/internal/gateway"
	"treasurer/internal/jobs"
	"treasurer/internal/lock"
	"treasurer/internal/logger"
	"treasurer/internal/repository"
	"treasurer/internal/server"
	"treasurer/internal/services"
)

// @title           Treasurer API
// @version         1.0
// @description     Shared-fund dues ledger: members, payments, debts and balances.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Pipeline key for manual payments and extraction results.

const (
	allocationLockTTL = 30 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	store := repository.NewGormStore(dbManager.DB())

	locker, err := newLocker(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	publisher, err := newPublisher(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("publisher close error: %v", err)
		}
	}()

	if appConfig.PayOSChecksumKey == "" {
		log.Warn("PAYOS_CHECKSUM_KEY is empty, gateway webhooks will be rejected")
	}
	if appConfig.PipelineAPIKey == "" {
		log.Warn("PIPELINE_API_KEY is empty, manual and extraction endpoints are disabled")
	}
	gw := gateway.NewPayOSClient(appConfig.PayOSBaseURL, appConfig.PayOSClientID, appConfig.PayOSAPIKey, appConfig.PayOSChecksumKey, nil)

	// Initialize services
	policy := services.DuesPolicy{MonthlyFee: appConfig.MonthlyFee, AdminUserID: appConfig.AdminUserID}
	userService := services.NewUserService(store)
	allocationService := services.NewAllocationService(store, locker, policy, services.AllocationConfig{
		MaxAttempts: appConfig.AllocationMaxAttempts,
		Topic:       appConfig.KafkaAllocationsTopic,
	})
	paymentService := services.NewPaymentService(store, gw, allocationService, services.PaymentConfig{
		ReturnURL: appConfig.PaymentReturnURL,
		CancelURL: appConfig.PaymentCancelURL,
	})
	extractionQueue := services.NewExtractionQueue(store, userService, allocationService, appConfig.ExtractionQueueSize)

	// Background workers
	outboxSender := jobs.NewOutboxSender(store, publisher, jobs.OutboxConfig{})
	staleReaper := jobs.NewStaleReaper(store, jobs.ReaperConfig{StaleAfter: appConfig.StaleProcessingAfter})
	extractionQueue.Start(ctx)
	go outboxSender.Start(ctx)
	go staleReaper.Start(ctx)

	router := server.NewRouter(server.Deps{
		Users:          userService,
		Debts:          services.NewDebtService(store),
		Transactions:   services.NewTransactionService(store),
		Balances:       services.NewBalanceService(store, policy),
		Payments:       paymentService,
		Audit:          services.NewAuditService(store),
		Extractions:    extractionQueue,
		PipelineAPIKey: appConfig.PipelineAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Treasurer server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown error: %v", err)
	}

	outboxSender.Stop()
	staleReaper.Stop()
	extractionQueue.Wait()
	return nil
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		logger.Get().Info("REDIS_ADDR not set, using in-process allocation lock")
		return lock.NewLocal(), nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return lock.NewRedis(client, allocationLockTTL), nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Get().Info("KAFKA_BROKERS not set, allocation events are logged only")
		return events.LogPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers)
}
