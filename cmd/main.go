package main

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/config"
	"CareDesk/database"
	"CareDesk/handlers"
	"CareDesk/messaging"
	"CareDesk/repositories"
	"CareDesk/routes"
	"CareDesk/services"
	"CareDesk/storage"
	"CareDesk/utils"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.InitDB(ctx, cfg.DBURL, cfg.Env, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, database.LoadRedisConfig(cfg.RedisURL), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	redisCache, err := cache.NewCache(redisClient)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout, logger)

	var mailer services.Mailer
	if cfg.SMTP.Enabled() {
		mailer = gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password)
	} else {
		logger.Warn("SMTP_HOST not set, notification emails are disabled")
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer closeRabbit(conn, logger)

		p, err := messaging.NewPublisher(conn, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("Failed to open RabbitMQ publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("RABBITMQ_URL not set, lifecycle events are disabled")
	}

	var reports services.ReportUploader
	if cfg.Minio.Endpoint != "" {
		minioClient, err := storage.NewMinio(cfg.Minio)
		if err != nil {
			logger.Fatal("Failed to initialize MinIO client", zap.Error(err))
		}
		store := storage.NewReportStore(minioClient, cfg.Minio.Bucket, logger)
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Fatal("Failed to prepare report bucket", zap.Error(err))
		}
		reports = store
	} else {
		logger.Warn("MINIO_ENDPOINT not set, prescription report uploads are disabled")
	}

	repo := repositories.NewBookingRepository(db)
	notifier := services.NewNotificationService(mailer, cfg.SMTP.From, publisher, logger)
	directoryService := services.NewDirectoryService(backendClient, redisCache, cfg.DirectoryCacheTTL, cfg.DefaultTimeSlots, logger)
	bookingService := services.NewBookingService(repo, directoryService, logger)
	finalizerService := services.NewFinalizerService(repo, backendClient, redisCache, notifier, logger)
	paymentService := services.NewPaymentService(repo, backendClient, redisCache, finalizerService, services.PaymentConfig{
		Fee:            cfg.BookingFee,
		Currency:       cfg.Currency,
		GatewayTimeout: cfg.GatewayTimeout,
		KeySecret:      cfg.RazorpayKeySecret,
	}, logger)
	approvalService := services.NewApprovalService(backendClient, redisCache, notifier, cfg.RescheduleWindowDays, logger)
	prescriptionService := services.NewPrescriptionService(backendClient, reports, redisCache, notifier, logger)
	stockService := services.NewStockService(backendClient, logger)

	healthChecks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	handler := routes.SetupRoutes(cfg, routes.Handlers{
		Directory:    handlers.NewDirectoryHandler(directoryService, logger),
		Booking:      handlers.NewBookingHandler(bookingService, paymentService, finalizerService, logger),
		Approval:     handlers.NewApprovalHandler(approvalService, logger),
		Prescription: handlers.NewPrescriptionHandler(prescriptionService, logger),
		Stock:        handlers.NewStockHandler(stockService, logger),
		Health:       handlers.NewHealthHandler(healthChecks, redisCache.PoolStats, logger),
	}, logger)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handler,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
		IdleTimeout:    30 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		paymentService.RunSweeper(sweepCtx, cfg.SweepInterval)
	}()

	go func() {
		defer wg.Done()
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe failed", zap.Error(err))
		}
	}()

	// Graceful shutdown handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	logger.Info("Shutting down server")
	stopSweeper()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	wg.Wait()
	logger.Info("Server exited gracefully")
}

func closeRabbit(conn *amqp091.Connection, logger *zap.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
	}
}
