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

	"github.com/ikkim/marketplace-backend/config"
	"github.com/ikkim/marketplace-backend/internal/app/controller"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/ikkim/marketplace-backend/internal/outbox"
	"github.com/ikkim/marketplace-backend/internal/router"
	"github.com/ikkim/marketplace-backend/internal/scheduler"
	"github.com/ikkim/marketplace-backend/internal/storage"
	"github.com/ikkim/marketplace-backend/internal/websocket"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/ikkim/marketplace-backend/pkg/mail"
	"github.com/ikkim/marketplace-backend/pkg/payment/gateway"
	"github.com/ikkim/marketplace-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logger.Initialize(logger.Config{
		Level:       cfg.Server.LogLevel,
		Format:      cfg.Server.LogFormat,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting Marketplace Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   cfg.Server.LogLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if cfg.Admin.Password != "" {
		if _, err := db.SeedAdmin(db.GetDB(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Warn("Failed to seed admin", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Redis holds guest carts and revoked tokens
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Fatal("Failed to initialize Redis", err)
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:          cfg.Payment.Gateway.BaseURL,
		MerchantID:       cfg.Payment.Gateway.MerchantID,
		APIKey:           cfg.Payment.Gateway.APIKey,
		Currency:         cfg.Payment.Gateway.Currency,
		RedirectURL:      cfg.Payment.Gateway.RedirectURL,
		Timeout:          cfg.Payment.Gateway.Timeout,
		FailureThreshold: cfg.Payment.Gateway.FailureThreshold,
		OpenTimeout:      cfg.Payment.Gateway.OpenTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create payment gateway client", err)
	}

	hubDone := make(chan struct{})
	hub := websocket.NewHub()
	go hub.Run(hubDone)

	database := db.GetDB()
	blacklist := redis.NewTokenBlacklist(redis.GetClient())

	// Initialize repositories
	userRepo := repository.NewUserRepository(database)
	sellerRepo := repository.NewSellerRepository(database)
	productRepo := repository.NewProductRepository(database)
	categoryRepo := repository.NewCategoryRepository(database)
	reviewRepo := repository.NewReviewRepository(database)
	cartRepo := repository.NewCartRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)
	outboxRepo := repository.NewOutboxRepository(database)
	guestCarts := repository.NewGuestCartStore(redis.GetClient(), cfg.Session.GuestCartTTL)

	// Initialize services
	mailer := mail.New(cfg.Mail)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, hub, mailer)
	authService := service.NewAuthService(
		userRepo,
		blacklist,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo, categoryRepo)
	categoryService := service.NewCategoryService(categoryRepo, productService)
	reviewService := service.NewReviewService(reviewRepo, productService)
	sellerService := service.NewSellerService(sellerRepo, userRepo, notificationService)
	cartService := service.NewCartService(cartRepo, productService)
	guestCartService := service.NewGuestCartService(productService)
	mergeService := service.NewCartMergeService(cartRepo, database)
	orderService := service.NewOrderService(orderRepo, database, notificationService)
	exportService := service.NewOrderExportService(orderRepo)
	paymentService := service.NewPaymentService(
		paymentRepo,
		orderRepo,
		userRepo,
		gatewayClient,
		database,
		notificationService,
		cfg.Payment.Gateway.Timeout,
	)

	// Background jobs
	var publisher scheduler.EventPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := outbox.NewPublisher(outboxRepo, outbox.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("Failed to close Kafka writer", err)
			}
		}()
		publisher = kafkaPublisher
	}
	jobs := scheduler.NewScheduler(paymentService, publisher, scheduler.Config{
		ReconcileSpec:      cfg.Scheduler.ReconcileSpec,
		PendingPaymentTTL:  cfg.Scheduler.PendingPaymentTTL,
		OutboxPollInterval: cfg.Scheduler.OutboxPollInterval,
	})
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productService)
	categoryController := controller.NewCategoryController(categoryService)
	reviewController := controller.NewReviewController(reviewService)
	cartController := controller.NewCartController(cartService, guestCartService, mergeService, guestCarts)
	orderController := controller.NewOrderController(orderService, mergeService, guestCarts)
	paymentController := controller.NewPaymentController(paymentService)
	sellerController := controller.NewSellerController(sellerService)
	adminController := controller.NewAdminController(sellerService, exportService)
	notificationController := controller.NewNotificationController(notificationService, hub, cfg.CORS.AllowedOrigins)
	uploadController := controller.NewUploadController(storage.NewS3Storage(
		cfg.S3.Region,
		cfg.S3.Bucket,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.BaseURL,
	))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, blacklist, authService)

	r := router.NewRouter(
		authController,
		productController,
		categoryController,
		reviewController,
		cartController,
		orderController,
		paymentController,
		sellerController,
		adminController,
		notificationController,
		uploadController,
		authMiddleware,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	jobs.Stop()
	mailer.Close()
	close(hubDone)

	logger.Info("Server stopped successfully")
}
