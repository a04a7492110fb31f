package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ocrpur/ocr-gateway/config"
	"github.com/ocrpur/ocr-gateway/internal/api/rest"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/handlers"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/middleware"
	"github.com/ocrpur/ocr-gateway/internal/integration/midtrans"
	"github.com/ocrpur/ocr-gateway/internal/integration/ocrbackend"
	"github.com/ocrpur/ocr-gateway/internal/kafka"
	"github.com/ocrpur/ocr-gateway/internal/kafka/producer"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository/postgres"
	"github.com/ocrpur/ocr-gateway/internal/service"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

var log *logger.Logger

func init() {
	// A missing .env file is fine; real deployments set the environment
	_ = godotenv.Load()

	log = logger.New(logger.ParseLevel(os.Getenv("LOG_LEVEL")))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.SetOutput(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	scanMetrics := metrics.NewScanMetrics(promRegistry, log)
	billingMetrics := metrics.NewBillingMetrics(promRegistry, log)

	// Database
	dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	entitlementRepo := postgres.NewPostgresEntitlementRepository(dbPool, log)
	paymentRepo := postgres.NewPostgresPaymentRepository(dbPool, log)

	// Kafka is best-effort: billing events are observability, not state,
	// so a broker outage degrades to the no-op producer
	var billingProducer producer.BillingProducer = producer.NoOpBillingProducer{}
	if cfg.Kafka.Enabled {
		saramaProducer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Error("Failed to create Kafka producer, continuing without event publishing: %v", err)
		} else {
			billingProducer = producer.NewKafkaBillingProducer(saramaProducer, log)
		}
	}
	defer func() {
		if err := billingProducer.Close(); err != nil {
			log.Error("Error closing Kafka producer: %v", err)
		}
	}()

	// Integrations
	snapClient := midtrans.NewClient(midtrans.Config{
		ServerKey:    cfg.Midtrans.ServerKey,
		ClientKey:    cfg.Midtrans.ClientKey,
		IsProduction: cfg.Midtrans.IsProduction,
	}, log)
	backendClient := ocrbackend.NewClient(ocrbackend.Config{
		BaseURL:  cfg.OCR.BaseURL,
		AdminKey: cfg.OCR.AdminKey,
	}, log)

	// Services
	scanGate := service.NewScanGate(entitlementRepo, billingProducer, scanMetrics, log)
	paymentService := service.NewPaymentService(snapClient, paymentRepo, entitlementRepo, cfg.Server.BaseURL, billingMetrics, log)
	reconciler := service.NewSubscriptionReconciler(cfg.Midtrans.ServerKey, paymentRepo, entitlementRepo, backendClient, billingProducer, billingMetrics, log)
	userService := service.NewUserService(entitlementRepo, backendClient, backendClient, billingMetrics, log)

	// HTTP layer
	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, authenticated routes will reject all tokens")
	}
	authMiddleware := middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	})

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := rest.SetupRouter(log, promRegistry, rest.RouterDeps{
		OCR:     handlers.NewOCRHandler(scanGate, backendClient, log),
		Payment: handlers.NewPaymentHandler(paymentService, log),
		Webhook: handlers.NewWebhookHandler(reconciler, log),
		User:    handlers.NewUserHandler(userService, log),
		Auth:    authMiddleware,
	})

	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
