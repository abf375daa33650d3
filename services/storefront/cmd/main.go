package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/config"
	"github.com/carusalgiz/shop-cloudfront/pkg/db"
	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/eventloop"
	"github.com/carusalgiz/shop-cloudfront/pkg/kafka"
	"github.com/carusalgiz/shop-cloudfront/pkg/metrics"
	outbox "github.com/carusalgiz/shop-cloudfront/pkg/outbox/repository"
	"github.com/carusalgiz/shop-cloudfront/pkg/outbox/worker"
	"github.com/carusalgiz/shop-cloudfront/pkg/utils"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/cart"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/client"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/transport/http"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/transport/http/handler"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, cfg.TracerConfig("storefront-service"))
	if err != nil {
		logger.Fatal("Error init tracer", zap.Error(err))
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL, logger)
	if err != nil {
		logger.Fatal("Error creating new postgres DB", zap.Error(err))
	}

	origin := cfg.Cart.InstanceID
	if origin == "" {
		origin = uuid.NewString()
	}

	outboxRepository := outbox.NewOutboxRepository(logger)
	cartRepository := cart.NewRepository(pool, logger)
	cartService := cart.NewService(
		pool,
		cartRepository,
		outboxRepository,
		origin,
		logger,
		cart.WithIdleTTL(cfg.Cart.IdleTTL),
		cart.WithEvictInterval(cfg.Cart.EvictInterval),
	)
	cartConsumer := cart.NewConsumer(cartService, pool, logger)
	go cartService.StartEviction(ctx)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("error creating kafka producer", zap.Error(err))
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepository, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	consumerGroup := kafka.NewConsumerGroup(
		cfg.Kafka.Brokers,
		cartConsumer.GroupID(cfg.Kafka.GroupID),
		[]string{domain.TopicCartEvents},
		cartConsumer.Handle,
		logger,
	)
	go func() {
		if err := consumerGroup.Run(ctx); err != nil {
			logger.Error("cart consumer stopped", zap.Error(err))
		}
	}()

	catalogClient, err := client.NewCatalogClient(cfg.Services.CatalogRPC, cfg.GRPC.Timeout, logger)
	if err != nil {
		logger.Fatal("error creating catalog client", zap.String("url", cfg.Services.CatalogRPC), zap.Error(err))
	}

	loop := eventloop.New(logger)
	go loop.Run(ctx)

	reg := metrics.NewRegistry()
	storefrontMetrics := metrics.NewStorefront(reg)

	handlers := &http.Handlers{
		Product: handler.NewProductHandler(catalogClient, cartService, cfg.HTTP.Timeout, logger),
		Cart: handler.NewCartHandler(
			cartService,
			catalogClient,
			loop,
			cfg.HTTP.Timeout,
			logger,
			handler.WithStreamTimeout(cfg.Cart.StreamTimeout),
			handler.WithMetrics(storefrontMetrics),
		),
		Metrics: metrics.Handler(reg),
	}

	app := http.NewApp(cfg.Limiter)
	http.RegisterRoutes(app, handlers, cfg.Env == "prod")

	go func() {
		logger.Info("Storefront listening", zap.String("port", cfg.HTTP.Port), zap.String("origin", origin))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP app", zap.Error(err))
	}

	loop.Stop()

	if err := catalogClient.Close(); err != nil {
		logger.Error("Error closing catalog connection", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		logger.Error("Error closing kafka producer", zap.Error(err))
	}

	pool.Close()
	logger.Info("Closed db pool successfully")

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
