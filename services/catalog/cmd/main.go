package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/config"
	"github.com/carusalgiz/shop-cloudfront/pkg/db"
	"github.com/carusalgiz/shop-cloudfront/pkg/kafka"
	"github.com/carusalgiz/shop-cloudfront/pkg/metrics"
	outbox "github.com/carusalgiz/shop-cloudfront/pkg/outbox/repository"
	"github.com/carusalgiz/shop-cloudfront/pkg/outbox/worker"
	"github.com/carusalgiz/shop-cloudfront/pkg/utils"
	pb "github.com/carusalgiz/shop-cloudfront/proto/catalog"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/repository"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/service"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/transport/grpc"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	googleGrpc "google.golang.org/grpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
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

	tp, err := utils.InitTracer(ctx, cfg.TracerConfig("catalog-service"))
	if err != nil {
		logger.Fatal("Error init tracer", zap.Error(err))
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL, logger)
	if err != nil {
		logger.Fatal("Error creating new postgres DB", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	productRepository := repository.NewProductRepository(pool, logger)
	outboxRepository := outbox.NewOutboxRepository(logger)
	productService := service.NewProductService(productRepository, outboxRepository, pool, logger)
	cachedProductService := service.NewCachedProductService(productService, rdb, cfg.Redis.CacheTTL, logger)
	productHandler := grpc.NewProductHandler(cachedProductService, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("error creating kafka producer", zap.Error(err))
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepository, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	lis, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		logger.Fatal("Error listening gRPC", zap.String("port", cfg.GRPC.Port), zap.Error(err))
	}

	reg := metrics.NewRegistry()

	opts := append([]googleGrpc.ServerOption{googleGrpc.StatsHandler(otelgrpc.NewServerHandler())}, metrics.GRPCServerOptions()...)
	s := googleGrpc.NewServer(opts...)
	pb.RegisterCatalogServiceServer(s, productHandler)
	metrics.RegisterGRPC(reg, s)

	go func() {
		logger.Info("gRPC server listening", zap.String("port", cfg.GRPC.Port))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("Error serving gRPC", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Catalog Service is alive!")
	})
	app.Get("/metrics", metrics.Handler(reg))

	go func() {
		logger.Info("HTTP catalog service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.GracefulStop()
	logger.Info("gRPC service stopped")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		logger.Error("Error closing kafka producer", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Error("Error closing redis", zap.Error(err))
	}

	pool.Close()
	logger.Info("Closed db pool successfully")

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	}
}
