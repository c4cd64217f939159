package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/adapter/handler"
	"github.com/rl1809/inventory-ledger/internal/adapter/messaging"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/platform/observability"
	"github.com/rl1809/inventory-ledger/internal/port"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inventory-ledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tp, shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	bridge, shutdownLogging, err := observability.SetupLogging(ctx, cfg)
	if err != nil {
		return err
	}
	shutdownTelemetry := observability.JoinShutdown(shutdownTracing, shutdownLogging)

	logger, err := observability.NewLogger(cfg.LogLevel, bridge)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		return err
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		return err
	}

	policy := domain.ReductionPolicy{RejectZero: !cfg.ReductionAllowZero}

	// Notifications and cache invalidation fan out over Kafka when brokers
	// are configured.
	var (
		notifier  port.EventNotifier = messaging.NopNotifier{}
		kafkaNote *messaging.KafkaNotifier
		consumer  *messaging.InvalidationConsumer
	)
	if cfg.KafkaEnabled() {
		producer, err := messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, tp)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		kafkaNote = messaging.NewKafkaNotifier(producer, logger)
		notifier = kafkaNote

		reader, err := messaging.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		consumer = messaging.NewInvalidationConsumer(reader, redisAdapter, logger)
		logger.Info("kafka enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	// Initialize services
	replay := service.NewInventoryService(mysqlAdapter, mysqlAdapter, service.DefaultRegistry(), logger,
		service.WithFetchTimeout(cfg.EventFetchTimeout),
		service.WithPolicy(policy),
	)
	inventoryService := service.NewCachedInventoryService(replay, redisAdapter, cfg.SnapshotCacheTTL, logger)
	movementService := service.NewMovementService(mysqlAdapter, redisAdapter, redisAdapter, notifier, policy, logger)

	var wg sync.WaitGroup
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				logger.Error("invalidation consumer stopped", zap.Error(err))
			}
		}()
	}

	// Initialize gRPC server
	grpcHandler := handler.NewGRPCHandler(inventoryService, movementService, logger)
	grpcServer, healthServer := handler.NewGRPCServer(grpcHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(inventoryService, movementService, logger)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Stop HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	// Stop gRPC server
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Stop the consumer and wait for it to return
	cancel()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("failed to close kafka consumer", zap.Error(err))
		}
	}
	if kafkaNote != nil {
		if err := kafkaNote.Close(); err != nil {
			logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	logger.Info("consumers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
	logger.Info("connections closed")
	return nil
}
