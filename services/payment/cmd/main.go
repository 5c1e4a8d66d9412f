package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kyungseok/payment-risk-go/common/events"
	"github.com/kyungseok/payment-risk-go/common/idempotency"
	"github.com/kyungseok/payment-risk-go/common/logger"
	"github.com/kyungseok/payment-risk-go/common/messaging"
	"github.com/kyungseok/payment-risk-go/common/retry"
	"github.com/kyungseok/payment-risk-go/services/payment/api/paymentv1"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/config"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/handler"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/repository"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/risk"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/service"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/worker"
)

const serviceName = "payment-service"

func main() {
	// Config 로드
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Logger 초기화
	log, err := logger.NewLogger(serviceName, cfg.LogDevelopment)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 저장소 초기화
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []service.Option{service.WithMetrics(service.NewPrometheusMetrics(registry))}

	// Redis 연결 (선택)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		log.Info("connected to redis")

		opts = append(opts, service.WithLocker(idempotency.NewRedisStore(redisClient, serviceName), cfg.LockTTL))
	}

	// Service 초기화
	paymentService := service.NewPaymentService(
		store,
		risk.DefaultChain(),
		risk.NewContextBuilder(log, time.Now),
		log,
		opts...,
	)

	// Kafka (선택): outbox relay + 결제 요청 소비
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := messaging.NewKafkaPublisher(cfg.KafkaBrokers, log)
		if err != nil {
			log.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer publisher.Close()
		log.Info("kafka publisher initialized")

		outboxWorker := worker.NewOutboxWorker(store.Outbox(), publisher, log, cfg.OutboxInterval)
		go outboxWorker.Start(ctx)

		consumer, err := messaging.NewKafkaConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, log)
		if err != nil {
			log.Fatal("failed to create kafka consumer", zap.Error(err))
		}
		defer consumer.Close()

		eventHandler := handler.NewEventHandler(paymentService, retry.DefaultConfig(), log)
		topics := []string{string(events.EventPaymentRequested)}
		if err := consumer.Subscribe(ctx, topics, eventHandler.HandleMessage); err != nil {
			log.Fatal("failed to subscribe to topics", zap.Error(err))
		}
		log.Info("subscribed to kafka topics", zap.Strings("topics", topics))
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox relay and request consumer disabled")
	}

	// gRPC Server 시작
	grpcServer := grpc.NewServer()
	paymentv1.RegisterPaymentServiceServer(grpcServer, handler.NewGRPCHandler(paymentService, log))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(paymentv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	go func() {
		log.Info("grpc server starting", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	// HTTP Server 시작
	mux := http.NewServeMux()
	handler.NewHTTPHandler(paymentService, log).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http server starting", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	cancel() // outbox worker, consumer 종료
	log.Info("server stopped")
}

// openStore 설정에 따라 Postgres 또는 인메모리 저장소 생성
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, func()) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		return store, func() {}
	}

	// PostgreSQL 연결
	db, err := sql.Open("postgres", cfg.DBDSN)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("connected to database")

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, db, "up"); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		log.Info("database migrations applied")
	}

	return repository.NewPostgresStore(db), func() { db.Close() }
}
