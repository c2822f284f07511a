package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/simpleshop/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/simpleshop/internal/service/grpc"
	httpapi "github.com/vladislavdragonenkov/simpleshop/internal/service/http"
	"github.com/vladislavdragonenkov/simpleshop/internal/version"
)

const grpcStopTimeout = 5 * time.Second

// Run поднимает HTTP API, gRPC и сервер метрик и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	svc, err := buildServices(cfg, deps, logger)
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, cfg, svc.customers, logger); err != nil {
		return err
	}

	// Kafka необязательна: без неё outbox разгружается в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokerList(), logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	stopOutbox, outboxDone := startWorker(ctx, newOutboxWorker(cfg, deps.outbox, kafkaProducer, logger))
	defer shutdownWorker("outbox", stopOutbox, outboxDone, logger)

	stopCleanup, cleanupDone := startWorker(ctx, newOutboxCleanupWorker(cfg, deps.outboxPurger, logger))
	defer shutdownWorker("outbox-cleanup", stopCleanup, cleanupDone, logger)

	grpcServer, healthServer := newGRPCServer(svc, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	deps.registerCheckers(healthHandler)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	apiSrv := serveHTTP(httpLis, httpapi.NewRouter(httpapi.Dependencies{
		Authenticator: svc.tokens,
		Orders:        svc.orders,
		Customers:     svc.customers,
		Logger:        logger.WithField("component", "http-api"),
	}), logger, errCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	shutdownHTTP(apiSrv, logger)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopGRPC(grpcServer, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := svc.engine.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("lifecycle tasks canceled on shutdown")
	}

	return runErr
}

// newGRPCServer собирает gRPC сервер с метриками, аутентификацией и health-сервисом.
func newGRPCServer(svc *services, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.AuthUnaryInterceptor(svc.tokens),
	))
	grpcsvc.RegisterOrderServiceServer(grpcServer, grpcsvc.NewOrderService(svc.orders, logger.WithField("component", "grpc")))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	grpcMetrics.InitializeMetrics(grpcServer)
	return grpcServer, healthServer
}

// stopGRPC ждёт завершения активных вызовов, затем останавливает сервер принудительно.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grpcStopTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}
