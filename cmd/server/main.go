package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/allocation/internal/adapter/handler"
	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/config"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/platform/telemetry"
	"github.com/rl1809/allocation/internal/port"
)

func main() {
	os.Exit(serve())
}

// serve returns the process exit code so deferred cleanup runs before exit.
func serve() int {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		return 1
	}
	return 0
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.SetupTracer(cfg.Tracing.ServiceName, cfg.Tracing.Enabled, os.Stdout)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	// Initialize database
	db, dialect, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.ApplySchema(ctx, db, dialect); err != nil {
		return err
	}
	log.Info("connected to database", "driver", dialect.Name())

	// Initialize Redis
	var idempotency port.IdempotencyStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		idempotency = storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL)
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		log.Warn("redis disabled, idempotency keys are ignored")
	}

	// Initialize services
	uows := storage.NewSQLUnitOfWorkFactory(db, dialect)
	allocations := service.NewAllocationService(uows, idempotency, log.With("component", "allocation"))
	market := service.NewMarketService(uows, log.With("component", "market"))

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(log.With("transport", "grpc"))))
	handler.RegisterAllocationServer(grpcServer, handler.NewGRPCHandler(allocations))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpLog := log.With("transport", "http")
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(allocations, market, httpLog), httpLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", "error", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
	return nil
}
