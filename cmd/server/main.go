package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/handler/pb"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logging"
	"github.com/rl1809/storefront/internal/metrics"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}

	logger := logging.Must(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("ping mysql", zap.Error(err))
	}
	if err := storage.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate catalog", zap.Error(err))
	}
	logger.Info("connected to mysql")

	gdb, err := storage.OpenDirectory(cfg.DirectoryDriver, cfg.DirectoryDSN, db)
	if err != nil {
		logger.Fatal("open directory", zap.Error(err))
	}
	logger.Info("directory ready", zap.String("driver", cfg.DirectoryDriver))

	// Redis is optional; without it requests are not deduplicated
	var (
		rdb   *redis.Client
		cache port.CacheRepository
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: cfg.MaxOpenConns * 2})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("ping redis", zap.Error(err))
		}
		cache = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis")
	}

	var publisher port.EventPublisher
	if cfg.RabbitURL != "" {
		rp, err := messaging.NewRabbitMQPublisher(cfg.RabbitURL)
		if err != nil {
			logger.Fatal("connect rabbitmq", zap.Error(err))
		}
		publisher = rp
		logger.Info("publishing order events to rabbitmq", zap.String("queue", messaging.OrderPlacedQueue))
	} else {
		publisher = messaging.NewLogPublisher(logger)
	}

	files, err := storage.NewDiskStorage(cfg.UploadDir, "img")
	if err != nil {
		logger.Fatal("upload dir", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize services
	opts := []service.Option{service.WithLogger(logger), service.WithMetrics(m)}
	catalog := storage.NewMySQLAdapter(db)
	directory := storage.NewGormDirectory(gdb)

	orderService := service.NewOrderService(catalog, cache, cfg.QueueSize, opts...)
	services := handler.Services{
		Orders:    orderService,
		Products:  service.NewProductService(catalog, files, opts...),
		Accounts:  service.NewAccountService(directory, opts...),
		Board:     service.NewBoardService(directory, opts...),
		Employees: service.NewEmployeeService(directory, opts...),
	}

	// Start worker pool
	pool := worker.NewPool(orderService.GetOrderQueue(), publisher, logger, m)
	pool.Start(cfg.WorkerCount)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen", zap.Error(err))
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHTTPHandler(services, catalog, logger, m)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handler.NewRouter(httpHandler, handler.RouterConfig{
			SessionSecret: cfg.SessionSecret,
			UploadDir:     cfg.UploadDir,
			Gatherer:      reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
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

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close order queue and wait for workers to flush pending events
	orderService.Close()
	pool.Wait()
	logger.Info("workers stopped")

	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	if cfg.DirectoryDriver != "mysql" {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	}
	db.Close()
	logger.Info("connections closed")
}
