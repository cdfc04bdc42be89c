package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/eventlog"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	var cfg config.Inventory
	if err := config.Load(&cfg, "inventory"); err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		zl.Fatal("tracer", zap.Error(err))
	}

	seed := inventory.DefaultStock
	if cfg.DataFile != "" {
		if seed, err = inventory.LoadStock(cfg.DataFile); err != nil {
			zl.Fatal("load stock", zap.String("file", cfg.DataFile), zap.Error(err))
		}
	}

	// Store: postgres when a DSN is configured, memory otherwise
	var store inventory.Store
	if cfg.PostgresDSN != "" {
		db, err := postgres.ConnectRetry(ctx, cfg.PostgresDSN, 10, 2*time.Second, zl)
		if err != nil {
			zl.Fatal("db", zap.Error(err))
		}
		defer db.Close()
		pg := inventory.NewPostgresStore(db, cfg.AllowRestock)
		if err := pg.EnsureSchema(ctx); err != nil {
			zl.Fatal("schema", zap.Error(err))
		}
		if err := pg.Seed(ctx, seed); err != nil {
			zl.Fatal("seed", zap.Error(err))
		}
		store = pg
		zl.Info("inventory store", zap.String("backend", "postgres"))
	} else {
		store = inventory.NewMemoryStore(seed, cfg.AllowRestock)
		zl.Info("inventory store", zap.String("backend", "memory"), zap.Int("products", len(seed)))
	}

	logProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicEventLog, 4096, zl)
	logProd.Start(ctx)

	srv := inventory.NewServer(&inventory.Service{
		Store:  store,
		Events: eventlog.NewPublisher(logProd, cfg.ServiceName),
		Logger: zl,
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		zl.Fatal("listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		srv.GracefulStop()
	}()

	zl.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
	if err := srv.Serve(lis); err != nil {
		zl.Error("grpc serve", zap.Error(err))
	}

	stop()
	logProd.WaitClosed()
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracer(tctx)
}
