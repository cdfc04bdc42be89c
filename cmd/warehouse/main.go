package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/eventlog"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"github.com/ariefcatur/go-order-saga/internal/warehouse"
	"go.uber.org/zap"
)

func main() {
	var cfg config.Warehouse
	if err := config.Load(&cfg, "warehouse"); err != nil {
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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		// dedup degrades to at-least-once until redis is back
		zl.Warn("redis not reachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicFulfillmentStatus, 1024, zl)
	statusProd.Start(ctx)
	logProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicEventLog, 4096, zl)
	logProd.Start(ctx)

	sim := &warehouse.Simulator{
		Dedup:     redisx.NewDedup(rdb, cfg.ServiceName),
		Out:       statusProd,
		Events:    eventlog.NewPublisher(logProd, cfg.ServiceName),
		StepDelay: cfg.StepDelay,
		Logger:    zl,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Group, orders.TopicFulfillmentKickoff, cfg.Workers,
		kafkax.WithRetryDelay(cfg.ReconnectDelay),
		kafkax.WithConsumerLogger(zl),
	)

	zl.Info("warehouse consumer started",
		zap.String("group", cfg.Group),
		zap.String("topic", orders.TopicFulfillmentKickoff),
		zap.Int("workers", cfg.Workers),
		zap.Duration("step_delay", cfg.StepDelay),
	)
	_ = cons.Start(ctx, sim.Handle)
	zl.Info("shutting down")

	stop()
	statusProd.WaitClosed()
	logProd.WaitClosed()
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracer(tctx)
}
