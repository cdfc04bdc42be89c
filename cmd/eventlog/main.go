package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/eventlog"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"go.uber.org/zap"
)

func main() {
	var cfg config.EventLog
	if err := config.Load(&cfg, "eventlog"); err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	// central log file: always JSON, one line per record
	out, err := logger.New(logger.Config{Level: "info", Env: "prod", OutputPaths: []string{cfg.LogFile}})
	if err != nil {
		zl.Fatal("open event log", zap.String("file", cfg.LogFile), zap.Error(err))
	}
	defer out.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := &eventlog.Sink{Out: out, Logger: zl}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Group, orders.TopicEventLog, 1,
		kafkax.WithRetryDelay(cfg.ReconnectDelay),
		kafkax.WithConsumerLogger(zl),
	)

	zl.Info("event log sink started", zap.String("file", cfg.LogFile), zap.String("topic", orders.TopicEventLog))
	_ = cons.Start(ctx, sink.Handle)
	zl.Info("shutting down")
}
