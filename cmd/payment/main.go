package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/config"
	"github.com/ariefcatur/go-order-saga/internal/eventlog"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	var cfg config.Payment
	if err := config.Load(&cfg, "payment"); err != nil {
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

	accounts := payment.DefaultAccounts
	if cfg.AccountsFile != "" {
		if accounts, err = payment.LoadAccounts(cfg.AccountsFile); err != nil {
			zl.Fatal("load accounts", zap.String("file", cfg.AccountsFile), zap.Error(err))
		}
	}

	logProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicEventLog, 4096, zl)
	logProd.Start(ctx)

	svc := payment.NewService(accounts, eventlog.NewPublisher(logProd, cfg.ServiceName))
	router := httpx.NewRouter(zl)
	(&payment.Handler{Service: svc, Logger: zl}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	zl.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.Int("accounts", len(accounts)))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Error("listen", zap.Error(err))
	}

	stop()
	logProd.WaitClosed()
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracer(tctx)
}
