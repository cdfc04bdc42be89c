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
	"github.com/ariefcatur/go-order-saga/internal/fulfillment"
	"github.com/ariefcatur/go-order-saga/internal/httpx"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/ariefcatur/go-order-saga/internal/saga"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var cfg config.API
	if err := config.Load(&cfg, "order-api"); err != nil {
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
	metrics := telemetry.NewMetrics()

	// Inventory
	conn, err := inventory.Dial(cfg.InventoryAddr)
	if err != nil {
		zl.Fatal("inventory dial", zap.Error(err))
	}
	defer conn.Close()

	// Kafka producers; both stop with ctx and flush before exit
	kickoffProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicFulfillmentKickoff, 1024, zl)
	kickoffProd.Start(ctx)
	logProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicEventLog, 4096, zl)
	logProd.Start(ctx)

	ledger := orders.NewLedger()
	coord := &saga.Coordinator{
		Store:     ledger,
		Inventory: inventory.NewClient(conn, cfg.GatewayTimeout),
		Payment:   payment.NewClient(cfg.PaymentURL, cfg.GatewayTimeout, zl),
		Publisher: &fulfillment.KickoffPublisher{Producer: kickoffProd, Service: cfg.ServiceName},
		Events:    eventlog.NewPublisher(logProd, cfg.ServiceName),
		Policy:    saga.NewRestockPolicy(cfg.RestockAllowList),
		Logger:    zl,
		Metrics:   metrics,
	}

	// Fulfillment status: consumer -> channel -> listener
	statusCh := make(chan orders.FulfillmentEvent, 256)
	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, orders.TopicFulfillmentStatus, 1,
		kafkax.WithRetryDelay(cfg.ReconnectDelay),
		kafkax.WithConsumerLogger(zl),
	)
	source := fulfillment.NewSource(consumer, statusCh, zl)
	listener := fulfillment.NewListener(ledger, statusCh,
		fulfillment.WithGrace(cfg.PendingGrace),
		fulfillment.WithRetryInterval(cfg.RetryInterval),
		fulfillment.WithMaxPending(cfg.MaxPending),
		fulfillment.WithLogger(zl),
		fulfillment.WithMetrics(metrics),
	)

	router := httpx.NewRouter(zl)
	router.Handle("/metrics", metrics.Handler())
	(&httpx.OrdersHandler{Saga: coord, Orders: ledger, Logger: zl}).Register(router)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return listener.Run(gctx) })

	if err := g.Wait(); err != nil {
		zl.Error("order api stopped", zap.Error(err))
	}
	zl.Info("shutting down")

	stop()
	kickoffProd.WaitClosed()
	logProd.WaitClosed()

	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracer(tctx)
}
