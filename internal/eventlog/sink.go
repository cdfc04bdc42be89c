package eventlog

import (
	"context"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sink appends every record from the observability topic to the central log.
// Out is a dedicated logger, normally writing to the log file; Logger is the
// process's own diagnostics.
type Sink struct {
	Out    *zap.Logger
	Logger *zap.Logger
}

func (s *Sink) Handle(ctx context.Context, m kafkago.Message) error {
	rec, err := kafkax.Decode[orders.LogRecord](m.Value)
	if err != nil {
		s.log().Warn("undecodable log record skipped",
			zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	fields := []zap.Field{
		zap.String("service", rec.Service),
		zap.String("event", rec.Event),
		zap.Time("received_at", m.Time),
	}
	if tp := kafkax.Header(m, "traceparent"); tp != "" {
		fields = append(fields, zap.String("traceparent", tp))
	}
	s.Out.Info(rec.Message, fields...)
	return nil
}

func (s *Sink) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
