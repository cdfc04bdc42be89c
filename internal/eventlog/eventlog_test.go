package eventlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type captured struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakeProducer struct{ msgs []captured }

func (f *fakeProducer) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	f.msgs = append(f.msgs, captured{key, value, headers})
	return nil
}

func TestPublisherLog(t *testing.T) {
	p := &fakeProducer{}
	pub := NewPublisher(p, "order-api")

	require.NoError(t, pub.Log(context.Background(), "processed", "X1 processed"))
	require.Len(t, p.msgs, 1)

	var rec orders.LogRecord
	require.NoError(t, json.Unmarshal(p.msgs[0].value, &rec))
	assert.Equal(t, orders.LogRecord{Service: "order-api", Event: "processed", Message: "X1 processed"}, rec)
	assert.Equal(t, "order-api", string(p.msgs[0].key))

	m := kafkago.Message{Headers: p.msgs[0].headers}
	assert.Equal(t, EventLogRecord, headerValue(m, "x-event-type"))
}

func headerValue(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestSinkWritesRecord(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := &Sink{Out: zap.New(core)}

	rec := orders.LogRecord{Service: "inventory", Event: "ReserveItems", Message: "P1: Reserved 3"}
	b, _ := json.Marshal(rec)
	require.NoError(t, s.Handle(context.Background(), kafkago.Message{Value: b}))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "P1: Reserved 3", entry.Message)
	assert.Equal(t, "inventory", entry.ContextMap()["service"])
	assert.Equal(t, "ReserveItems", entry.ContextMap()["event"])
}

func TestSinkSkipsPoison(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := &Sink{Out: zap.New(core)}

	require.NoError(t, s.Handle(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.Zero(t, logs.Len())
}

func TestSinkAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	out, err := logger.New(logger.Config{Level: "info", Env: "prod", OutputPaths: []string{path}})
	require.NoError(t, err)
	s := &Sink{Out: out}

	for _, msg := range []string{"first", "second"} {
		b, _ := json.Marshal(orders.LogRecord{Service: "warehouse", Event: "items_picked", Message: msg})
		require.NoError(t, s.Handle(context.Background(), kafkago.Message{Value: b}))
	}
	_ = out.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &line))
	assert.Equal(t, "second", line["msg"])
	assert.Equal(t, "warehouse", line["service"])
}
