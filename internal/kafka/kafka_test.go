package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	next      int
	failWith  error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.failWith != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.failWith
	}
	if r.next < len(r.msgs) {
		m := r.msgs[r.next]
		r.next++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerReconnectsAfterReaderFailure(t *testing.T) {
	broken := &fakeReader{failWith: errors.New("broker unavailable")}
	healthy := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("a")},
		{Offset: 2, Value: []byte("b")},
	}}
	readers := []*fakeReader{broken, broken, healthy}
	var mu sync.Mutex
	opened := 0

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewConsumer(nil, "g", "t", 1,
		WithRetryDelay(5*time.Millisecond),
		WithConsumerLogger(zap.New(core)),
		WithReaderFactory(func() Reader {
			mu.Lock()
			defer mu.Unlock()
			r := readers[opened]
			opened++
			return r
		}),
	)

	got := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			got <- string(m.Value)
			return nil
		})
	}()

	assert.Equal(t, "a", <-got)
	assert.Equal(t, "b", <-got)
	require.Eventually(t, func() bool { return len(healthy.commits()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	reconnects := logs.FilterMessage("kafka consumer disconnected, reconnecting").All()
	require.Len(t, reconnects, 2)
	assert.EqualValues(t, 2, reconnects[1].ContextMap()["attempt"])
	assert.True(t, broken.closed)
	assert.True(t, healthy.closed)
}

func TestConsumerRedeliversFailedMessage(t *testing.T) {
	msgs := []kafka.Message{
		{Offset: 10, Value: []byte("flaky")},
		{Offset: 11, Value: []byte("good")},
	}
	first := &fakeReader{msgs: msgs}
	second := &fakeReader{msgs: msgs}
	var mu sync.Mutex
	opened := 0
	c := NewConsumer(nil, "g", "t", 1,
		WithRetryDelay(5*time.Millisecond),
		WithReaderFactory(func() Reader {
			mu.Lock()
			defer mu.Unlock()
			opened++
			if opened == 1 {
				return first
			}
			return second
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		hmu   sync.Mutex
		seen  []string
		fails = 1
	)
	go func() {
		_ = c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			hmu.Lock()
			defer hmu.Unlock()
			seen = append(seen, string(m.Value))
			if string(m.Value) == "flaky" && fails > 0 {
				fails--
				return errors.New("cannot handle yet")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(second.commits()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, first.commits(), "nothing after the failure may be committed")
	assert.True(t, first.closed)
	assert.Equal(t, []int64{10, 11}, second.commits())

	hmu.Lock()
	defer hmu.Unlock()
	assert.Equal(t, []string{"flaky", "flaky", "good"}, seen)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed++
	w.mu.Unlock()
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "t", 8, nil)
	p.Start(context.Background())

	require.NoError(t, p.Publish(context.Background(), []byte("k1"), []byte("v1"), EventHeaders("Evt", 1)...))
	require.NoError(t, p.Publish(context.Background(), []byte("k2"), []byte("v2")))

	p.Close()
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "v1", string(w.msgs[0].Value))
	assert.Equal(t, "Evt", Header(w.msgs[0], "x-event-type"))
	assert.Equal(t, "1", Header(w.msgs[0], "x-event-version"))
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), []byte("k3"), []byte("v3"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducerStopsWithContext(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "t", 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	p.WaitClosed()
	assert.Equal(t, 1, w.closed)
}

func TestDecode(t *testing.T) {
	type rec struct {
		Service string `json:"service"`
	}
	got, err := Decode[rec]([]byte(`{"service":"inventory"}`))
	require.NoError(t, err)
	assert.Equal(t, "inventory", got.Service)

	_, err = Decode[rec]([]byte(`{`))
	assert.Error(t, err)
}
