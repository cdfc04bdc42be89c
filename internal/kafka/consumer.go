package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was handled and its offset may be committed.
// An error restarts the reader, so the message and everything after it is redelivered.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const DefaultRetryDelay = 5 * time.Second

// Consumer reads one topic with a consumer group, fans messages out to a worker pool and
// commits manually. When the reader fails it is closed and a fresh one is opened after a
// fixed delay, forever, until the context ends.
type Consumer struct {
	newReader  func() Reader
	topic      string
	group      string
	workers    int
	retryDelay time.Duration
	log        *zap.Logger
}

type ConsumerOption func(*Consumer)

func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

func WithConsumerLogger(l *zap.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithReaderFactory replaces the kafka-go reader, mostly for tests.
func WithReaderFactory(f func() Reader) ConsumerOption {
	return func(c *Consumer) { c.newReader = f }
}

func NewConsumer(brokers []string, group, topic string, workers int, opts ...ConsumerOption) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	c := &Consumer{
		topic:      topic,
		group:      group,
		workers:    workers,
		retryDelay: DefaultRetryDelay,
		log:        zap.NewNop(),
	}
	c.newReader = func() Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        group,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commit
		})
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start blocks until ctx is done. It never returns a broker error; those are logged and
// followed by a reconnect.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	attempt := 0
	for {
		err := c.run(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		attempt++
		c.log.Warn("kafka consumer disconnected, reconnecting",
			zap.String("topic", c.topic),
			zap.String("group", c.group),
			zap.Int("attempt", attempt),
			zap.Duration("delay", c.retryDelay),
			zap.Error(err),
		)
		t := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Consumer) run(ctx context.Context, h Handler) error {
	r := c.newReader()
	defer r.Close()

	// A failed message ends this reader session. Committing any later offset would
	// cover it, so the reconnect re-fetches from the last committed offset instead.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	var (
		failOnce sync.Once
		failErr  error
	)

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := h(ContextFromHeaders(runCtx, m), m); err != nil {
					c.log.Error("handler failed, reader restarts from last commit",
						zap.Int("worker", id),
						zap.String("topic", m.Topic),
						zap.Int("partition", m.Partition),
						zap.Int64("offset", m.Offset),
						zap.Error(err),
					)
					failOnce.Do(func() {
						failErr = fmt.Errorf("handle offset %d: %w", m.Offset, err)
						stop()
					})
					continue
				}
				if err := r.CommitMessages(runCtx, m); err != nil && runCtx.Err() == nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i)
	}

	fetchErr := c.fetch(runCtx, r, jobs)
	close(jobs)
	wg.Wait()
	if failErr != nil {
		return failErr
	}
	return fetchErr
}

func (c *Consumer) fetch(ctx context.Context, r Reader, jobs chan<- kafka.Message) error {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
