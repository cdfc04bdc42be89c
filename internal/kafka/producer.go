package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka producer closed")

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox drained by one goroutine. Publish never waits on
// the broker; write failures are logged.
type Producer struct {
	w     Writer
	topic string
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka write failed", zap.String("topic", topic), zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return NewProducerWithWriter(w, topic, buf, log)
}

func NewProducerWithWriter(w Writer, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w:     w,
		topic: topic,
		log:   log,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
}

// Start runs the drain loop. Cancelling ctx is equivalent to Close.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("kafka write failed", zap.String("topic", p.topic), zap.ByteString("key", m.Key), zap.Error(err))
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.String("topic", p.topic), zap.Error(err))
		}
	}()
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is buffered and closes the writer.
// It is safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the buffered messages are flushed.
func (p *Producer) WaitClosed() { <-p.done }
