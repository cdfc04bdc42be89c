package inventory

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type recordedEvent struct {
	event, message, correlationID string
}

type eventSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *eventSink) Log(ctx context.Context, event, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{event, message, logger.CorrelationID(ctx)})
	return nil
}

func (s *eventSink) all() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.events...)
}

func startServer(t *testing.T, store Store, timeout time.Duration) (*Client, *eventSink) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	sink := &eventSink{}
	srv := NewServer(&Service{Store: store, Events: sink})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn, timeout), sink
}

func TestClientCheckAvailability(t *testing.T) {
	client, _ := startServer(t, NewMemoryStore(map[string]int{"P1": 5, "P2": 1}, nil), time.Second)

	got, err := client.CheckAvailability(context.Background(), map[string]int{"P1": 5, "P2": 2, "NOPE": 0})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"P1": true, "P2": false, "NOPE": false}, got)
}

func TestClientReservePartialFailureKeepsSuccesses(t *testing.T) {
	store := NewMemoryStore(map[string]int{"P1": 5, "P2": 1}, nil)
	client, sink := startServer(t, store, time.Second)

	res, err := client.Reserve(context.Background(), map[string]int{"P1": 2, "P2": 3})
	require.NoError(t, err)
	assert.False(t, res.OverallSuccess)
	assert.True(t, res.Results["P1"].Success)
	assert.False(t, res.Results["P2"].Success)

	p1, _ := store.Stock("P1")
	p2, _ := store.Stock("P2")
	assert.Equal(t, 3, p1)
	assert.Equal(t, 1, p2)
	assert.Len(t, sink.all(), 2)
}

func TestClientReleaseAddsStock(t *testing.T) {
	store := NewMemoryStore(map[string]int{"P1": 1}, nil)
	client, _ := startServer(t, store, time.Second)

	res, err := client.Release(context.Background(), map[string]int{"P1": 2, "NEW": 4})
	require.NoError(t, err)
	assert.True(t, res.OverallSuccess)
	assert.Equal(t, "released 2 units", res.Messages["P1"])

	p1, _ := store.Stock("P1")
	created, ok := store.Stock("NEW")
	assert.Equal(t, 3, p1)
	assert.True(t, ok)
	assert.Equal(t, 4, created)
}

func TestClientRestock(t *testing.T) {
	store := NewMemoryStore(map[string]int{}, []string{"ORD-Z"})
	client, _ := startServer(t, store, time.Second)

	res, err := client.Restock(context.Background(), map[string]int{"ORD-Z": 0, "P9": 3})
	require.NoError(t, err)
	assert.False(t, res.OverallSuccess)
	assert.Equal(t, orders.RestockStatus{Success: true, Message: msgRestocked, Added: 1}, res.Results["ORD-Z"])
	assert.Equal(t, orders.RestockStatus{Success: false, Message: msgRestockDenied}, res.Results["P9"])

	avail, err := client.CheckAvailability(context.Background(), map[string]int{"ORD-Z": 0})
	require.NoError(t, err)
	assert.True(t, avail["ORD-Z"])

	empty, err := client.Restock(context.Background(), map[string]int{})
	require.NoError(t, err)
	assert.True(t, empty.OverallSuccess)
	assert.Empty(t, empty.Results)
}

func TestClientPropagatesCorrelationID(t *testing.T) {
	client, sink := startServer(t, NewMemoryStore(map[string]int{"P1": 1}, nil), time.Second)

	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	_, err := client.CheckAvailability(ctx, map[string]int{"P1": 1})
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, MethodCheckAvailability, events[0].event)
	assert.Equal(t, "corr-42", events[0].correlationID)
}

type blockingStore struct{ Store }

func (blockingStore) Availability(ctx context.Context, _ map[string]int) (map[string]bool, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestClientTimeoutIsGatewayError(t *testing.T) {
	client, _ := startServer(t, blockingStore{}, 50*time.Millisecond)

	_, err := client.CheckAvailability(context.Background(), map[string]int{"P1": 1})
	require.Error(t, err)

	var gwErr *orders.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "inventory", gwErr.Gateway)
	assert.Equal(t, MethodCheckAvailability, gwErr.Op)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(gwErr.Err))
	assert.Equal(t, orders.KindUpstreamUnavailable, orders.KindOf(err))
}

func TestClientUnreachableIsGatewayError(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())
	conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	defer conn.Close()

	_, err = NewClient(conn, time.Second).Reserve(context.Background(), map[string]int{"P1": 1})
	assert.ErrorIs(t, err, orders.ErrUpstreamUnavailable)
}

func TestMemoryStoreReserveUnknownProduct(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	res, err := s.Reserve(context.Background(), map[string]int{"X": 0})
	require.NoError(t, err)
	assert.False(t, res.OverallSuccess)
	_, ok := s.Stock("X")
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentReserveNeverOversells(t *testing.T) {
	s := NewMemoryStore(map[string]int{"P1": 10}, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Reserve(context.Background(), map[string]int{"P1": 1})
			if err == nil && res.OverallSuccess {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	left, _ := s.Stock("P1")
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, left)
}
