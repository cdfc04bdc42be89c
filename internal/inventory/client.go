package inventory

import (
	"context"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	DefaultTimeout    = 10 * time.Second
	CorrelationHeader = "x-correlation-id"
)

// Client is the coordinator's view of the inventory service. It keeps no state besides
// the connection; every call gets its own deadline and any transport failure comes back
// as *orders.GatewayError.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

// Dial opens a lazily connected, traced channel to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

func (c *Client) CheckAvailability(ctx context.Context, items map[string]int) (map[string]bool, error) {
	var resp AvailabilityResponse
	if err := c.invoke(ctx, MethodCheckAvailability, items, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(items))
	for id := range items {
		out[id] = resp.Availability[id]
	}
	return out, nil
}

func (c *Client) Reserve(ctx context.Context, items map[string]int) (orders.ReservationResult, error) {
	var resp orders.ReservationResult
	err := c.invoke(ctx, MethodReserveItems, items, &resp)
	return resp, err
}

func (c *Client) Release(ctx context.Context, items map[string]int) (orders.ReleaseResult, error) {
	var resp orders.ReleaseResult
	err := c.invoke(ctx, MethodReleaseItems, items, &resp)
	return resp, err
}

func (c *Client) Restock(ctx context.Context, items map[string]int) (orders.RestockResult, error) {
	var resp orders.RestockResult
	err := c.invoke(ctx, MethodRestockItems, items, &resp)
	return resp, err
}

func (c *Client) invoke(ctx context.Context, method string, items map[string]int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if id := logger.CorrelationID(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CorrelationHeader, id)
	}
	err := c.conn.Invoke(ctx, fullMethod(method), &ItemsRequest{Items: items}, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return &orders.GatewayError{Gateway: "inventory", Op: method, Err: err}
	}
	return nil
}
