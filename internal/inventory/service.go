package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type EventLogger interface {
	Log(ctx context.Context, event, message string) error
}

// Service serves the inventory RPCs over a Store and reports every item it touches to
// the central event log.
type Service struct {
	Store  Store
	Events EventLogger
	Logger *zap.Logger
}

var _ InventoryServer = (*Service)(nil)

func (s *Service) CheckAvailability(ctx context.Context, req *ItemsRequest) (*AvailabilityResponse, error) {
	ctx = withCorrelation(ctx)
	avail, err := s.Store.Availability(ctx, req.Items)
	if err != nil {
		return nil, s.internal(ctx, MethodCheckAvailability, err)
	}
	for _, id := range sortedIDs(req.Items) {
		if avail[id] {
			s.emit(ctx, MethodCheckAvailability, fmt.Sprintf("product %s: %d requested, enough items available", id, req.Items[id]))
		} else {
			s.emit(ctx, MethodCheckAvailability, fmt.Sprintf("product %s: %d requested, not enough items available", id, req.Items[id]))
		}
	}
	return &AvailabilityResponse{Availability: avail}, nil
}

func (s *Service) ReserveItems(ctx context.Context, req *ItemsRequest) (*orders.ReservationResult, error) {
	ctx = withCorrelation(ctx)
	res, err := s.Store.Reserve(ctx, req.Items)
	if err != nil {
		return nil, s.internal(ctx, MethodReserveItems, err)
	}
	for _, id := range sortedIDs(req.Items) {
		if res.Results[id].Success {
			s.emit(ctx, MethodReserveItems, fmt.Sprintf("reserved %d items of %s", req.Items[id], id))
		} else {
			s.emit(ctx, MethodReserveItems, fmt.Sprintf("couldn't reserve %d items of %s", req.Items[id], id))
		}
	}
	return &res, nil
}

func (s *Service) ReleaseItems(ctx context.Context, req *ItemsRequest) (*orders.ReleaseResult, error) {
	ctx = withCorrelation(ctx)
	res, err := s.Store.Release(ctx, req.Items)
	if err != nil {
		return nil, s.internal(ctx, MethodReleaseItems, err)
	}
	for _, id := range sortedIDs(req.Items) {
		s.emit(ctx, MethodReleaseItems, fmt.Sprintf("released %d items of %s", req.Items[id], id))
	}
	return &res, nil
}

func (s *Service) RestockItems(ctx context.Context, req *ItemsRequest) (*orders.RestockResult, error) {
	ctx = withCorrelation(ctx)
	if len(req.Items) == 0 {
		return &orders.RestockResult{OverallSuccess: true, Results: map[string]orders.RestockStatus{}}, nil
	}
	res, err := s.Store.Restock(ctx, req.Items)
	if err != nil {
		return nil, s.internal(ctx, MethodRestockItems, err)
	}
	for _, id := range sortedIDs(req.Items) {
		st := res.Results[id]
		if st.Success {
			s.emit(ctx, MethodRestockItems, fmt.Sprintf("restocked %d items of %s", st.Added, id))
		} else {
			s.emit(ctx, MethodRestockItems, fmt.Sprintf("restock of %s rejected: %s", id, st.Message))
		}
	}
	return &res, nil
}

func (s *Service) internal(ctx context.Context, method string, err error) error {
	logger.Error(ctx, s.log(), "inventory store failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}

func (s *Service) emit(ctx context.Context, event, message string) {
	logger.Debug(ctx, s.log(), message, zap.String("event", event))
	if s.Events == nil {
		return
	}
	if err := s.Events.Log(ctx, event, message); err != nil {
		logger.Debug(ctx, s.log(), "event log dropped", zap.Error(err))
	}
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func withCorrelation(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if v := md.Get(CorrelationHeader); len(v) > 0 {
		return logger.WithCorrelationID(ctx, v[0])
	}
	return ctx
}

func sortedIDs(items map[string]int) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
