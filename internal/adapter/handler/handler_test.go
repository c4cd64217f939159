package handler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
)

type fakeComputer struct {
	inventories map[int64]*domain.Inventory
	err         error
}

func (f *fakeComputer) ComputeInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	if f.err != nil {
		return nil, f.err
	}
	inv, ok := f.inventories[organizationID]
	if !ok {
		return domain.NewInventory(organizationID, nil), nil
	}
	return inv, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []service.RecordMovementRequest
	err      error
}

func (f *fakeRecorder) RecordMovement(ctx context.Context, req service.RecordMovementRequest) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.Event{}, f.err
	}
	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return domain.Event{
		ID:             int64(len(f.requests)),
		EventID:        uuid.New(),
		OrganizationID: req.OrganizationID,
		Kind:           req.Kind,
		EventableType:  req.EventableType,
		EventableID:    req.EventableID,
		EventTime:      eventTime,
	}, nil
}

func (f *fakeRecorder) last() service.RecordMovementRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// sampleInventory holds item 10 at both locations and item 11 at location 2.
func sampleInventory(t *testing.T) *domain.Inventory {
	t.Helper()
	inv := domain.NewInventory(7, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 5, 0, 1, true))
	require.NoError(t, inv.MoveItem(10, 3, 0, 2, true))
	require.NoError(t, inv.MoveItem(11, 2, 0, 2, true))
	return inv
}

var errBoom = fmt.Errorf("connection reset")
