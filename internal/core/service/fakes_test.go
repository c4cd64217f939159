package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// Mock EventRepository
type mockEventRepo struct {
	mu     sync.Mutex
	events map[int64][]domain.Event
	err    error
	calls  int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[int64][]domain.Event)}
}

func (m *mockEventRepo) append(events ...domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		if e.ID == 0 {
			e.ID = int64(len(m.events[e.OrganizationID]) + 1)
		}
		m.events[e.OrganizationID] = append(m.events[e.OrganizationID], e)
	}
}

func (m *mockEventRepo) ListEvents(ctx context.Context, organizationID int64) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Event(nil), m.events[organizationID]...), nil
}

// Mock OrganizationRepository
type mockOrgRepo struct {
	locations map[int64][]int64
	err       error
}

func (m *mockOrgRepo) StorageLocationIDs(ctx context.Context, organizationID int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.locations[organizationID], nil
}

func (m *mockOrgRepo) OrganizationIDs(ctx context.Context) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, 0, len(m.locations))
	for id := range m.locations {
		ids = append(ids, id)
	}
	return ids, nil
}

// Mock LiveInventoryRepository. ApplyMovement works on a copy and only keeps
// it when fn succeeds, the way a rolled back transaction would.
type mockLiveRepo struct {
	mu          sync.Mutex
	inventories map[int64]*domain.Inventory
	applied     []domain.Event
	touched     [][]int64
	err         error
}

func newMockLiveRepo() *mockLiveRepo {
	return &mockLiveRepo{inventories: make(map[int64]*domain.Inventory)}
}

func (m *mockLiveRepo) seed(inv *domain.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventories[inv.OrganizationID] = inv
}

func (m *mockLiveRepo) LoadInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	inv, ok := m.inventories[organizationID]
	if !ok {
		return domain.NewInventory(organizationID, nil), nil
	}
	return inv.Clone(), nil
}

func (m *mockLiveRepo) ApplyMovement(ctx context.Context, organizationID int64, eventable domain.EventableKey, fn port.MovementFunc) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Event{}, m.err
	}
	current, ok := m.inventories[organizationID]
	if !ok {
		current = domain.NewInventory(organizationID, nil)
	}
	working := current.Clone()
	event, touched, err := fn(working, m.latest(organizationID, eventable))
	if err != nil {
		return domain.Event{}, err
	}
	event.ID = int64(len(m.applied) + 1)
	m.inventories[organizationID] = working
	m.applied = append(m.applied, event)
	m.touched = append(m.touched, touched)
	return event, nil
}

// latest mirrors the MySQL lookup: latest event time, earliest entry on ties.
func (m *mockLiveRepo) latest(organizationID int64, eventable domain.EventableKey) *domain.Event {
	var found *domain.Event
	for i := range m.applied {
		e := m.applied[i]
		if e.OrganizationID != organizationID || e.Key() != eventable {
			continue
		}
		if found == nil || e.EventTime.After(found.EventTime) {
			found = &e
		}
	}
	return found
}

// Mock CacheRepository and IdempotencyRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	snapshots      map[int64]*domain.Inventory
	generations    map[int64]int64
	idempotencySet map[string]bool
	released       []string
	getErr         error
	setErr         error
	invalidateErr  error
	idemErr        error
	sets           int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		snapshots:      make(map[int64]*domain.Inventory),
		generations:    make(map[int64]int64),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) GetSnapshot(ctx context.Context, organizationID int64) (*domain.Inventory, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, 0, m.getErr
	}
	return m.snapshots[organizationID], m.generations[organizationID], nil
}

func (m *mockCacheRepo) SetSnapshot(ctx context.Context, organizationID int64, generation int64, inventory *domain.Inventory, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.generations[organizationID] != generation {
		return false, nil
	}
	// stored as JSON, the way the redis adapter keeps it
	data, err := json.Marshal(inventory)
	if err != nil {
		return false, err
	}
	var stored domain.Inventory
	if err := json.Unmarshal(data, &stored); err != nil {
		return false, err
	}
	m.snapshots[organizationID] = &stored
	return true, nil
}

func (m *mockCacheRepo) InvalidateSnapshot(ctx context.Context, organizationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidateErr != nil {
		return m.invalidateErr
	}
	m.generations[organizationID]++
	delete(m.snapshots, organizationID)
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idemErr != nil {
		return false, m.idemErr
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

// Mock EventNotifier
type mockNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockNotifier) Notify(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// Stub InventoryComputer
type computerFunc func(ctx context.Context, organizationID int64) (*domain.Inventory, error)

func (f computerFunc) ComputeInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	return f(ctx, organizationID)
}

func movement(org int64, kind domain.EventKind, eventableType string, eventableID int64, at time.Time, items ...domain.LineItem) domain.Event {
	return domain.Event{
		OrganizationID: org,
		Kind:           kind,
		EventableType:  eventableType,
		EventableID:    eventableID,
		EventTime:      at,
		Payload:        domain.InventoryPayload{Items: items},
	}
}

func add(itemID int64, quantity int, to int64) domain.LineItem {
	return domain.LineItem{ItemID: itemID, Quantity: quantity, ToStorageLocation: to}
}

func remove(itemID int64, quantity int, from int64) domain.LineItem {
	return domain.LineItem{ItemID: itemID, Quantity: quantity, FromStorageLocation: from}
}

func transfer(itemID int64, quantity int, from, to int64) domain.LineItem {
	return domain.LineItem{ItemID: itemID, Quantity: quantity, FromStorageLocation: from, ToStorageLocation: to}
}
