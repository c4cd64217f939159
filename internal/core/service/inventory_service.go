package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

const (
	tracerName          = "github.com/rl1809/inventory-ledger/internal/core/service"
	defaultFetchTimeout = 30 * time.Second
)

// InventoryComputer is anything that can produce an organization's inventory.
type InventoryComputer interface {
	ComputeInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error)
}

// InventoryService rebuilds an organization's inventory by replaying its
// event log through a Registry.
type InventoryService struct {
	events       port.EventRepository
	orgs         port.OrganizationRepository
	registry     *Registry
	logger       *zap.Logger
	tracer       trace.Tracer
	fetchTimeout time.Duration
	policy       domain.ReductionPolicy
}

type Option func(*InventoryService)

// WithFetchTimeout bounds the event log read. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *InventoryService) { s.fetchTimeout = d }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *InventoryService) { s.tracer = tracer }
}

func WithPolicy(policy domain.ReductionPolicy) Option {
	return func(s *InventoryService) { s.policy = policy }
}

func NewInventoryService(events port.EventRepository, orgs port.OrganizationRepository, registry *Registry, logger *zap.Logger, opts ...Option) *InventoryService {
	s := &InventoryService{
		events:       events,
		orgs:         orgs,
		registry:     registry,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeInventory replays the organization's log onto a freshly seeded
// inventory. Only the latest event of each eventable record is replayed.
func (s *InventoryService) ComputeInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.compute",
		trace.WithAttributes(attribute.Int64("organization.id", organizationID)))
	defer span.End()

	events, err := s.fetchEvents(ctx, organizationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch events")
		return nil, err
	}

	locationIDs, err := s.orgs.StorageLocationIDs(ctx, organizationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed inventory")
		return nil, fmt.Errorf("load storage locations: %w", err)
	}
	inventory := domain.NewInventory(organizationID, locationIDs, domain.WithReductionPolicy(s.policy))

	latest := LatestByEventable(events)
	span.SetAttributes(
		attribute.Int("inventory.event_count", len(events)),
		attribute.Int("inventory.group_count", len(latest)),
	)

	for _, event := range latest {
		if err := s.Handle(ctx, event, inventory); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "replay")
			return nil, fmt.Errorf("replay %s %s (event %d): %w", event.Kind, event.Key(), event.ID, err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return inventory, nil
}

// Handle dispatches one event to its registered handler. Kinds without a
// handler are skipped with a warning.
func (s *InventoryService) Handle(ctx context.Context, event domain.Event, inventory *domain.Inventory) error {
	handler, ok := s.registry.Lookup(event.Kind)
	if !ok {
		s.logger.Warn("no handler found, skipping",
			zap.String("kind", string(event.Kind)),
			zap.Int64("event_id", event.ID),
			zap.Int64("organization_id", event.OrganizationID),
			zap.String("eventable", event.Key().String()),
		)
		return nil
	}
	return handler(event, inventory)
}

func (s *InventoryService) fetchEvents(ctx context.Context, organizationID int64) ([]domain.Event, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	events, err := s.events.ListEvents(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// LatestByEventable keeps, for each eventable record, the event with the
// greatest event time. On equal times the earlier entry in the log wins.
// Records come back in the order they first appear in the log, so audits and
// snapshots land after the movements that preceded them.
func LatestByEventable(events []domain.Event) []domain.Event {
	index := make(map[domain.EventableKey]int)
	var out []domain.Event
	for _, event := range events {
		key := event.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, event)
			continue
		}
		if event.EventTime.After(out[i].EventTime) {
			out[i] = event
		}
	}
	return out
}
