package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrInvalidRequest   = errors.New("invalid request")
)

// RecordMovementRequest describes a change to the live inventory made by an
// upstream workflow such as completing a purchase.
type RecordMovementRequest struct {
	RequestID         string
	OrganizationID    int64
	Kind              domain.EventKind
	EventableType     string
	EventableID       int64
	StorageLocationID int64 // audits only
	Items             []domain.LineItem
	EventTime         time.Time
}

// MovementService applies movements to the live inventory with validation and
// appends the matching event to the log.
type MovementService struct {
	live     port.LiveInventoryRepository
	idem     port.IdempotencyRepository
	cache    port.CacheRepository
	notifier port.EventNotifier
	policy   domain.ReductionPolicy
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewMovementService(live port.LiveInventoryRepository, idem port.IdempotencyRepository, cache port.CacheRepository,
	notifier port.EventNotifier, policy domain.ReductionPolicy, logger *zap.Logger) *MovementService {
	return &MovementService{
		live:     live,
		idem:     idem,
		cache:    cache,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

func (s *MovementService) RecordMovement(ctx context.Context, req RecordMovementRequest) (domain.Event, error) {
	if err := validateMovement(req); err != nil {
		return domain.Event{}, err
	}

	ctx, span := s.tracer.Start(ctx, "inventory.record_movement", trace.WithAttributes(
		attribute.Int64("organization.id", req.OrganizationID),
		attribute.String("event.kind", string(req.Kind)),
		attribute.Int("event.items", len(req.Items)),
	))
	defer span.End()

	idempotencyKey := fmt.Sprintf("event:%d:%s", req.OrganizationID, req.RequestID)

	ok, err := s.idem.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return domain.Event{}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.Event{}, ErrDuplicateRequest
	}

	eventable := domain.EventableKey{Type: req.EventableType, ID: req.EventableID}
	event, err := s.live.ApplyMovement(ctx, req.OrganizationID, eventable, func(inventory *domain.Inventory, previous *domain.Event) (domain.Event, []int64, error) {
		inventory.SetReductionPolicy(s.policy)
		return s.apply(req, inventory, previous)
	})
	if err != nil {
		if releaseErr := s.idem.ReleaseIdempotency(ctx, idempotencyKey); releaseErr != nil {
			s.logger.Error("failed to release idempotency key", zap.String("key", idempotencyKey), zap.Error(releaseErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply movement")
		return domain.Event{}, err
	}

	if err := s.cache.InvalidateSnapshot(ctx, req.OrganizationID); err != nil {
		s.logger.Warn("failed to invalidate snapshot", zap.Int64("organization_id", req.OrganizationID), zap.Error(err))
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("failed to publish event notification", zap.String("event_id", event.EventID.String()), zap.Error(err))
	}

	s.logger.Info("recorded movement",
		zap.String("event_id", event.EventID.String()),
		zap.Int64("organization_id", event.OrganizationID),
		zap.String("kind", string(event.Kind)),
		zap.String("eventable", event.Key().String()),
	)
	return event, nil
}

// apply records req on the live inventory. A previous event for the same
// eventable is superseded the way replay supersedes it: its movements are
// reverted before the new ones land.
func (s *MovementService) apply(req RecordMovementRequest, inventory *domain.Inventory, previous *domain.Event) (domain.Event, []int64, error) {
	var payload domain.Payload
	items := req.Items
	touched := make(map[int64]struct{})

	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = s.now()
	}
	// The log keeps microseconds.
	eventTime = eventTime.UTC().Truncate(time.Microsecond)

	if previous != nil {
		if !eventTime.After(previous.EventTime) {
			return domain.Event{}, nil, fmt.Errorf("%w: %s already has an event at %s",
				ErrInvalidRequest, previous.Key(), previous.EventTime.Format(time.RFC3339Nano))
		}
		reverted, err := revertEvent(*previous, req, inventory)
		if err != nil {
			return domain.Event{}, nil, err
		}
		for _, id := range reverted {
			touched[id] = struct{}{}
		}
	}

	if req.Kind == domain.KindAudit {
		if err := inventory.ResetStorageLocation(req.StorageLocationID); err != nil {
			return domain.Event{}, nil, err
		}
		touched[req.StorageLocationID] = struct{}{}
		items = auditItems(req.StorageLocationID, req.Items)
		payload = domain.AuditPayload{StorageLocationID: req.StorageLocationID, Items: items}
	} else {
		payload = domain.InventoryPayload{Items: items}
	}

	if err := applyLineItems(items, inventory, true); err != nil {
		return domain.Event{}, nil, err
	}
	for _, item := range items {
		if item.FromStorageLocation != 0 {
			touched[item.FromStorageLocation] = struct{}{}
		}
		if item.ToStorageLocation != 0 {
			touched[item.ToStorageLocation] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if previous != nil {
		if err := requireNonNegative(inventory, ids); err != nil {
			return domain.Event{}, nil, err
		}
	}

	event := domain.Event{
		EventID:        uuid.New(),
		OrganizationID: req.OrganizationID,
		Kind:           req.Kind,
		EventableType:  req.EventableType,
		EventableID:    req.EventableID,
		EventTime:      eventTime,
		Payload:        payload,
	}
	return event, ids, nil
}

// revertEvent undoes previous on the inventory and returns the locations it
// changed. Movements run backwards without validation; locations discarded
// since are skipped. An audit cannot be undone, so it may only be superseded
// by a recount of the same location.
func revertEvent(previous domain.Event, req RecordMovementRequest, inventory *domain.Inventory) ([]int64, error) {
	switch p := previous.Payload.(type) {
	case domain.InventoryPayload:
		return revertLineItems(p.Items, inventory)
	case domain.AuditPayload:
		if req.Kind == domain.KindAudit && req.StorageLocationID == p.StorageLocationID {
			return nil, nil
		}
	case domain.UnknownPayload:
		// never replayed
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s %s cannot be superseded by %s",
		ErrInvalidRequest, previous.Kind, previous.Key(), req.Kind)
}

func revertLineItems(items []domain.LineItem, inventory *domain.Inventory) ([]int64, error) {
	var touched []int64
	for _, item := range items {
		from, to := item.ToStorageLocation, item.FromStorageLocation
		if _, ok := inventory.StorageLocation(from); !ok {
			from = 0
		}
		if _, ok := inventory.StorageLocation(to); !ok {
			to = 0
		}
		if from == 0 && to == 0 {
			continue
		}
		if err := inventory.MoveItem(item.ItemID, item.Quantity, from, to, false); err != nil {
			return nil, err
		}
		for _, id := range []int64{from, to} {
			if id != 0 {
				touched = append(touched, id)
			}
		}
	}
	return touched, nil
}

// requireNonNegative rejects a superseding event whose reverted stock had
// already left the location.
func requireNonNegative(inventory *domain.Inventory, locationIDs []int64) error {
	for _, id := range locationIDs {
		loc, ok := inventory.StorageLocation(id)
		if !ok {
			continue
		}
		for _, itemID := range loc.ItemIDs() {
			if qty := loc.Quantity(itemID); qty < 0 {
				return &domain.InsufficientInventoryError{
					LocationID: id,
					ItemID:     itemID,
					Requested:  -qty,
					Known:      true,
				}
			}
		}
	}
	return nil
}

// auditItems points counted items that name no location at the audited one.
func auditItems(locationID int64, items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		if item.FromStorageLocation == 0 && item.ToStorageLocation == 0 {
			item.ToStorageLocation = locationID
		}
		out[i] = item
	}
	return out
}

func validateMovement(req RecordMovementRequest) error {
	switch {
	case req.RequestID == "":
		return fmt.Errorf("%w: request id is required", ErrInvalidRequest)
	case req.OrganizationID <= 0:
		return fmt.Errorf("%w: organization id is required", ErrInvalidRequest)
	case req.EventableType == "" || req.EventableID <= 0:
		return fmt.Errorf("%w: eventable type and id are required", ErrInvalidRequest)
	case req.Kind == domain.KindAudit && req.StorageLocationID <= 0:
		return fmt.Errorf("%w: audit requires a storage location", ErrInvalidRequest)
	case req.Kind != domain.KindAudit && !req.Kind.IsMovement():
		return fmt.Errorf("%w: kind %q cannot be recorded", ErrInvalidRequest, req.Kind)
	}
	for i, item := range req.Items {
		if item.ItemID <= 0 || item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d needs a positive item id and quantity", ErrInvalidRequest, i)
		}
		if req.Kind != domain.KindAudit && item.FromStorageLocation == 0 && item.ToStorageLocation == 0 {
			return fmt.Errorf("%w: item %d names no storage location", ErrInvalidRequest, i)
		}
	}
	return nil
}
