package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
)

// MovementRecorder is the write side both transports call into.
type MovementRecorder interface {
	RecordMovement(ctx context.Context, req service.RecordMovementRequest) (domain.Event, error)
}

type ItemView struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type StorageLocationView struct {
	ID    int64      `json:"id"`
	Items []ItemView `json:"items"`
}

type InventoryView struct {
	OrganizationID   int64                 `json:"organization_id"`
	StorageLocations []StorageLocationView `json:"storage_locations"`
	Totals           []ItemView            `json:"totals"`
}

// NewInventoryView flattens an inventory with locations and items in
// ascending id order.
func NewInventoryView(inv *domain.Inventory) InventoryView {
	view := InventoryView{
		OrganizationID:   inv.OrganizationID,
		StorageLocations: make([]StorageLocationView, 0, len(inv.StorageLocations)),
	}
	for _, id := range inv.LocationIDs() {
		loc, _ := inv.StorageLocation(id)
		lv := StorageLocationView{ID: id, Items: make([]ItemView, 0, len(loc.Items))}
		for _, itemID := range loc.ItemIDs() {
			lv.Items = append(lv.Items, ItemView{ItemID: itemID, Quantity: loc.Quantity(itemID)})
		}
		view.StorageLocations = append(view.StorageLocations, lv)
	}

	totals := inv.ItemTotals()
	view.Totals = make([]ItemView, 0, len(totals))
	for itemID, qty := range totals {
		view.Totals = append(view.Totals, ItemView{ItemID: itemID, Quantity: qty})
	}
	sort.Slice(view.Totals, func(i, j int) bool { return view.Totals[i].ItemID < view.Totals[j].ItemID })
	return view
}

// MovementInput is the body of a movement recording call on either transport.
type MovementInput struct {
	RequestID         string            `json:"request_id"`
	Kind              string            `json:"kind"`
	EventableType     string            `json:"eventable_type"`
	EventableID       int64             `json:"eventable_id"`
	StorageLocationID int64             `json:"storage_location_id,omitempty"`
	EventTime         *time.Time        `json:"event_time,omitempty"`
	Items             []domain.LineItem `json:"items"`
}

func (in MovementInput) toRequest(organizationID int64) service.RecordMovementRequest {
	req := service.RecordMovementRequest{
		RequestID:         in.RequestID,
		OrganizationID:    organizationID,
		Kind:              domain.EventKind(in.Kind),
		EventableType:     in.EventableType,
		EventableID:       in.EventableID,
		StorageLocationID: in.StorageLocationID,
		Items:             in.Items,
	}
	if in.EventTime != nil {
		req.EventTime = *in.EventTime
	}
	return req
}

type RecordedEventView struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	OrganizationID int64     `json:"organization_id"`
	Kind           string    `json:"kind"`
	EventableType  string    `json:"eventable_type"`
	EventableID    int64     `json:"eventable_id"`
	EventTime      time.Time `json:"event_time"`
}

func NewRecordedEventView(event domain.Event) RecordedEventView {
	return RecordedEventView{
		ID:             event.ID,
		EventID:        event.EventID.String(),
		OrganizationID: event.OrganizationID,
		Kind:           string(event.Kind),
		EventableType:  event.EventableType,
		EventableID:    event.EventableID,
		EventTime:      event.EventTime,
	}
}

type errorMapping struct {
	target error
	status int
	code   codes.Code
}

var errorMappings = []errorMapping{
	{service.ErrInvalidRequest, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrStorageLocationNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrInsufficientInventory, http.StatusConflict, codes.FailedPrecondition},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded},
}

// Replay failures come from the stored history rather than the request, so the
// read routes report them as internal.
var readErrorMappings = []errorMapping{
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded},
}

// classify maps a service error to its transport status. Unmapped errors are
// internal and their text is not exposed.
func classify(err error, mappings []errorMapping) (int, codes.Code, string, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, err.Error(), true
		}
	}
	return http.StatusInternalServerError, codes.Internal, "internal error", false
}
