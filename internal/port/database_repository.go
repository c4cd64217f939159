package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type EventRepository interface {
	// ListEvents returns every event of the organization ordered by event time
	ListEvents(ctx context.Context, organizationID int64) ([]domain.Event, error)
}

type OrganizationRepository interface {
	// StorageLocationIDs returns the organization's current storage locations
	StorageLocationIDs(ctx context.Context, organizationID int64) ([]int64, error)

	// OrganizationIDs returns every organization owning at least one storage location
	OrganizationIDs(ctx context.Context) ([]int64, error)
}

// MovementFunc mutates the live inventory and returns the event describing the
// change along with the storage locations it touched. previous is the event
// currently standing for the same eventable, nil when there is none.
type MovementFunc func(inventory *domain.Inventory, previous *domain.Event) (domain.Event, []int64, error)

type LiveInventoryRepository interface {
	// LoadInventory reads the quantities currently recorded per storage location
	LoadInventory(ctx context.Context, organizationID int64) (*domain.Inventory, error)

	// ApplyMovement locks the organization's live inventory, runs fn on it and
	// persists the touched locations together with the returned event. The
	// previous event handed to fn is the one replay would keep for eventable:
	// latest event time, earliest entry on ties.
	ApplyMovement(ctx context.Context, organizationID int64, eventable domain.EventableKey, fn MovementFunc) (domain.Event, error)
}
