package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the tag stored with every event in the log.
type EventKind string

const (
	KindDonation            EventKind = "DonationEvent"
	KindDistribution        EventKind = "DistributionEvent"
	KindAdjustment          EventKind = "AdjustmentEvent"
	KindPurchase            EventKind = "PurchaseEvent"
	KindTransfer            EventKind = "TransferEvent"
	KindDonationDestroy     EventKind = "DonationDestroyEvent"
	KindDistributionDestroy EventKind = "DistributionDestroyEvent"
	KindPurchaseDestroy     EventKind = "PurchaseDestroyEvent"
	KindTransferDestroy     EventKind = "TransferDestroyEvent"
	KindKitAllocate         EventKind = "KitAllocateEvent"
	KindKitDeallocate       EventKind = "KitDeallocateEvent"
	KindAudit               EventKind = "AuditEvent"
	KindSnapshot            EventKind = "SnapshotEvent"
)

var movementKinds = []EventKind{
	KindDonation,
	KindDistribution,
	KindAdjustment,
	KindPurchase,
	KindTransfer,
	KindDonationDestroy,
	KindDistributionDestroy,
	KindPurchaseDestroy,
	KindTransferDestroy,
	KindKitAllocate,
	KindKitDeallocate,
}

// MovementKinds returns the kinds whose payload is a plain list of line items.
func MovementKinds() []EventKind {
	return append([]EventKind(nil), movementKinds...)
}

// EventKinds returns every kind the log may carry.
func EventKinds() []EventKind {
	return append(MovementKinds(), KindAudit, KindSnapshot)
}

func (k EventKind) IsMovement() bool {
	for _, m := range movementKinds {
		if k == m {
			return true
		}
	}
	return false
}

func (k EventKind) Known() bool {
	return k.IsMovement() || k == KindAudit || k == KindSnapshot
}

// Event is one entry of an organization's append-only log.
type Event struct {
	ID             int64
	EventID        uuid.UUID
	OrganizationID int64
	Kind           EventKind
	EventableType  string
	EventableID    int64
	EventTime      time.Time
	Payload        Payload
}

// EventableKey identifies the domain record an event describes.
type EventableKey struct {
	Type string
	ID   int64
}

func (k EventableKey) Less(other EventableKey) bool {
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	return k.ID < other.ID
}

func (k EventableKey) String() string {
	return fmt.Sprintf("%s#%d", k.Type, k.ID)
}

func (e Event) Key() EventableKey {
	return EventableKey{Type: e.EventableType, ID: e.EventableID}
}

// LineItem moves quantity of one item. A zero location id means the side is
// absent: only From is a reduction, only To an addition, both a transfer.
type LineItem struct {
	ItemID              int64 `json:"item_id"`
	Quantity            int   `json:"quantity"`
	FromStorageLocation int64 `json:"from_storage_location,omitempty"`
	ToStorageLocation   int64 `json:"to_storage_location,omitempty"`
}

// Payload is the closed set of event bodies.
type Payload interface {
	isPayload()
}

type InventoryPayload struct {
	Items []LineItem `json:"items"`
}

type AuditPayload struct {
	StorageLocationID int64      `json:"storage_location_id"`
	Items             []LineItem `json:"items"`
}

type SnapshotPayload struct {
	StorageLocations map[int64]*StorageLocation `json:"storage_locations"`
}

// UnknownPayload keeps the raw body of a kind this build does not project.
type UnknownPayload struct {
	Raw json.RawMessage
}

func (InventoryPayload) isPayload() {}
func (AuditPayload) isPayload()     {}
func (SnapshotPayload) isPayload()  {}
func (UnknownPayload) isPayload()   {}

// DecodePayload parses a stored event body according to its kind.
func DecodePayload(kind EventKind, raw []byte) (Payload, error) {
	switch {
	case kind.IsMovement():
		var p InventoryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case kind == KindAudit:
		var p AuditPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case kind == KindSnapshot:
		var p SnapshotPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	default:
		return UnknownPayload{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func EncodePayload(p Payload) ([]byte, error) {
	if unknown, ok := p.(UnknownPayload); ok {
		return unknown.Raw, nil
	}
	return json.Marshal(p)
}
