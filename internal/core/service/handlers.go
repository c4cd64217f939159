package service

import (
	"fmt"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// Replayed history is trusted: every projection moves items without validation.

func handleInventoryEvent(event domain.Event, inventory *domain.Inventory) error {
	payload, ok := event.Payload.(domain.InventoryPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	return applyLineItems(payload.Items, inventory, false)
}

// handleAuditEvent recounts one location: its previous contents are discarded
// and rebuilt from the audited line items.
func handleAuditEvent(event domain.Event, inventory *domain.Inventory) error {
	payload, ok := event.Payload.(domain.AuditPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	inventory.RecountStorageLocation(payload.StorageLocationID)
	return applyLineItems(payload.Items, inventory, false)
}

func handleSnapshotEvent(event domain.Event, inventory *domain.Inventory) error {
	payload, ok := event.Payload.(domain.SnapshotPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	inventory.ReplaceStorageLocations(payload.StorageLocations)
	return nil
}

func applyLineItems(items []domain.LineItem, inventory *domain.Inventory, validate bool) error {
	for _, item := range items {
		err := inventory.MoveItem(item.ItemID, item.Quantity,
			item.FromStorageLocation, item.ToStorageLocation, validate)
		if err != nil {
			return err
		}
	}
	return nil
}

func unexpectedPayload(event domain.Event) error {
	return fmt.Errorf("%w: %T for %s", domain.ErrUnexpectedPayload, event.Payload, event.Kind)
}
