package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStorageLocationNotFound = errors.New("storage location not found")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrUnknownItem             = errors.New("unknown item")
	ErrUnexpectedPayload       = errors.New("unexpected event payload")
)

// LocationNotFoundError reports a movement that referenced a storage location
// the inventory does not hold.
type LocationNotFoundError struct {
	LocationID int64
}

func (e *LocationNotFoundError) Error() string {
	return fmt.Sprintf("storage location %d not found", e.LocationID)
}

func (e *LocationNotFoundError) Is(target error) bool {
	return target == ErrStorageLocationNotFound
}

// InsufficientInventoryError reports a validated reduction that the storage
// location cannot cover. Known is false when the item was never recorded there.
type InsufficientInventoryError struct {
	LocationID int64
	ItemID     int64
	Requested  int
	Available  int
	Known      bool
}

func (e *InsufficientInventoryError) Error() string {
	if !e.Known {
		return fmt.Sprintf("item %d not found in storage location %d", e.ItemID, e.LocationID)
	}
	return fmt.Sprintf("insufficient inventory for item %d in storage location %d: requested %d, available %d",
		e.ItemID, e.LocationID, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	if target == ErrInsufficientInventory {
		return true
	}
	return target == ErrUnknownItem && !e.Known
}
