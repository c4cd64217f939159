package domain

import (
	"encoding/json"
	"sort"
)

// Inventory is the projected state of one organization: every storage
// location it holds and the quantity of each item within.
type Inventory struct {
	OrganizationID   int64
	StorageLocations map[int64]*StorageLocation
	policy           ReductionPolicy
}

type InventoryOption func(*Inventory)

func WithReductionPolicy(policy ReductionPolicy) InventoryOption {
	return func(inv *Inventory) {
		inv.policy = policy
	}
}

// NewInventory seeds an inventory with one empty storage location per id.
func NewInventory(organizationID int64, locationIDs []int64, opts ...InventoryOption) *Inventory {
	inv := &Inventory{
		OrganizationID:   organizationID,
		StorageLocations: make(map[int64]*StorageLocation, len(locationIDs)),
	}
	for _, opt := range opts {
		opt(inv)
	}
	for _, id := range locationIDs {
		inv.addStorageLocation(id)
	}
	return inv
}

// MoveItem is the single mutation every projection goes through. A zero
// location id means "not given". The reduction from the source runs before
// the addition to the destination; a failed reduction returns before the
// destination is touched.
func (inv *Inventory) MoveItem(itemID int64, quantity int, from, to int64, validate bool) error {
	if from != 0 {
		source, ok := inv.StorageLocations[from]
		if !ok {
			if validate {
				return &LocationNotFoundError{LocationID: from}
			}
			source = inv.addStorageLocation(from)
		}
		if err := source.ReduceInventory(itemID, quantity, validate); err != nil {
			return err
		}
	}
	if to != 0 {
		destination, ok := inv.StorageLocations[to]
		if !ok {
			return &LocationNotFoundError{LocationID: to}
		}
		destination.AddInventory(itemID, quantity)
	}
	return nil
}

// ResetStorageLocation clears a known location ahead of a recount.
func (inv *Inventory) ResetStorageLocation(id int64) error {
	loc, ok := inv.StorageLocations[id]
	if !ok {
		return &LocationNotFoundError{LocationID: id}
	}
	loc.Reset()
	return nil
}

// RecountStorageLocation empties a location ahead of a replayed recount. An
// audit of a location discarded since is trusted and brings it back.
func (inv *Inventory) RecountStorageLocation(id int64) {
	if loc, ok := inv.StorageLocations[id]; ok {
		loc.Reset()
		return
	}
	inv.addStorageLocation(id)
}

// ReplaceStorageLocations drops every location and installs the given ones.
func (inv *Inventory) ReplaceStorageLocations(locations map[int64]*StorageLocation) {
	inv.StorageLocations = make(map[int64]*StorageLocation, len(locations))
	for id, loc := range locations {
		if loc == nil {
			loc = NewStorageLocation(id)
		}
		copied := loc.clone()
		copied.ID = id
		copied.Policy = inv.policy
		inv.StorageLocations[id] = copied
	}
}

func (inv *Inventory) SetReductionPolicy(policy ReductionPolicy) {
	inv.policy = policy
	for _, loc := range inv.StorageLocations {
		loc.Policy = policy
	}
}

func (inv *Inventory) ReductionPolicy() ReductionPolicy {
	return inv.policy
}

func (inv *Inventory) StorageLocation(id int64) (*StorageLocation, bool) {
	loc, ok := inv.StorageLocations[id]
	return loc, ok
}

func (inv *Inventory) Quantity(locationID, itemID int64) int {
	loc, ok := inv.StorageLocations[locationID]
	if !ok {
		return 0
	}
	return loc.Quantity(itemID)
}

// LocationIDs returns the storage location ids in ascending order.
func (inv *Inventory) LocationIDs() []int64 {
	ids := make([]int64, 0, len(inv.StorageLocations))
	for id := range inv.StorageLocations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ItemTotals sums each item across all storage locations.
func (inv *Inventory) ItemTotals() map[int64]int {
	totals := make(map[int64]int)
	for _, loc := range inv.StorageLocations {
		for id, qty := range loc.Items {
			totals[id] += qty
		}
	}
	return totals
}

func (inv *Inventory) Clone() *Inventory {
	out := &Inventory{
		OrganizationID:   inv.OrganizationID,
		StorageLocations: make(map[int64]*StorageLocation, len(inv.StorageLocations)),
		policy:           inv.policy,
	}
	for id, loc := range inv.StorageLocations {
		out.StorageLocations[id] = loc.clone()
	}
	return out
}

func (inv *Inventory) addStorageLocation(id int64) *StorageLocation {
	loc := NewStorageLocation(id)
	loc.Policy = inv.policy
	inv.StorageLocations[id] = loc
	return loc
}

type inventoryJSON struct {
	OrganizationID   int64                      `json:"organization_id"`
	StorageLocations map[int64]*StorageLocation `json:"storage_locations"`
	Policy           ReductionPolicy            `json:"reduction_policy"`
}

func (inv *Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inventoryJSON{
		OrganizationID:   inv.OrganizationID,
		StorageLocations: inv.StorageLocations,
		Policy:           inv.policy,
	})
}

func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var in inventoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	inv.OrganizationID = in.OrganizationID
	inv.policy = in.Policy
	inv.ReplaceStorageLocations(in.StorageLocations)
	return nil
}
