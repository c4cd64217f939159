package domain

import (
	"encoding/json"
	"sort"
)

// ReductionPolicy decides where a validated reduction stops. The zero value
// allows a reduction to land exactly on zero.
type ReductionPolicy struct {
	RejectZero bool `json:"reject_zero"`
}

// StorageLocation maps item ids to the quantity on hand at one location.
type StorageLocation struct {
	ID     int64
	Items  map[int64]int
	Policy ReductionPolicy
}

func NewStorageLocation(id int64) *StorageLocation {
	return &StorageLocation{
		ID:    id,
		Items: make(map[int64]int),
	}
}

func (s *StorageLocation) AddInventory(itemID int64, quantity int) {
	s.Items[itemID] += quantity
}

// ReduceInventory subtracts quantity from the item. With validate set the
// location is left untouched when it cannot cover the reduction; without it
// the subtraction always applies and the quantity may go negative.
func (s *StorageLocation) ReduceInventory(itemID int64, quantity int, validate bool) error {
	current, ok := s.Items[itemID]
	if validate {
		remaining := current - quantity
		if !ok || remaining < 0 || (remaining == 0 && s.Policy.RejectZero) {
			return &InsufficientInventoryError{
				LocationID: s.ID,
				ItemID:     itemID,
				Requested:  quantity,
				Available:  current,
				Known:      ok,
			}
		}
	}
	s.Items[itemID] = current - quantity
	return nil
}

// Reset discards every item, ahead of a recount.
func (s *StorageLocation) Reset() {
	s.Items = make(map[int64]int)
}

func (s *StorageLocation) Quantity(itemID int64) int {
	return s.Items[itemID]
}

// ItemIDs returns the item ids held at the location in ascending order.
func (s *StorageLocation) ItemIDs() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *StorageLocation) clone() *StorageLocation {
	items := make(map[int64]int, len(s.Items))
	for id, qty := range s.Items {
		items[id] = qty
	}
	return &StorageLocation{ID: s.ID, Items: items, Policy: s.Policy}
}

type itemJSON struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type storageLocationJSON struct {
	ID    int64              `json:"id"`
	Items map[int64]itemJSON `json:"items"`
}

// MarshalJSON writes the location in the shape snapshot events carry:
// {"id":1,"items":{"7":{"item_id":7,"quantity":3}}}.
func (s *StorageLocation) MarshalJSON() ([]byte, error) {
	out := storageLocationJSON{ID: s.ID, Items: make(map[int64]itemJSON, len(s.Items))}
	for id, qty := range s.Items {
		out.Items[id] = itemJSON{ItemID: id, Quantity: qty}
	}
	return json.Marshal(out)
}

func (s *StorageLocation) UnmarshalJSON(data []byte) error {
	var in storageLocationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.ID = in.ID
	s.Items = make(map[int64]int, len(in.Items))
	for key, item := range in.Items {
		id := item.ItemID
		if id == 0 {
			id = key
		}
		s.Items[id] = item.Quantity
	}
	return nil
}
