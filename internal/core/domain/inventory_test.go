package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInventory_SeedsEmptyLocations(t *testing.T) {
	inv := NewInventory(1, []int64{3, 1, 2})

	assert.Equal(t, int64(1), inv.OrganizationID)
	assert.Equal(t, []int64{1, 2, 3}, inv.LocationIDs())
	for _, id := range inv.LocationIDs() {
		loc, ok := inv.StorageLocation(id)
		require.True(t, ok)
		assert.Empty(t, loc.Items)
	}
}

func TestMoveItem_Transfer(t *testing.T) {
	inv := NewInventory(1, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 10, 0, 1, false))

	require.NoError(t, inv.MoveItem(10, 5, 1, 2, false))

	assert.Equal(t, 5, inv.Quantity(1, 10))
	assert.Equal(t, 5, inv.Quantity(2, 10))
}

func TestMoveItem_PureReductionAndAddition(t *testing.T) {
	inv := NewInventory(1, []int64{1})

	require.NoError(t, inv.MoveItem(10, 8, 0, 1, true))
	require.NoError(t, inv.MoveItem(10, 3, 1, 0, true))

	assert.Equal(t, 5, inv.Quantity(1, 10))
}

func TestMoveItem_NoLocationsIsNoop(t *testing.T) {
	inv := NewInventory(1, []int64{1})

	require.NoError(t, inv.MoveItem(10, 8, 0, 0, true))

	assert.Empty(t, inv.StorageLocations[1].Items)
}

func TestMoveItem_MissingSourceValidated(t *testing.T) {
	inv := NewInventory(1, []int64{1})

	err := inv.MoveItem(10, 1, 9, 1, true)

	var notFound *LocationNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(9), notFound.LocationID)
	assert.True(t, errors.Is(err, ErrStorageLocationNotFound))
	_, created := inv.StorageLocation(9)
	assert.False(t, created)
	assert.Equal(t, 0, inv.Quantity(1, 10))
}

func TestMoveItem_MissingSourceTrustedIsCreated(t *testing.T) {
	inv := NewInventory(1, []int64{1})

	require.NoError(t, inv.MoveItem(10, 4, 9, 1, false))

	loc, ok := inv.StorageLocation(9)
	require.True(t, ok)
	assert.Equal(t, -4, loc.Quantity(10))
	assert.Equal(t, 4, inv.Quantity(1, 10))
}

func TestMoveItem_MissingDestinationAlwaysFails(t *testing.T) {
	for _, validate := range []bool{true, false} {
		inv := NewInventory(1, []int64{1})

		err := inv.MoveItem(10, 1, 0, 9, validate)

		assert.True(t, errors.Is(err, ErrStorageLocationNotFound), "validate=%v", validate)
		_, created := inv.StorageLocation(9)
		assert.False(t, created)
	}
}

func TestMoveItem_ValidatedTransferFailsBeforeAdd(t *testing.T) {
	inv := NewInventory(1, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))

	err := inv.MoveItem(10, 5, 1, 2, true)

	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	assert.Equal(t, 2, inv.Quantity(1, 10))
	assert.Equal(t, 0, inv.Quantity(2, 10))
}

func TestInventory_PolicyPropagates(t *testing.T) {
	inv := NewInventory(1, []int64{1}, WithReductionPolicy(ReductionPolicy{RejectZero: true}))
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))

	err := inv.MoveItem(10, 2, 1, 0, true)
	assert.True(t, errors.Is(err, ErrInsufficientInventory))

	inv.SetReductionPolicy(ReductionPolicy{})
	assert.NoError(t, inv.MoveItem(10, 2, 1, 0, true))
}

func TestResetStorageLocation(t *testing.T) {
	inv := NewInventory(1, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))
	require.NoError(t, inv.MoveItem(10, 2, 0, 2, true))

	require.NoError(t, inv.ResetStorageLocation(1))

	assert.Empty(t, inv.StorageLocations[1].Items)
	assert.Equal(t, 2, inv.Quantity(2, 10))
	assert.True(t, errors.Is(inv.ResetStorageLocation(9), ErrStorageLocationNotFound))
}

func TestReplaceStorageLocations(t *testing.T) {
	inv := NewInventory(1, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 2, 0, 2, true))
	replacement := NewStorageLocation(1)
	replacement.AddInventory(10, 3)

	inv.ReplaceStorageLocations(map[int64]*StorageLocation{1: replacement})

	assert.Equal(t, []int64{1}, inv.LocationIDs())
	assert.Equal(t, 3, inv.Quantity(1, 10))

	replacement.AddInventory(10, 100)
	assert.Equal(t, 3, inv.Quantity(1, 10), "replacement must be copied")
}

func TestItemTotals(t *testing.T) {
	inv := NewInventory(1, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))
	require.NoError(t, inv.MoveItem(10, 5, 0, 2, true))
	require.NoError(t, inv.MoveItem(11, 1, 0, 2, true))

	assert.Equal(t, map[int64]int{10: 7, 11: 1}, inv.ItemTotals())
}

func TestClone_IsIndependent(t *testing.T) {
	inv := NewInventory(1, []int64{1})
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))

	clone := inv.Clone()
	require.NoError(t, clone.MoveItem(10, 2, 0, 1, true))

	assert.Equal(t, 2, inv.Quantity(1, 10))
	assert.Equal(t, 4, clone.Quantity(1, 10))
}

func TestInventoryJSON_RoundTrip(t *testing.T) {
	inv := NewInventory(5, []int64{1, 2})
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))
	require.NoError(t, inv.MoveItem(11, 1, 2, 0, false))

	data, err := json.Marshal(inv)
	require.NoError(t, err)

	var decoded Inventory
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, inv.OrganizationID, decoded.OrganizationID)
	assert.Equal(t, inv.LocationIDs(), decoded.LocationIDs())
	assert.Equal(t, 2, decoded.Quantity(1, 10))
	assert.Equal(t, -1, decoded.Quantity(2, 11))
}

func TestInventoryJSON_KeepsReductionPolicy(t *testing.T) {
	inv := NewInventory(5, []int64{1}, WithReductionPolicy(ReductionPolicy{RejectZero: true}))
	require.NoError(t, inv.MoveItem(10, 2, 0, 1, true))

	data, err := json.Marshal(inv)
	require.NoError(t, err)

	var decoded Inventory
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ReductionPolicy{RejectZero: true}, decoded.ReductionPolicy())

	// the decoded ledger still refuses to land on zero
	err = decoded.MoveItem(10, 2, 1, 0, true)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, 2, decoded.Quantity(1, 10))
}

func TestRecountStorageLocation(t *testing.T) {
	inv := NewInventory(1, []int64{1}, WithReductionPolicy(ReductionPolicy{RejectZero: true}))
	require.NoError(t, inv.MoveItem(10, 3, 0, 1, true))

	inv.RecountStorageLocation(1)
	assert.Equal(t, 0, inv.Quantity(1, 10))

	inv.RecountStorageLocation(9)
	loc, ok := inv.StorageLocation(9)
	require.True(t, ok)
	assert.Empty(t, loc.Items)
	assert.True(t, loc.Policy.RejectZero)
}
