package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

// Discrepancy is one (location, item) pair where the replayed quantity and the
// live quantity disagree.
type Discrepancy struct {
	OrganizationID int64 `json:"organization_id"`
	LocationID     int64 `json:"storage_location_id"`
	ItemID         int64 `json:"item_id"`
	Projected      int   `json:"projected"`
	Live           int   `json:"live"`
}

type ReconcileResult struct {
	OrganizationID int64
	Discrepancies  []Discrepancy
	Err            error
}

// Reconciler compares the replayed inventory of each organization against the
// quantities the live tables hold.
type Reconciler struct {
	computer InventoryComputer
	live     port.LiveInventoryRepository
	workers  int
	logger   *zap.Logger
}

func NewReconciler(computer InventoryComputer, live port.LiveInventoryRepository, workers int, logger *zap.Logger) *Reconciler {
	if workers < 1 {
		workers = 1
	}
	return &Reconciler{
		computer: computer,
		live:     live,
		workers:  workers,
		logger:   logger,
	}
}

// Run reconciles the organizations on a fixed pool of workers. Results come
// back in the order of organizationIDs.
func (r *Reconciler) Run(ctx context.Context, organizationIDs []int64) []ReconcileResult {
	results := make([]ReconcileResult, len(organizationIDs))
	queue := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.workerLoop(ctx, id, queue, organizationIDs, results)
		}(i)
	}

	for i := range organizationIDs {
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

func (r *Reconciler) workerLoop(ctx context.Context, id int, queue <-chan int, organizationIDs []int64, results []ReconcileResult) {
	for idx := range queue {
		orgID := organizationIDs[idx]
		diffs, err := r.reconcile(ctx, orgID)
		results[idx] = ReconcileResult{OrganizationID: orgID, Discrepancies: diffs, Err: err}

		switch {
		case err != nil:
			r.logger.Error("reconcile failed", zap.Int("worker", id), zap.Int64("organization_id", orgID), zap.Error(err))
		case len(diffs) > 0:
			r.logger.Warn("inventory drift detected", zap.Int("worker", id), zap.Int64("organization_id", orgID), zap.Int("discrepancies", len(diffs)))
		default:
			r.logger.Debug("inventory consistent", zap.Int("worker", id), zap.Int64("organization_id", orgID))
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, organizationID int64) ([]Discrepancy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	projected, err := r.computer.ComputeInventory(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("compute inventory: %w", err)
	}
	live, err := r.live.LoadInventory(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("load live inventory: %w", err)
	}
	return Diff(projected, live), nil
}

// Diff lists every (location, item) whose quantity differs between the two
// inventories, sorted by location then item. A missing entry counts as zero.
func Diff(projected, live *domain.Inventory) []Discrepancy {
	locations := make(map[int64]struct{})
	for _, id := range projected.LocationIDs() {
		locations[id] = struct{}{}
	}
	for _, id := range live.LocationIDs() {
		locations[id] = struct{}{}
	}

	var out []Discrepancy
	for locationID := range locations {
		items := make(map[int64]struct{})
		if loc, ok := projected.StorageLocation(locationID); ok {
			for id := range loc.Items {
				items[id] = struct{}{}
			}
		}
		if loc, ok := live.StorageLocation(locationID); ok {
			for id := range loc.Items {
				items[id] = struct{}{}
			}
		}
		for itemID := range items {
			p := projected.Quantity(locationID, itemID)
			l := live.Quantity(locationID, itemID)
			if p != l {
				out = append(out, Discrepancy{
					OrganizationID: projected.OrganizationID,
					LocationID:     locationID,
					ItemID:         itemID,
					Projected:      p,
					Live:           l,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
