package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type aggregationTestContext struct {
	events    *mockEventRepo
	orgs      *mockOrgRepo
	inventory *domain.Inventory
	err       error
}

func (c *aggregationTestContext) reset() {
	c.events = newMockEventRepo()
	c.orgs = &mockOrgRepo{locations: make(map[int64][]int64)}
	c.inventory = nil
	c.err = nil
}

func (c *aggregationTestContext) organizationHasStorageLocations(org int64, list string) error {
	ids, err := parseIDs(list)
	if err != nil {
		return err
	}
	c.orgs.locations[org] = ids
	return nil
}

func (c *aggregationTestContext) anEventAdding(kind, eventableType string, eventableID int64, at string, qty int, itemID, to int64) error {
	return c.appendMovement(kind, eventableType, eventableID, at, add(itemID, qty, to))
}

func (c *aggregationTestContext) anEventMoving(kind, eventableType string, eventableID int64, at string, qty int, itemID, from, to int64) error {
	return c.appendMovement(kind, eventableType, eventableID, at, transfer(itemID, qty, from, to))
}

func (c *aggregationTestContext) appendMovement(kind, eventableType string, eventableID int64, at string, item domain.LineItem) error {
	eventTime, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return err
	}
	c.events.append(movement(1, domain.EventKind(kind), eventableType, eventableID, eventTime, item))
	return nil
}

func (c *aggregationTestContext) anAudit(auditID, locationID int64, at string, qty int, itemID int64) error {
	eventTime, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return err
	}
	c.events.append(domain.Event{
		OrganizationID: 1,
		Kind:           domain.KindAudit,
		EventableType:  "Audit",
		EventableID:    auditID,
		EventTime:      eventTime,
		Payload: domain.AuditPayload{
			StorageLocationID: locationID,
			Items:             []domain.LineItem{add(itemID, qty, locationID)},
		},
	})
	return nil
}

func (c *aggregationTestContext) aSnapshot(at string, qty int, itemID, locationID int64) error {
	eventTime, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return err
	}
	loc := domain.NewStorageLocation(locationID)
	loc.AddInventory(itemID, qty)
	c.events.append(domain.Event{
		OrganizationID: 1,
		Kind:           domain.KindSnapshot,
		EventableType:  "Organization",
		EventableID:    1,
		EventTime:      eventTime,
		Payload:        domain.SnapshotPayload{StorageLocations: map[int64]*domain.StorageLocation{locationID: loc}},
	})
	return nil
}

func (c *aggregationTestContext) iComputeTheInventory(org int64) error {
	svc := NewInventoryService(c.events, c.orgs, DefaultRegistry(), zap.NewNop())
	c.inventory, c.err = svc.ComputeInventory(context.Background(), org)
	return nil
}

func (c *aggregationTestContext) locationHolds(locationID int64, qty int, itemID int64) error {
	if c.err != nil {
		return fmt.Errorf("compute failed: %w", c.err)
	}
	if got := c.inventory.Quantity(locationID, itemID); got != qty {
		return fmt.Errorf("expected %d of item %d at location %d, got %d", qty, itemID, locationID, got)
	}
	return nil
}

func (c *aggregationTestContext) locationHoldsExactly(locationID int64, want string) error {
	if c.err != nil {
		return fmt.Errorf("compute failed: %w", c.err)
	}
	loc, ok := c.inventory.StorageLocation(locationID)
	if !ok {
		return fmt.Errorf("location %d missing", locationID)
	}
	parts := make([]string, 0, len(loc.Items))
	for _, id := range loc.ItemIDs() {
		parts = append(parts, fmt.Sprintf("%d:%d", id, loc.Items[id]))
	}
	if got := strings.Join(parts, ","); got != want {
		return fmt.Errorf("expected location %d to hold %q, got %q", locationID, want, got)
	}
	return nil
}

func (c *aggregationTestContext) theInventoryHasLocations(list string) error {
	if c.err != nil {
		return fmt.Errorf("compute failed: %w", c.err)
	}
	want, err := parseIDs(list)
	if err != nil {
		return err
	}
	got := c.inventory.LocationIDs()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		return fmt.Errorf("expected locations %v, got %v", want, got)
	}
	return nil
}

func (c *aggregationTestContext) theComputationFailsWith(msg string) error {
	if c.err == nil {
		return fmt.Errorf("expected an error containing %q", msg)
	}
	if !strings.Contains(c.err.Error(), msg) {
		return fmt.Errorf("expected an error containing %q, got %v", msg, c.err)
	}
	return nil
}

func parseIDs(list string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(list, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &aggregationTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^organization (\d+) has storage locations "([^"]*)"$`, tc.organizationHasStorageLocations)
	ctx.Step(`^a "([^"]*)" for "([^"]*)" (\d+) at "([^"]*)" adding (\d+) of item (\d+) to location (\d+)$`, tc.anEventAdding)
	ctx.Step(`^a "([^"]*)" for "([^"]*)" (\d+) at "([^"]*)" moving (\d+) of item (\d+) from location (\d+) to location (\d+)$`, tc.anEventMoving)
	ctx.Step(`^an audit (\d+) of location (\d+) at "([^"]*)" counting (\d+) of item (\d+)$`, tc.anAudit)
	ctx.Step(`^a snapshot at "([^"]*)" with (\d+) of item (\d+) at location (\d+)$`, tc.aSnapshot)

	// When steps
	ctx.Step(`^I compute the inventory of organization (\d+)$`, tc.iComputeTheInventory)

	// Then steps
	ctx.Step(`^location (\d+) holds (\d+) of item (\d+)$`, tc.locationHolds)
	ctx.Step(`^location (\d+) holds exactly "([^"]*)"$`, tc.locationHoldsExactly)
	ctx.Step(`^the inventory has locations "([^"]*)"$`, tc.theInventoryHasLocations)
	ctx.Step(`^the computation fails with "([^"]*)"$`, tc.theComputationFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
