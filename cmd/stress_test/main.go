package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/adapter/messaging"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
)

const (
	itemID        = 1001
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// A fresh organization per run keeps earlier runs out of the numbers
	orgID := time.Now().UnixMicro()
	locationID, err := mysqlAdapter.CreateStorageLocation(ctx, orgID, "stress-test")
	if err != nil {
		log.Fatalf("failed to create storage location: %v", err)
	}

	policy := domain.ReductionPolicy{RejectZero: !cfg.ReductionAllowZero}
	movementService := service.NewMovementService(mysqlAdapter, redisAdapter, redisAdapter, messaging.NopNotifier{}, policy, zap.NewNop())

	_, err = movementService.RecordMovement(ctx, service.RecordMovementRequest{
		RequestID:      fmt.Sprintf("stress-%d-seed", orgID),
		OrganizationID: orgID,
		Kind:           domain.KindDonation,
		EventableType:  "Donation",
		EventableID:    1,
		Items:          []domain.LineItem{{ItemID: itemID, Quantity: initialStock, ToStorageLocation: locationID}},
	})
	if err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent distributions
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := movementService.RecordMovement(ctx, service.RecordMovementRequest{
				RequestID:      fmt.Sprintf("stress-%d-%d", orgID, n),
				OrganizationID: orgID,
				Kind:           domain.KindDistribution,
				EventableType:  "Distribution",
				EventableID:    int64(n + 1),
				Items:          []domain.LineItem{{ItemID: itemID, Quantity: 1, FromStorageLocation: locationID}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientInventory):
				insufficientCount.Add(1)
			default:
				failCount.Add(1)
				log.Printf("distribution %d failed: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	insufficient := insufficientCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Organization:     %d\n", orgID)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Other Failures:   %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && insufficient == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d distributions succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, insufficient)
	}

	// Verify the replayed log agrees with the live table
	live, err := mysqlAdapter.LoadInventory(ctx, orgID)
	if err != nil {
		log.Fatalf("failed to load live inventory: %v", err)
	}
	replay := service.NewInventoryService(mysqlAdapter, mysqlAdapter, service.DefaultRegistry(), zap.NewNop(),
		service.WithPolicy(policy))
	projected, err := replay.ComputeInventory(ctx, orgID)
	if err != nil {
		log.Fatalf("failed to replay events: %v", err)
	}

	liveStock := live.Quantity(locationID, itemID)
	projectedStock := projected.Quantity(locationID, itemID)
	fmt.Printf("Final Live Stock:      %d\n", liveStock)
	fmt.Printf("Final Projected Stock: %d\n", projectedStock)

	if liveStock == 0 && projectedStock == 0 {
		fmt.Println("PASS: Stock depleted to 0 in both views")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got live %d projected %d\n", liveStock, projectedStock)
	}
}
