package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/allocation/internal/adapter/handler"
	"github.com/rl1809/allocation/internal/platform/logger"
)

const (
	initialStock  = 20
	totalRequests = 50
	maxAttempts   = 20
)

func main() {
	target := flag.String("target", "localhost:50051", "allocation gRPC address")
	flag.Parse()

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	conn, err := handler.Dial(*target)
	if err != nil {
		log.Fatal("failed to connect", "target", *target, "error", err)
	}
	defer conn.Close()
	client := handler.NewAllocationClient(conn)

	ctx := context.Background()
	sku := "STRESS-" + uuid.NewString()[:8]
	if _, err := client.AddBatch(ctx, &handler.AddBatchRequest{Reference: sku + "-batch", SKU: sku, Quantity: initialStock}); err != nil {
		log.Fatal("failed to add batch", "sku", sku, "error", err)
	}

	// Counters
	var successCount, outOfStockCount, failCount, retryCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			orderID := uuid.NewString()
			retries, err := allocateWithRetry(ctx, client, orderID, sku)
			retryCount.Add(int32(retries))
			switch {
			case err == nil:
				successCount.Add(1)
			case status.Code(err) == codes.FailedPrecondition:
				outOfStockCount.Add(1)
			default:
				failCount.Add(1)
				log.Warn("allocation failed", "order_id", orderID, "error", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("SKU:              %s\n", sku)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Allocated:        %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Conflict retries: %d\n", retryCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && outOfStock == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: exactly %d allocations succeeded, %d out of stock\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d allocated/%d out of stock, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, outOfStock)
		os.Exit(1)
	}
}

var errTooManyConflicts = errors.New("gave up after repeated conflicts")

// allocateWithRetry reopens the allocation on every Aborted response, which
// the server returns when another writer committed the product first.
func allocateWithRetry(ctx context.Context, client *handler.AllocationClient, orderID, sku string) (int, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := client.Allocate(ctx, &handler.AllocateRequest{OrderID: orderID, SKU: sku, Quantity: 1})
		if status.Code(err) != codes.Aborted {
			return attempt, err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return maxAttempts, errTooManyConflicts
}
