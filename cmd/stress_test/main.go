package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/storefront/internal/adapter/handler/pb"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	initialStock  = 20
	totalRequests = 50
	seller        = "stress-seller"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	grpcAddr := getenv("GRPC_ADDR", "localhost:50051")
	mysqlDSN := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true")

	// Seed a product directly in the catalog
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	catalog := storage.NewMySQLAdapter(db)

	prodNo, err := catalog.CreateProduct(ctx, domain.Product{
		Name:        "stress item",
		Description: "limited stock item",
		Category:    1,
		Price:       100,
		Count:       initialStock,
		Seller:      seller,
	}, "")
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	conn, err := grpc.NewClient(grpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
	)
	if err != nil {
		log.Fatalf("failed to dial grpc: %v", err)
	}
	defer conn.Close()
	client := pb.NewOrderServiceClient(conn)

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			resp, err := client.PlaceOrder(ctx, &pb.PlaceOrderRequest{
				RequestId: uuid.NewString(),
				ProdNo:    prodNo,
				Count:     1,
				Buyer:     fmt.Sprintf("user-%d", userID),
			})
			switch {
			case err != nil:
				errorCount.Add(1)
			case resp.GetSuccess():
				successCount.Add(1)
			default:
				soldOutCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Product:          %d\n", prodNo)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", soldOut)
	fmt.Printf("RPC Errors:       %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify final stock in MySQL
	p, err := catalog.GetProduct(ctx, prodNo)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", p.Count)

	if p.Count == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", p.Count)
	}
}
