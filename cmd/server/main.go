/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Wallet Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Build the engine, coupon validator and discount aggregator
  4. Start the background transformation sweep
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: wallet.db)
                  Use ":memory:" for in-memory database
  -grace          Refundable grace period (default: 336h = 14 days)
  -strategy       Discount stacking: sequential, sum or max
  -fee            Transfer fee percent (default: 0)
  -fee-payer      Who pays the transfer fee: sender or receiver
  -profile-field  Profile field carrying a discount grant (default: off)
  -sweep          Cron spec for the transformation sweep

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the transformation sweep
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/wallet.db"

  # Run with in-memory database and a 1-hour grace period
  ./server -db=":memory:" -grace=1h

  # Additive discount stacking with a 2% sender-paid transfer fee
  ./server -strategy=sum -fee=2 -fee-payer=sender

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/api"
	"github.com/warp/wallet-engine/coupon"
	"github.com/warp/wallet-engine/discount"
	"github.com/warp/wallet-engine/store/sqlite"
	"github.com/warp/wallet-engine/wallet"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "wallet.db", "SQLite database path")
	grace := flag.Duration("grace", 14*24*time.Hour, "refundable grace period (0 disables)")
	strategy := flag.String("strategy", "sequential", "discount stacking: sequential, sum or max")
	fee := flag.Float64("fee", 0, "transfer fee percent")
	feePayer := flag.String("fee-payer", "receiver", "who pays the transfer fee: sender or receiver")
	profileField := flag.String("profile-field", "", "profile field carrying a discount grant (empty disables)")
	sweep := flag.String("sweep", "*/10 * * * *", "cron spec for the transformation sweep")
	flag.Parse()

	cfg := wallet.DefaultConfig()
	cfg.GracePeriod = *grace
	cfg.Strategy = wallet.DiscountStrategy(*strategy)
	cfg.TransferFeePercent = decimal.NewFromFloat(*fee)
	cfg.TransferFeePayer = wallet.FeePayer(*feePayer)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build the engine stack. The SQLite store backs every interface.
	engine := wallet.NewEngine(wallet.Deps{
		Balances:   store,
		Ledger:     wallet.NewLedger(store),
		Categories: store,
		Rules:      store,
		Users:      store,
		Transforms: store,
		Events:     wallet.LogSink{},
		Config:     cfg,
	})
	validator := coupon.NewValidator(store, store, store, coupon.DefaultConfig())
	aggregator := discount.NewAggregator(validator, store, store, store, discount.Config{
		Strategy:     cfg.Strategy,
		ProfileField: *profileField,
	})

	// Background transformation sweep
	runner := api.NewTransformRunner(store, engine)
	runner.Spec = *sweep
	if err := runner.Start(); err != nil {
		log.Fatalf("Failed to start transformation sweep: %v", err)
	}
	defer runner.Stop()

	// Create router
	handler := api.NewHandler(store, engine, validator, aggregator)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
