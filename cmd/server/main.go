/*
main.go - Application entry point

PURPOSE:
  Wires the storage layer, HTTP handlers, and the daily status scheduler
  together, then runs the HTTP server with graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags
  2. Open SQLite store (migrates on open)
  3. Build handler and router
  4. Start the daily status sweep scheduler
  5. Serve HTTP until SIGINT/SIGTERM
  6. Drain in-flight requests, stop the scheduler, close the store

SEE ALSO:
  - api/server.go: route table
  - api/scheduler.go: the timed sweep
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careflow/nutrition-engine/api"
	"github.com/careflow/nutrition-engine/inventory"
	"github.com/careflow/nutrition-engine/store/sqlite"
)

func main() {
	var (
		port      = flag.String("port", "8080", "HTTP server port")
		dbPath    = flag.String("db", "nutrition.db", "SQLite database path")
		sweepTime = flag.String("sweep-time", "02:00", "Daily status sweep time (HH:MM)")
		timezone  = flag.String("tz", "UTC", "IANA timezone for the sweep schedule")
		seed      = flag.Bool("seed", false, "Seed the default product catalog (dev)")
	)
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("[Main] Failed to open store: %v", err)
	}
	defer store.Close()
	log.Printf("[Main] Store ready at %s", *dbPath)

	if *seed {
		if err := seedCatalog(store); err != nil {
			log.Fatalf("[Main] Failed to seed catalog: %v", err)
		}
	}

	handler := api.NewHandler(store, store)
	router := api.NewRouter(handler)

	scheduler, err := api.NewStatusScheduler(store, *sweepTime, *timezone)
	if err != nil {
		log.Fatalf("[Main] Invalid sweep configuration: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Main] Listening on :%s", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Main] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[Main] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Main] Forced shutdown: %v", err)
	}

	log.Println("[Main] Stopped")
}

// seedCatalog upserts the default product catalog for development setups.
func seedCatalog(store *sqlite.Store) error {
	ctx := context.Background()
	products := []inventory.Product{
		{ID: "fortified-flour", Name: "Fortified flour"},
		{ID: "nutrition-supplement", Name: "Nutrition supplement"},
	}
	for _, p := range products {
		if err := store.SaveProduct(ctx, p); err != nil {
			return err
		}
	}
	log.Printf("[Main] Seeded %d products", len(products))
	return nil
}
