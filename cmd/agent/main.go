package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalmesh/telemetryd/internal/config"
	"github.com/vitalmesh/telemetryd/internal/database"
	"github.com/vitalmesh/telemetryd/internal/handlers"
	"github.com/vitalmesh/telemetryd/internal/pairing"
	"github.com/vitalmesh/telemetryd/internal/store"
	"github.com/vitalmesh/telemetryd/internal/sync"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize the durable buffer (embedded vs external detected automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Migrate the per-category record tables
	log.Println("🚀 Synchronizing record schema...")
	recordStore := store.NewDBStore(db)
	if err := recordStore.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Write the pairing QR if configured
	if cfg.Device.PairingQRPath != "" {
		if err := pairing.WriteQR(cfg.Device.PairingQRPath, cfg.Server.BaseURL, cfg.Device.ID); err != nil {
			log.Printf("⚠️ Pairing QR: %v", err)
		} else {
			log.Printf("🔗 Pairing QR written to %s", cfg.Device.PairingQRPath)
		}
	}

	// 5. Build and start the sync engine
	engine := sync.NewEngine(cfg, recordStore)
	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start sync engine: %v", err)
	}

	// 6. Local HTTP surface for sensor collaborators and status
	router := handlers.NewRouter(engine, cfg.Device.ID)
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router.Handler(),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Agent (%s) listening on port %s\n", cfg.Device.ID, cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the engine first so no writer touches the store mid-close
	engine.Stop()

	log.Println("🛑 Closing record buffer...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
