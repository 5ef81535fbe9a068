package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/ai"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/handlers"
	"github.com/sellerbridge/sellerbridge/internal/market/coupang"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/normalize"
	"github.com/sellerbridge/sellerbridge/internal/orchestrator"
	"github.com/sellerbridge/sellerbridge/internal/orders"
	"github.com/sellerbridge/sellerbridge/internal/supplier/ownerclan"
	"github.com/sellerbridge/sellerbridge/internal/tasks"
	"github.com/sellerbridge/sellerbridge/internal/token"
	"github.com/sellerbridge/sellerbridge/internal/websocket"
	"gorm.io/gorm/clause"
)

// defaultCategories seeds the canonical category set; supplier-side
// aliases accumulate on top of it at runtime.
var defaultCategories = map[string]string{
	"fashion":       "Fashion & Apparel",
	"beauty":        "Beauty & Personal Care",
	"food":          "Food & Beverage",
	"home":          "Home & Living",
	"digital":       "Digital & Electronics",
	"sports":        "Sports & Outdoor",
	"kids":          "Kids & Baby",
	"pet":           "Pet Supplies",
	"health":        "Health & Wellness",
	"stationery":    "Stationery & Office",
	"automotive":    "Automotive",
	"uncategorized": "Uncategorized",
}

// seedCategories upserts the canonical category rows and reloads any
// learned supplier-name aliases into the in-memory mapper.
func seedCategories(db *database.DB, cats *normalize.CategoryMapper) {
	for key, name := range defaultCategories {
		db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&models.Category{Key: key, Name: name})
	}

	var stored []models.Category
	if err := db.Find(&stored).Error; err != nil {
		log.Printf("⚠️ Failed to load stored categories: %v", err)
		return
	}
	for _, cat := range stored {
		cats.AddAlias(cat.Name, cat.Key)
		var aliases []string
		if len(cat.Aliases) > 0 && json.Unmarshal(cat.Aliases, &aliases) == nil {
			for _, alias := range aliases {
				cats.AddAlias(alias, cat.Key)
			}
		}
	}
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	syncCfg := config.LoadSyncConfig()

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.SupplierAccount{},
		&models.SupplierToken{},
		&models.Product{},
		&models.Category{},
		&models.Order{},
		&models.OrderItem{},
		&models.SyncHistory{},
		&models.Task{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Wire up adapters and services
	hub := websocket.NewHub()
	go hub.Run()

	supplierClient := ownerclan.NewClient(ownerclan.Config{
		APIURL:     cfg.Supplier.APIURL,
		AuthURL:    cfg.Supplier.AuthURL,
		Timeout:    syncCfg.HTTPTimeout,
		MaxRetries: syncCfg.MaxRetries,
		BaseDelay:  syncCfg.RetryBaseDelay,
	})
	marketClient := coupang.NewClient(coupang.Config{
		BaseURL:    cfg.Market.BaseURL,
		Timeout:    syncCfg.HTTPTimeout,
		MaxRetries: syncCfg.MaxRetries,
		BaseDelay:  syncCfg.RetryBaseDelay,
	})

	tokenStore := token.NewStore(db, supplierClient, syncCfg.TokenTTL, cfg.EncKey)

	var categorizer *ai.Categorizer
	if cfg.AI.GeminiAPIKey != "" {
		categorizer, err = ai.NewCategorizer(context.Background(), cfg.AI.GeminiAPIKey, cfg.AI.Model)
		if err != nil {
			log.Printf("⚠️ AI categorizer disabled: %v", err)
			categorizer = nil
		} else {
			log.Println("🤖 AI categorizer enabled")
			defer categorizer.Close()
		}
	}

	tracker := tasks.NewTracker(db, hub, syncCfg)
	if err := tracker.RecoverInterrupted(); err != nil {
		log.Printf("⚠️ Task recovery failed: %v", err)
	}
	tracker.Start()

	cats := normalize.NewCategoryMapper(defaultCategories)
	seedCategories(db, cats)
	orch := orchestrator.New(db, tokenStore, supplierClient, marketClient, tracker, cats, categorizer, syncCfg)

	relay := orders.NewRelay(db, tokenStore, supplierClient, marketClient, hub, syncCfg)
	relay.Start()

	// Periodic cleanup of finished tasks
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := tracker.Cleanup(syncCfg.CleanupAge); err != nil {
				log.Printf("Task cleanup error: %v", err)
			}
		}
	}()

	// 5. Set up HTTP router
	router := handlers.NewRouter(db, cfg, hub, tracker, orch, relay, tokenStore)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 6. Start server with graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s\n", cfg.Port)
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

	relay.Stop()
	tracker.Stop()

	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("👋 Shutdown complete")
}
