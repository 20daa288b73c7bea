package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/analytics"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/api"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/collector"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/config"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/database"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/monitor"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the store. An empty DB_PATH means the store is
	// disabled: the monitor still samples, nothing is persisted.
	var st *store.Store
	if cfg.DBPath == "" {
		log.Println("DB_PATH not set, store disabled")
		st = store.New(nil, cfg.RetentionCap)
	} else {
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		st = store.New(store.NewGormMedium(db), cfg.RetentionCap)
	}

	coll := collector.New(cfg.CounterURL, cfg.DescriptionURL, collector.Options{
		CounterTimeout:     cfg.CounterTimeout,
		DescriptionTimeout: cfg.DescriptionTimeout,
		RateLimit:          rate.Limit(cfg.FetchRatePerSecond),
		RateBurst:          cfg.FetchRateBurst,
	})
	engine := analytics.NewEngine(cfg.ObservedWindow)
	mon := monitor.New(coll, engine, st, cfg.ObservedWindow, cfg.PollInterval)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the sampling loop in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in monitor: %v - restarting in 30 seconds", r)
					}
				}()
				mon.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Monitor restarting after panic recovery...")
			}
		}
	}()

	router := api.SetupRouter(mon, st, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the sampling loop
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
