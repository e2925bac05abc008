// Package main is the entry point for the seismic section server.
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

	"github.com/segy-tiles/server/internal/api"
	"github.com/segy-tiles/server/internal/cache"
	"github.com/segy-tiles/server/internal/config"
	"github.com/segy-tiles/server/internal/data/store"
	"github.com/segy-tiles/server/internal/data/tiledb"
	"github.com/segy-tiles/server/internal/data/zarr"
	"github.com/segy-tiles/server/internal/render"
	"github.com/segy-tiles/server/internal/segy"
	"github.com/segy-tiles/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting section server on port %d", cfg.Server.Port)

	// Initialize cache manager (shared across all surveys)
	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		QueryCacheSize:   cfg.Cache.QuerySize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	// Initialize section renderer (shared across all surveys)
	renderer := render.NewSectionRenderer(render.Config{
		Scale:           cfg.Render.Scale,
		ClipPercentile:  cfg.Render.ClipPercentile,
		DefaultColormap: cfg.Render.DefaultColormap,
	})

	defaultSurvey, ok := cfg.Surveys.Default()
	if !ok {
		log.Fatalf("No surveys configured in %s", *configPath)
	}

	surveyIDs := make([]string, 0, len(cfg.Surveys))
	for _, s := range cfg.Surveys {
		surveyIDs = append(surveyIDs, s.ID)
	}
	registry := api.NewSurveyRegistry(defaultSurvey.ID, surveyIDs)

	log.Printf("Initializing %d survey(s), default: %s", len(surveyIDs), defaultSurvey.ID)

	// Open each survey store and register its service.
	for _, sc := range cfg.Surveys {
		var (
			ds  *store.Dataset
			err error
		)
		switch sc.Backend {
		case "tiledb":
			var uri string
			uri, err = tiledb.ResolveSurveyURI(sc.Path)
			if err == nil {
				ds, err = tiledb.Open(uri)
			}
		default:
			ds, err = zarr.Open(sc.Path)
		}
		if err != nil {
			log.Fatalf("Failed to open survey %q (%s): %v", sc.ID, sc.Backend, err)
		}

		file := segy.Open(sc.Path, ds)
		_, structured := file.Structured()
		log.Printf("  [%s] Loaded from: %s (backend=%s, structured=%v)",
			sc.ID, sc.Path, sc.Backend, structured)

		registry.Register(sc.ID, service.NewSurveyService(service.Config{
			SurveyID: sc.ID,
			File:     file,
			Cache:    cacheManager,
			Renderer: renderer,
		}))
	}
	defer registry.Close()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Cache:       cacheManager,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
