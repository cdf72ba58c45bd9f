package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docsync/api/internal/app"
	"docsync/api/internal/config"
	"docsync/api/internal/indexer"
	"docsync/api/internal/search"
	"docsync/api/internal/store"
	"docsync/api/internal/tasks"
	"docsync/api/internal/throttle"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	dataStore := store.NewPostgresStore(db)

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("index backend setup failed: %v", err)
	}

	var reindexer *indexer.BatchIndexer
	var trigger *tasks.Trigger
	var scheduler *tasks.AsyncScheduler
	if backend != nil {
		reindexer = indexer.NewBatchIndexer(dataStore, backend, cfg.BatchSize)

		limiter, err := throttle.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer limiter.Close()

		scheduler = tasks.NewAsyncScheduler(30 * time.Second)
		trigger = tasks.NewTrigger(dataStore, backend, limiter, scheduler, cfg.Cooldown)
		log.Printf("Indexing enabled with backend %q", cfg.IndexerBackend)
	} else {
		log.Printf("Indexing disabled, search uses the local title filter")
	}

	searchService := search.NewService(dataStore, backend)
	service := app.New(cfg, searchService, reindexer, trigger)

	httpServer := app.NewHTTPServer(service)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Docsync API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if scheduler != nil {
		scheduler.Wait()
	}
}

// buildBackend resolves the configured index backend. A nil backend with
// a nil error is the deliberate disabled state.
func buildBackend(ctx context.Context, cfg config.Config) (indexer.Backend, error) {
	switch cfg.IndexerBackend {
	case "":
		return nil, nil
	case config.BackendFind:
		return indexer.NewFindBackend(cfg.IndexerURL, cfg.IndexerQueryURL, cfg.IndexerSecret)
	case config.BackendMeili:
		return indexer.NewMeiliBackend(ctx, cfg.MeiliURL, cfg.MeiliMasterKey)
	default:
		return nil, fmt.Errorf("unknown indexer backend %q", cfg.IndexerBackend)
	}
}
