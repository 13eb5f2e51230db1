package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pairtask/engine/internal/config"
	"pairtask/engine/internal/httpsync"
	"pairtask/engine/internal/store"
	"pairtask/engine/internal/syncsvc"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var backend syncsvc.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis sync backend")
		redisStore, err := syncsvc.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		backend = redisStore
	} else {
		log.Printf("Using in-memory sync backend (single node only)")
		backend = syncsvc.NewMemory()
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		archive := store.NewOperationArchive(db)
		if err := archive.EnsureSchema(ctx); err != nil {
			log.Fatalf("archive schema failed: %v", err)
		}
		log.Printf("Archiving accepted operations to PostgreSQL")
		backend = syncsvc.NewArchiving(backend, archive)
	}

	httpServer := httpsync.NewServer(backend, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pairtask syncd listening on %s", cfg.Addr)
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
}
