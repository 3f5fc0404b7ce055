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

	"teamops/api/internal/app"
	"teamops/api/internal/config"
	"teamops/api/internal/history"
	"teamops/api/internal/loader"
	"teamops/api/internal/notify"
	"teamops/api/internal/search"
	"teamops/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	historyService := history.New(cfg.HistoryDir)

	var cache loader.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for the aggregate cache")
		redisCache, err := loader.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		log.Printf("Using the in-process aggregate cache")
		cache = loader.NewMemoryCache()
	}
	aggregates := loader.New(dataStore, cache, cfg.CacheTTL)

	pgfts := search.NewPgFTS(dataStore.DB())
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	mailer := notify.NewService(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured, attendee notifications disabled")
	}

	service := app.New(cfg, dataStore, aggregates, historyService, searchService, mailer)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("TeamOps API listening on %s", cfg.Addr)
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
