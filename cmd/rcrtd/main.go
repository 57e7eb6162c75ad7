// rcrtd is the RCRT server: it exposes the REST/SSE gateway over a
// PostgreSQL-backed breadcrumb store, and runs the background edge-builder
// and TTL-hygiene workers alongside it.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rcrt-io/rcrt/pkg/api"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/database"
	"github.com/rcrt-io/rcrt/pkg/directory"
	"github.com/rcrt-io/rcrt/pkg/edges"
	"github.com/rcrt-io/rcrt/pkg/embedder"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/schema"
	"github.com/rcrt-io/rcrt/pkg/search"
	"github.com/rcrt-io/rcrt/pkg/secrets"
	"github.com/rcrt-io/rcrt/pkg/storage"
	"github.com/rcrt-io/rcrt/pkg/ttl"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file at %s, continuing with process environment", envPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("close database pool", "error", err)
		}
	}()
	db, goquDB := dbClient.DB(), dbClient.Q()
	slog.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	registry := schema.New()

	kek, err := secrets.LoadKEK(cfg.Secrets.KEKBase64)
	if err != nil {
		log.Fatalf("load secrets KEK: %v", err)
	}
	secretsSvc := secrets.New(db, goquDB, kek)

	issuer := auth.NewIssuer(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	webhookStore := events.NewStore(db, goquDB)
	dispatcher := events.NewDispatcher(db, goquDB, webhookStore, cfg.Events.WebhookMaxRetries, cfg.Events.WebhookBaseDelay, cfg.Events.WebhookMaxDelay)
	publisher := events.NewPublisher(goquDB, cfg.Events.ChannelPrefix, dispatcher)

	manager := events.NewManager(webhookStore, cfg.Events.SubscriberQueueSize, cfg.Events.HeartbeatInterval)
	listener := events.NewNotifyListener(cfg.Database.DSN(), manager)
	manager.SetListener(listener)
	if err := listener.Start(ctx); err != nil {
		log.Fatalf("start notify listener: %v", err)
	}
	defer listener.Stop(context.Background())

	edgePool := edges.NewPool(db, goquDB, cfg.Edges)
	edgePool.Start(ctx)
	defer edgePool.Stop()

	hygiene := ttl.NewHygieneWorker(db, goquDB, publisher, cfg.Hygiene)
	hygiene.Start(ctx)
	defer hygiene.Stop()

	store := storage.New(db, goquDB, registry, publisher, edgePool, cfg.HTTP.IdempotencyWindow)

	if err := registry.Reload(ctx, store.SchemaLoader()); err != nil {
		log.Fatalf("prime schema registry: %v", err)
	}
	slog.Info("schema registry primed")

	var embed embedder.Embedder
	if cfg.Embedder.Endpoint != "" {
		embed = embedder.New(cfg.Embedder)
	}
	planner := search.New(db, goquDB, registry, embed, cfg.Search)

	dir := directory.New(db, goquDB)

	server := api.NewServer(cfg, store, planner, secretsSvc, dir, manager, issuer)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown", "error", err)
		}
	}()

	slog.Info("rcrtd listening", "port", cfg.HTTP.Port)
	if err := server.Start(":" + cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
	}
}
