package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ciabot/redactor/internal/admin"
	"github.com/ciabot/redactor/internal/audit"
	"github.com/ciabot/redactor/internal/config"
	"github.com/ciabot/redactor/internal/messaging"
	"github.com/ciabot/redactor/internal/metrics"
	"github.com/ciabot/redactor/internal/ratelimit"
	"github.com/ciabot/redactor/internal/redactor"
	"github.com/ciabot/redactor/internal/settings"
)

func main() {
	log.Println("Starting CIA bot redaction service...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Redis (optional) ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
	}

	// --- Settings ---
	var backend settings.Backend
	switch cfg.SettingsBackend {
	case config.BackendRedis:
		backend = settings.NewRedisBackend(rdb, cfg.SettingsKey)
	default:
		backend = settings.NewFileBackend(cfg.SettingsPath)
	}
	store := settings.NewStore(backend)
	if _, err := store.Load(ctx); err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			log.Printf("[settings] no saved settings, using defaults")
		} else {
			log.Printf("[settings] load failed, using defaults: %v", err)
		}
	}
	if cfg.DebugChannelID != "" && store.Snapshot().DebugChannelID == "" {
		if err := store.SetField(ctx, settings.KeyDebugChannelID, cfg.DebugChannelID); err != nil {
			log.Printf("[settings] seed debug channel: %v", err)
		}
	}

	var watcher *settings.Watcher
	if cfg.WatchSettings && cfg.SettingsBackend == config.BackendFile {
		watcher, err = settings.NewWatcher(store, cfg.SettingsPath)
		if err != nil {
			log.Fatalf("failed to create settings watcher: %v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("failed to watch settings: %v", err)
		}
	}

	// --- Postgres audit log (optional) ---
	var auditStore *audit.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		if err := audit.Migrate(db); err != nil {
			log.Fatalf("failed to migrate audit schema: %v", err)
		}
		auditStore = audit.NewStore(db)
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "ciabot-redactor"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	platform := messaging.NewPlatform(natsClient, cfg.NATSRequestTimeout)

	// --- Pipeline ---
	var limiter ratelimit.Allower = ratelimit.NewLocal()
	if rdb != nil {
		limiter = ratelimit.NewLimiter(rdb)
	}

	opts := redactor.Options{
		Settings:   store,
		Platform:   platform,
		Notifier:   redactor.NewNotifier(platform, limiter),
		Production: cfg.Production,
	}
	var gatewayOpts []admin.Option
	if auditStore != nil {
		opts.Auditor = auditStore
		gatewayOpts = append(gatewayOpts, admin.WithRecorder(auditStore))
	}

	service := redactor.NewService(opts)
	if err := service.Start(natsClient, natsConfig.QueueGroup); err != nil {
		log.Fatalf("failed to subscribe to messages: %v", err)
	}

	gateway := admin.NewGateway(store, cfg.AdminID, gatewayOpts...)
	err = natsClient.SubscribeCommands(natsConfig.QueueGroup, func(data []byte) []byte {
		return gateway.Handle(ctx, data)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to commands: %v", err)
	}

	// --- Metrics ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("CIA bot redaction service running")
	log.Printf("  production:       %v", cfg.Production)
	log.Printf("  settings_backend: %s", cfg.SettingsBackend)
	log.Printf("  nats_url:         %s", natsConfig.URL)
	log.Printf("  redis:            %v", rdb != nil)
	log.Printf("  audit_log:        %v", auditStore != nil)
	log.Printf("  metrics_addr:     %s", cfg.MetricsAddr)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	if err := natsClient.UnsubscribeCommands(); err != nil {
		log.Printf("unsubscribe commands: %v", err)
	}
	service.Stop()
	if watcher != nil {
		watcher.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}

	natsClient.Close()
	if db != nil {
		db.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
}
