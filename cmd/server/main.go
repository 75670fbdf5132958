package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/rental-checkout/internal/auth"
	"github.com/example/rental-checkout/internal/backend"
	"github.com/example/rental-checkout/internal/booking"
	"github.com/example/rental-checkout/internal/checkout"
	"github.com/example/rental-checkout/internal/config"
	"github.com/example/rental-checkout/internal/events"
	"github.com/example/rental-checkout/internal/handoff"
	httpapi "github.com/example/rental-checkout/internal/http"
	"github.com/example/rental-checkout/internal/inflight"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/logging"
	"github.com/example/rental-checkout/internal/notify"
	"github.com/example/rental-checkout/internal/payment"
	"github.com/example/rental-checkout/internal/pricing"
	"github.com/example/rental-checkout/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("rental-checkout", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []func(context.Context) error

	// tab-session scope: Redis when configured, otherwise process memory
	var kv storage.KV
	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		rkv := storage.NewRedisKV(rc)
		if err := rkv.Ping(ctx); err != nil {
			logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		kv = rkv
		checks = append(checks, rkv.Ping)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory session store")
		kv = storage.NewMemoryKV()
	}

	// contact recall: Postgres when configured, otherwise the same KV
	var contacts storage.ContactStore = storage.NewKVContactStore(kv)
	var pg *storage.PostgresContactStore
	if cfg.PGDSN != "" {
		pg, err = storage.NewPostgresContactStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			migrate(ctx, logger, pg)
		}
		contacts = pg
		checks = append(checks, pg.Ping)
	}

	var publisher events.Publisher = events.Nop{}
	var kp *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kp
	}

	api := backend.NewClient(cfg.BackendBaseURL, cfg.BackendAPIKey, cfg.BackendTimeout, uint32(cfg.BreakerMaxFailures))
	drafts := itinerary.NewDraftStore(kv, cfg.HandoffTTL)
	recall := handoff.NewRecall(contacts, cfg.ContactRecallTTL)
	guard := inflight.NewGuard()
	wsreg := notify.NewWSRegistry()

	orch := &checkout.Orchestrator{
		Bundles:  handoff.NewBundles(kv, cfg.HandoffTTL),
		Recall:   recall,
		Attempts: checkout.NewAttempts(kv, cfg.HandoffTTL),
		Drafts:   drafts,
		Bookings: booking.NewClient(api),
		Payments: payment.NewDispatcher(payment.NewPaystack(api), payment.NewMonnify(api)),
		Events:   publisher,
		Notifier: wsreg,
		Guard:    guard,
		Logger:   logger,
	}

	var resolver httpapi.IdentityResolver
	if cfg.JWTSecret != "" {
		resolver = auth.NewJWTResolver(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, every rider is treated as anonymous")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Drafts:   drafts,
		Pricing:  pricing.NewClient(api),
		Checkout: orch,
		Recall:   recall,
		Auth:     resolver,
		WSReg:    wsreg,
		Events:   publisher,
		Guard:    guard,
		Ready: func(ctx context.Context) error {
			var errs []error
			for _, check := range checks {
				errs = append(errs, check(ctx))
			}
			return errors.Join(errs...)
		},
		QuotePagePath:  cfg.QuotePagePath,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustedProxies: cfg.TrustedProxies,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("rental-checkout listening", "addr", cfg.HTTPAddr, "backend", cfg.BackendBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if kp != nil {
		_ = kp.Close()
	}
	if pg != nil {
		_ = pg.Close()
	}
	if rc != nil {
		_ = rc.Close()
	}
}

func migrate(ctx context.Context, logger *slog.Logger, pg *storage.PostgresContactStore) {
	name := "001_create_remembered_contacts.sql"
	b, err := os.ReadFile(filepath.Join("migrations", name))
	if err != nil {
		logger.Error("migration read failed", "file", name, "error", err)
		return
	}
	if err := pg.Migrate(ctx, string(b)); err != nil {
		logger.Error("migration exec failed", "file", name, "error", err)
		return
	}
	logger.Info("migration applied", "file", name)
}
