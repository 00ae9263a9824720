package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"studio/internal/adapters/email"
	web "studio/internal/adapters/http"
	"studio/internal/adapters/metrics"
	"studio/internal/adapters/storage"
	accountStore "studio/internal/adapters/storage/account"
	clientStore "studio/internal/adapters/storage/client"
	consentStore "studio/internal/adapters/storage/consent"
	profileStore "studio/internal/adapters/storage/profile"
	"studio/internal/adapters/storage/session"
	"studio/internal/application/orchestrators"
	"studio/internal/config"
	"studio/internal/domain/access"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("studio: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	// Database: WAL, foreign keys, busy timeout, then migrations
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := storage.OpenDB(db, cfg.DBPath); err != nil {
		return err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return err
	}

	m := metrics.New()
	timedDB := storage.NewTimedDB(db, m, time.Duration(cfg.SlowQueryMs)*time.Millisecond)
	stores := &web.Stores{
		AccountStore: accountStore.NewSQLiteStore(timedDB),
		ProfileStore: profileStore.NewSQLiteStore(timedDB),
		ClientStore:  clientStore.NewSQLiteStore(timedDB),
		ConsentStore: consentStore.NewSQLiteStore(timedDB),
	}

	seedDeps := orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		ProfileStore: stores.ProfileStore,
	}
	if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}

	var mailer email.Sender
	if cfg.Email.ResendKey != "" {
		mailer = email.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
		slog.Info("email_sender", "provider", "resend")
	} else {
		mailer = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender", "provider", "noop", "detail", "STUDIO_RESEND_KEY is not set, email delivery is disabled")
		} else {
			slog.Info("email_sender", "provider", "noop")
		}
	}

	healthChecks := []func(context.Context) error{timedDB.PingContext}
	var sessions session.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		rs := session.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.SessionTTL)
		if err := rs.Ping(ctx); err != nil {
			return err
		}
		sessions = rs
		healthChecks = append(healthChecks, rs.Ping)
		slog.Info("session_store", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		slog.Info("session_store", "backend", "memory")
	}

	handler, err := web.NewMux(ctx, stores, web.Options{
		Config:   cfg,
		Access:   access.DefaultConfig(),
		Sessions: sessions,
		Mailer:   mailer,
		Metrics:  m,
		Health: func(ctx context.Context) error {
			for _, check := range healthChecks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "version", version, "addr", cfg.Addr, "env", cfg.Env, "schema", storage.LatestSchemaVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupLogging installs a JSON handler in production and a text handler
// otherwise.
func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
