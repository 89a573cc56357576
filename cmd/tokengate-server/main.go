package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/directory"
	"github.com/MrEthical07/tokengate/internal/config"
	"github.com/MrEthical07/tokengate/internal/forms"
	"github.com/MrEthical07/tokengate/internal/logger"
	"github.com/MrEthical07/tokengate/internal/server"
	"github.com/MrEthical07/tokengate/internal/sqlitedb"
	promexport "github.com/MrEthical07/tokengate/metrics/export/prometheus"
	"github.com/MrEthical07/tokengate/revocation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlitedb.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	users := directory.NewSQLiteDirectory(db, cfg.BcryptCost)
	if err := users.Migrate(ctx); err != nil {
		return err
	}
	formsSvc := forms.NewService(db, nil)
	if err := formsSvc.Migrate(ctx); err != nil {
		return err
	}

	store, closeStore, err := openRevocationStore(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("revocation store: %w", err)
	}
	defer closeStore()

	engineCfg := tokengate.DefaultConfig()
	engineCfg.JWT.Secret = []byte(cfg.JWTSecret)
	engineCfg.JWT.TTL = cfg.JWTExpiresIn
	engineCfg.JWT.SigningMethod = cfg.JWTMethod
	engineCfg.JWT.Issuer = cfg.JWTIssuer
	engineCfg.JWT.Audience = cfg.JWTAudience
	engineCfg.JWT.Leeway = cfg.JWTLeeway
	engineCfg.Login.UnifyFailures = cfg.UnifyFailures
	engineCfg.Revocation.LookupTimeout = cfg.LookupTimeout
	engineCfg.Revocation.WriteTimeout = cfg.WriteTimeout
	engineCfg.Revocation.PruneInterval = cfg.PruneInterval
	engineCfg.Revocation.Grace = cfg.RevocationGrace
	engineCfg.Audit.Enabled = true

	engine, err := tokengate.New().
		WithConfig(engineCfg).
		WithRevocationStore(store).
		WithUserDirectory(users).
		WithAuditSink(tokengate.NewZapSink(log)).
		WithLogger(log).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	metrics := promexport.NewCollector(engine).Handler()
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(engine, users, formsSvc, metrics, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("revocation_backend", cfg.RevocationBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRevocationStore builds the configured backend. The sqlite backend
// shares the application database.
func openRevocationStore(ctx context.Context, cfg config.Config, db *sql.DB) (revocation.Store, func(), error) {
	grace := cfg.RevocationGrace
	switch cfg.RevocationBackend {
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := revocation.NewRedisStore(client, cfg.RedisPrefix, grace)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil

	case config.BackendSQLite:
		store := revocation.NewSQLiteStore(db, grace)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := revocation.NewPostgresStore(pool, grace)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return revocation.NewMemoryStore(grace), func() {}, nil
	}
}
