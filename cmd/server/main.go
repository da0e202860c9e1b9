package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lakumart/backoffice/internal/config"
	"lakumart/backoffice/internal/httpapi"
	"lakumart/backoffice/internal/ledger"
	"lakumart/backoffice/internal/remote"
	"lakumart/backoffice/internal/report"
)

func main() {
	cfg := config.Load()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("[config] %v", err)
	}

	var closers []io.Closer
	ledgerStore := selectLedgerStore(cfg, &closers)

	if cfg.ReportAPIURL == "" {
		log.Printf("[remote] WARN: REPORT_API_URL is empty, reports will degrade to offline-ledger data only")
	}
	remoteClient := remote.NewClient(cfg.ReportAPIURL, cfg.ReportAPIToken, time.Duration(cfg.ReportTimeoutSeconds)*time.Second)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("[config] WARN: unknown timezone %q, falling back to UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}

	reportService := report.NewService(remoteClient, ledgerStore, cfg.TaxRate, cfg.PageSize, loc)
	authManager := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, httpapi.SeedAccounts())
	api := httpapi.New(reportService, authManager, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[server] listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] WARN: shutdown error: %v", err)
	}
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			log.Printf("[server] WARN: close error: %v", err)
		}
	}
	log.Printf("[server] bye")
}

// selectLedgerStore picks the offline ledger backend in priority order:
// Postgres mirror when DATABASE_URL is set, the device Redis key when
// REDIS_ADDR is set and reachable, otherwise a seeded in-memory store so the
// server stays usable in demos and local development.
func selectLedgerStore(cfg config.Config, closers *[]io.Closer) ledger.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.DatabaseURL != "" {
		store, err := ledger.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[ledger] postgres connect failed: %v", err)
		}
		*closers = append(*closers, store)
		log.Printf("[ledger] using postgres offline mirror")
		return store
	}

	if cfg.RedisAddr != "" {
		store := ledger.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LedgerKey)
		if err := store.Ping(ctx); err != nil {
			log.Printf("[ledger] WARN: redis at %s unreachable, falling back to in-memory seed: %v", cfg.RedisAddr, err)
			_ = store.Close()
			return ledger.NewMemorySeeded()
		}
		*closers = append(*closers, store)
		log.Printf("[ledger] using redis key %q", cfg.LedgerKey)
		return store
	}

	log.Printf("[ledger] no DATABASE_URL or REDIS_ADDR configured, using seeded in-memory store")
	return ledger.NewMemorySeeded()
}

func validateSecurityConfig(cfg config.Config) error {
	if cfg.AuthSecret == "" {
		log.Printf("[config] WARN: AUTH_SECRET is empty, using an insecure development default")
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters, got %d", len(cfg.AuthSecret))
	}
	return nil
}
