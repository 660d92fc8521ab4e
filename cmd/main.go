package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/txledger/internal/cache"
	memcache "github.com/tinoosan/txledger/internal/cache/memory"
	rediscache "github.com/tinoosan/txledger/internal/cache/redis"
	"github.com/tinoosan/txledger/internal/config"
	"github.com/tinoosan/txledger/internal/httpapi"
	"github.com/tinoosan/txledger/internal/ledger"
	"github.com/tinoosan/txledger/internal/service/transaction"
	badgerstore "github.com/tinoosan/txledger/internal/storage/badger"
	"github.com/tinoosan/txledger/internal/storage/memory"
	pgstore "github.com/tinoosan/txledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("transaction ledger stopped", "err", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Every backend it
// opened is closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		closers []func()
		ready   []httpapi.ReadyChecker
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, err := openStore(ctx, cfg, logger, &closers, &ready)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	c, err := openCache(ctx, cfg, logger, &closers, &ready)
	if err != nil {
		return fmt.Errorf("open %s cache: %w", cfg.CacheBackend, err)
	}
	// A shared cache may hold entries computed against another process's store.
	if err := c.InvalidateAll(ctx); err != nil {
		logger.Warn("initial cache invalidation failed", "err", err)
	}

	svc := transaction.New(store, transaction.WithCache(cache.Instrument(c)), transaction.WithLogger(logger))

	if cfg.DevSeed {
		userID, ids, err := seedDev(ctx, svc)
		if err != nil {
			logger.Error("dev seed failed", "err", err)
		} else {
			logger.Info("DEV seed ("+cfg.StoreBackend+")", "user_id", userID, "transaction_ids", ids)
			printDevSeedBanner(userID, ids)
		}
	}

	api := httpapi.New(svc, logger, httpapi.WithRequestTimeout(cfg.RequestTimeout), httpapi.WithReadyCheckers(ready...))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("transaction ledger listening", "addr", srv.Addr, "store", cfg.StoreBackend, "cache", cfg.CacheBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]func(), ready *[]httpapi.ReadyChecker) (transaction.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pg.Close)
		*ready = append(*ready, pg)
		logger.Info("storage backend: postgres")
		return pg, nil
	case config.StoreBadger:
		bs, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func() {
			if err := bs.Close(); err != nil {
				logger.Error("closing badger", "err", err)
			}
		})
		*ready = append(*ready, bs)
		logger.Info("storage backend: badger", "dir", cfg.BadgerDir)
		return bs, nil
	default:
		logger.Info("storage backend: memory")
		return memory.New(), nil
	}
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]func(), ready *[]httpapi.ReadyChecker) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rdb, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		rc := rediscache.New(rdb, rediscache.WithTTL(cfg.CacheTTL))
		*closers = append(*closers, func() { _ = rc.Close() })
		*ready = append(*ready, rc)
		logger.Info("cache backend: redis", "addr", cfg.RedisAddr)
		return rc, nil
	case config.CacheNone:
		logger.Info("cache backend: none")
		return cache.Nop{}, nil
	default:
		logger.Info("cache backend: memory")
		return memcache.New(), nil
	}
}

// seedDev creates a handful of transactions for one fresh user through the service.
func seedDev(ctx context.Context, svc transaction.Service) (string, []string, error) {
	userID := uuid.NewString()
	samples := []ledger.Input{
		{UserID: userID, Amount: ledger.MustAmount("2500.00"), Type: string(ledger.TypeIncome), TransactionSummary: "Monthly salary", CounterpartyName: "Employer"},
		{UserID: userID, Amount: ledger.MustAmount("-850.00"), Type: string(ledger.TypePayment), TransactionSummary: "Rent", CounterpartyName: "Landlord"},
		{UserID: userID, Amount: ledger.MustAmount("-42.17"), Type: string(ledger.TypeExpense), TransactionSummary: "Groceries"},
		{UserID: userID, Amount: ledger.MustAmount("19.99"), Type: string(ledger.TypeRefund), TransactionSummary: "Returned headphones"},
	}
	ids := make([]string, 0, len(samples))
	for _, in := range samples {
		in.ID = uuid.NewString()
		if _, err := svc.Create(ctx, in); err != nil {
			return "", nil, err
		}
		ids = append(ids, in.ID)
	}
	return userID, ids, nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(userID string, ids []string) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("user_id: %s\n", userID)
	for _, id := range ids {
		fmt.Printf("transaction_id: %s\n", id)
	}
	fmt.Println("==================================================")
}
