package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/config"
	"github.com/achingachris/mya-server/internal/storage/postgres"
	"github.com/achingachris/mya-server/internal/storage/sqlite"
	transporthttp "github.com/achingachris/mya-server/internal/transport/http"
	"github.com/achingachris/mya-server/migrations"
)

// ledger is the storage side of the service, whichever backend holds it.
type ledger struct {
	charges interface {
		app.CheckoutRepository
		app.ReconcileRepository
		app.ProjectionRepository
	}
	catalog app.CatalogRepository
	reports app.ReportRepository
	pinger  transporthttp.Pinger
	// applied lists migrations run while opening; sqlite migrates silently.
	applied []string
	close   func()
}

const startupTimeout = 10 * time.Second

// openLedger connects to the configured store and brings its schema up to date.
func openLedger(ctx context.Context, cfg config.Config) (*ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return &ledger{
			charges: store,
			catalog: store,
			reports: store,
			pinger:  store,
			close:   func() { _ = store.Close() },
		}, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return &ledger{
			charges: postgres.NewChargeRepository(pool),
			catalog: postgres.NewCatalogRepository(pool),
			reports: postgres.NewReportRepository(pool),
			pinger:  pool,
			applied: applied,
			close:   pool.Close,
		}, nil
	}
}
