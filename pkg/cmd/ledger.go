package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/weftflow/weft/pkg/ledger"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/persistence/postgresql"
)

// NewLedger builds the idempotency ledger from its URL. redis:// uses Redis,
// postgres:// reuses the persistence pool when the store is PostgreSQL, an
// empty URL falls back to the in-process ledger for single-binary setups.
func NewLedger(ctx context.Context, logger *slog.Logger, ledgerURL string, store persistence.Persistence) ledger.Ledger {
	switch {
	case strings.HasPrefix(ledgerURL, "redis://"):
		redisLedger, err := ledger.NewRedisLedger(ctx, ledgerURL)
		if err != nil {
			panic("failed to initialize redis ledger: " + err.Error())
		}

		return redisLedger
	case strings.HasPrefix(ledgerURL, "postgres://"), strings.HasPrefix(ledgerURL, "postgresql://"):
		pgStore, ok := store.(*postgresql.Persistence)
		if !ok {
			panic("postgres ledger requires postgresql persistence")
		}

		return ledger.NewPostgresLedger(pgStore.DB())
	default:
		logger.Warn("Using in-memory idempotency ledger, dedup is lost on restart")

		return ledger.NewMemoryLedger()
	}
}
