package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/persistence/file"
	"github.com/weftflow/weft/pkg/persistence/postgresql"
)

// NewPersistence builds a storage driver from the database URL scheme.
// postgres:// connects to PostgreSQL, anything else is treated as a file
// path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize postgresql persistence: " + err.Error())
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}
