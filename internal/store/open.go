package store

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/store/postgres"
	"github.com/goran-ethernal/TransferIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	pkgstore "github.com/goran-ethernal/TransferIndexor/pkg/store"
)

// Open returns the store selected by the scheme of cfg.DatabaseURL.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (pkgstore.Store, error) {
	backend, target, err := config.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(target, cfg.Database, cfg.Indexer.WriterLockTTL.Duration, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, target, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database backend %q", backend)
	}
}
