package helpers

import (
	"path"
	"testing"
	"time"

	"github.com/goran-ethernal/TransferIndexor/internal/logger"
	"github.com/goran-ethernal/TransferIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewTestStore creates a migrated SQLite store in a temporary directory.
func NewTestStore(t *testing.T, dbName string) *sqlite.Store {
	t.Helper()

	dbConfig := config.DatabaseConfig{}
	dbConfig.ApplyDefaults()

	st, err := sqlite.Open(path.Join(t.TempDir(), dbName), dbConfig, time.Minute, logger.NewNopLogger())
	require.NoError(t, err)

	t.Cleanup(func() { st.Close() })

	return st
}
