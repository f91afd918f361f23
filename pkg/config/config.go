package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/TransferIndexor/internal/common"
	"github.com/goran-ethernal/TransferIndexor/internal/logger"
)

const (
	DefaultRPCURL               = "https://ethereum.publicnode.com"
	DefaultDatabaseURL          = "sqlite:./transfers.db"
	DefaultTokenContractAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48" // USDC
	DefaultBlocksPerRequest     = 100
	DefaultFinalityBlocks       = 12
	DefaultRequestTimeout       = 30 * time.Second
)

// Config represents the complete configuration of the transfer indexer.
type Config struct {
	// EthereumRPCURL is the JSON-RPC HTTP endpoint
	EthereumRPCURL string `yaml:"ethereum_rpc_url" json:"ethereum_rpc_url" toml:"ethereum_rpc_url"`

	// DatabaseURL selects the persistence target: "sqlite:<path>" or "postgres://..."
	DatabaseURL string `yaml:"database_url" json:"database_url" toml:"database_url"`

	// TokenContractAddress is the ERC-20 contract whose Transfer events are indexed
	TokenContractAddress string `yaml:"token_contract_address" json:"token_contract_address" toml:"token_contract_address"` //nolint:lll

	// BlocksPerRequest is the maximum block span of a single eth_getLogs call
	BlocksPerRequest uint64 `yaml:"blocks_per_request" json:"blocks_per_request" toml:"blocks_per_request"`

	// FinalityBlocks is the confirmation depth below the tip before a block is committed
	FinalityBlocks uint64 `yaml:"finality_blocks" json:"finality_blocks" toml:"finality_blocks"`

	// RequestTimeout bounds every RPC call
	RequestTimeout internalcommon.Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`

	// Indexer contains ingestion loop tuning
	Indexer IndexerConfig `yaml:"indexer" json:"indexer" toml:"indexer"`

	// Database contains SQLite connection tuning (ignored for postgres)
	Database DatabaseConfig `yaml:"database" json:"database" toml:"database"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// IndexerConfig tunes the ingestion loop.
type IndexerConfig struct {
	// PollInterval is how long to wait when no finalized block is available (one block time)
	PollInterval internalcommon.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// RetryBackoff is the pause before a failed batch is retried
	RetryBackoff internalcommon.Duration `yaml:"retry_backoff" json:"retry_backoff" toml:"retry_backoff"`

	// ReorgWindow is the number of stored blocks below the cursor compared against the chain
	ReorgWindow uint64 `yaml:"reorg_window" json:"reorg_window" toml:"reorg_window"`

	// DefaultBackfill is how far below the tip a fresh store starts
	DefaultBackfill uint64 `yaml:"default_backfill" json:"default_backfill" toml:"default_backfill"`

	// WriterLockTTL is how long a writer lock survives without a heartbeat
	WriterLockTTL internalcommon.Duration `yaml:"writer_lock_ttl" json:"writer_lock_ttl" toml:"writer_lock_ttl"`
}

// ApplyDefaults sets default values for optional indexer configuration fields.
func (i *IndexerConfig) ApplyDefaults() {
	if i.PollInterval.Duration == 0 {
		i.PollInterval = internalcommon.NewDuration(12 * time.Second) //nolint:mnd
	}
	if i.RetryBackoff.Duration == 0 {
		i.RetryBackoff = internalcommon.NewDuration(30 * time.Second) //nolint:mnd
	}
	if i.ReorgWindow == 0 {
		i.ReorgWindow = 10
	}
	if i.DefaultBackfill == 0 {
		i.DefaultBackfill = 1000
	}
	if i.WriterLockTTL.Duration == 0 {
		i.WriterLockTTL = internalcommon.NewDuration(2 * time.Minute) //nolint:mnd
	}
}

// DatabaseConfig represents SQLite connection tuning.
type DatabaseConfig struct {
	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	// WAL mode lets query and stats readers run next to the indexer
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks the SQLite pragmas.
func (d *DatabaseConfig) Validate() error {
	if d.JournalMode != "" &&
		!slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return newConfigError("database.journal_mode", "must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return newConfigError("database.synchronous", "must be one of: FULL, NORMAL, OFF")
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - indexer: Ingestion loop
	//   - chain: JSON-RPC access
	//   - decoder: Transfer log decoding
	//   - store: Persistence layer
	//   - reorg-detector: Reorganization detection
	//   - metrics: Metrics server
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[internalcommon.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return newConfigError("logging.default_level", "must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := internalcommon.AllComponents[internalcommon.ToLowerWithTrim(component)]; !validComponent {
			return newConfigError("logging.component_levels", fmt.Sprintf("unknown component '%s'", component))
		}

		if _, valid := logger.ValidLogLevels[internalcommon.ToLowerWithTrim(level)]; !valid {
			return newConfigError(fmt.Sprintf("logging.component_levels[%s]", component),
				"must be one of: debug, info, warn, error")
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if l == nil {
		return "info"
	}
	if level, ok := l.ComponentLevels[component]; ok {
		return internalcommon.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l == nil || l.DefaultLevel == "" {
		return "info"
	}
	return internalcommon.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l != nil && l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether the metrics HTTP endpoint is active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	// Format: "host:port" or ":port"
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.ListenAddress == "" {
		return newConfigError("metrics.listen_address", "required when metrics are enabled")
	}
	if m.Path == "" || m.Path[0] != '/' {
		return newConfigError("metrics.path", "must start with '/'")
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	if c.EthereumRPCURL == "" {
		c.EthereumRPCURL = DefaultRPCURL
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = DefaultDatabaseURL
	}
	if c.TokenContractAddress == "" {
		c.TokenContractAddress = DefaultTokenContractAddress
	}
	if c.BlocksPerRequest == 0 {
		c.BlocksPerRequest = DefaultBlocksPerRequest
	}
	if c.FinalityBlocks == 0 {
		c.FinalityBlocks = DefaultFinalityBlocks
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = internalcommon.NewDuration(DefaultRequestTimeout)
	}

	c.Indexer.ApplyDefaults()
	c.Database.ApplyDefaults()

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.ApplyDefaults()

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.EthereumRPCURL == "" {
		return newConfigError("ethereum_rpc_url", "is required")
	}

	if _, _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}

	if !common.IsHexAddress(c.TokenContractAddress) || !strings.HasPrefix(c.TokenContractAddress, "0x") {
		return newConfigError("token_contract_address", "must be a 0x-prefixed 20-byte hex address")
	}

	if c.BlocksPerRequest == 0 {
		return newConfigError("blocks_per_request", "must be at least 1")
	}

	if c.RequestTimeout.Duration < 0 || c.Indexer.PollInterval.Duration < 0 ||
		c.Indexer.RetryBackoff.Duration < 0 || c.Indexer.WriterLockTTL.Duration < 0 {
		return newConfigError("durations", "must not be negative")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// TokenAddress returns the configured token contract as an address.
func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.TokenContractAddress)
}

// Database backends recognised in DatabaseURL.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ParseDatabaseURL splits a database URL into its backend and the backend-specific target.
// "sqlite:./transfers.db" and "sqlite://./transfers.db" yield the file path;
// "postgres://..." and "postgresql://..." yield the URL unchanged as a pgx connection string.
func ParseDatabaseURL(raw string) (backend, target string, err error) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		target = strings.TrimPrefix(raw, "sqlite://")
		backend = BackendSQLite
	case strings.HasPrefix(raw, "sqlite:"):
		target = strings.TrimPrefix(raw, "sqlite:")
		backend = BackendSQLite
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		if _, err := url.Parse(raw); err != nil {
			return "", "", newConfigError("database_url", fmt.Sprintf("invalid postgres url: %v", err))
		}
		return BackendPostgres, raw, nil
	default:
		return "", "", newConfigError("database_url", "scheme must be one of: sqlite:, postgres://, postgresql://")
	}

	if target == "" {
		return "", "", newConfigError("database_url", "sqlite path is empty")
	}

	return backend, target, nil
}
