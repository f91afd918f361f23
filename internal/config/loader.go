package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/TransferIndexor/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Environment variables and the flags bound to them. Keys are the lowercase
// env names so that viper resolves both the process environment and .env files.
const (
	envRPCURL           = "ethereum_rpc_url"
	envDatabaseURL      = "database_url"
	envTokenContract    = "token_contract_address"
	envBlocksPerRequest = "blocks_per_request"
	envFinalityBlocks   = "finality_blocks"

	FlagRPCURL      = "rpc-url"
	FlagDatabaseURL = "database-url"
)

// Options controls where configuration is read from.
type Options struct {
	// Path is an optional config file (.yaml, .yml, .json, .toml)
	Path string

	// DotEnvPath overrides the .env location; empty uses DotEnvFile
	DotEnvPath string

	// Flags are bound on top of every other source when set
	Flags *pflag.FlagSet
}

// Load builds the configuration from defaults, an optional file, an optional .env file,
// environment variables and explicitly set flags, in increasing order of precedence.
func Load(opts Options) (*pkgconfig.Config, error) {
	cfg := &pkgconfig.Config{}
	if opts.Path != "" {
		loaded, err := decodeFile(opts.Path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}

	return processConfig(cfg)
}

// LoadFromFile loads configuration from a file, auto-detecting the format by extension.
// Supported formats: .yaml, .yml, .json, .toml
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	return processConfig(cfg)
}

func decodeFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return decodeYAML(path)
	case ".json":
		return decodeJSON(path)
	case ".toml":
		return decodeTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}
}

func decodeYAML(path string) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return &cfg, nil
}

func decodeJSON(path string) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	return &cfg, nil
}

func decodeTOML(path string) (*pkgconfig.Config, error) {
	var cfg pkgconfig.Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	return &cfg, nil
}

// applyOverrides layers .env, environment variables and flags onto cfg.
func applyOverrides(cfg *pkgconfig.Config, opts Options) error {
	v := viper.New()
	v.AutomaticEnv()

	dotenv := opts.DotEnvPath
	if dotenv == "" {
		dotenv = DotEnvFile
	}
	if _, err := os.Stat(dotenv); err == nil {
		v.SetConfigFile(dotenv)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", dotenv, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", dotenv, err)
	}

	if opts.Flags != nil {
		if f := opts.Flags.Lookup(FlagRPCURL); f != nil && f.Changed {
			if err := v.BindPFlag(envRPCURL, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", FlagRPCURL, err)
			}
		}
		if f := opts.Flags.Lookup(FlagDatabaseURL); f != nil && f.Changed {
			if err := v.BindPFlag(envDatabaseURL, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", FlagDatabaseURL, err)
			}
		}
	}

	if v.IsSet(envRPCURL) {
		cfg.EthereumRPCURL = v.GetString(envRPCURL)
	}
	if v.IsSet(envDatabaseURL) {
		cfg.DatabaseURL = v.GetString(envDatabaseURL)
	}
	if v.IsSet(envTokenContract) {
		cfg.TokenContractAddress = v.GetString(envTokenContract)
	}
	if v.IsSet(envBlocksPerRequest) {
		n, err := parseUintSetting(v, envBlocksPerRequest)
		if err != nil {
			return err
		}
		cfg.BlocksPerRequest = n
	}
	if v.IsSet(envFinalityBlocks) {
		n, err := parseUintSetting(v, envFinalityBlocks)
		if err != nil {
			return err
		}
		cfg.FinalityBlocks = n
	}

	return nil
}

func parseUintSetting(v *viper.Viper, key string) (uint64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, pkgconfig.NewConfigError(key, fmt.Sprintf("must be a non-negative integer, got %q", raw))
	}
	return n, nil
}

// processConfig applies defaults and validates the configuration.
func processConfig(cfg *pkgconfig.Config) (*pkgconfig.Config, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
