package config

import "fmt"

// ConfigError is returned for invalid or conflicting startup configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func newConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// NewConfigError creates a ConfigError for callers outside this package, such as CLI flag checks.
func NewConfigError(field, reason string) error {
	return newConfigError(field, reason)
}
