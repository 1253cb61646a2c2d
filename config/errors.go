// Package config provides error definitions for runtime configuration.
package config

import "errors"

// Validation errors.
var (
	ErrInvalidEnvironment   = errors.New("invalid environment")
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidSyncInterval  = errors.New("sync interval must be positive")
	ErrInvalidTransportKind = errors.New("invalid transport kind")
	ErrInvalidClusterSize   = errors.New("cluster size must be positive")
	ErrInvalidRank          = errors.New("rank must be in [0, size)")
)

// Loading errors.
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrConfigValidateError = errors.New("configuration validation error")
)

// Watch errors.
var (
	// ErrImmutableFieldChanged is returned by the watcher's validation
	// callback when a reload would change anything besides Log.Level
	// or Runtime.SyncInterval — most importantly Transport or Cluster,
	// fields that already shaped channel construction and can't be
	// un-dialed at runtime.
	ErrImmutableFieldChanged = errors.New("config: transport/cluster fields cannot change on reload")
)
