package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix is the environment variable namespace overrides live
// under.
const envPrefix = "ACTORMESH"

// Load applies three-tier precedence: start from DefaultConfig, merge
// in path if non-empty, then apply environment variable overrides,
// then validate. Empty path skips the file tier.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config: %s: %w", path, ErrConfigFileNotFound)
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, ErrConfigParseError)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w: %w", ErrConfigValidateError, err)
	}
	return cfg, nil
}

// applyEnv overrides cfg's reloadable and cluster-identity fields
// from ACTORMESH_* environment variables, named PREFIX_SECTION_FIELD.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(envPrefix + "_APP_ENVIRONMENT"); v != "" {
		cfg.App.Environment = Environment(v)
	}
	if v := os.Getenv(envPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Log.Level = LogLevel(v)
	}
	if v := os.Getenv(envPrefix + "_RUNTIME_SYNC_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s_RUNTIME_SYNC_INTERVAL: %w", envPrefix, err)
		}
		cfg.Runtime.SyncInterval = n
	}
	if v := os.Getenv(envPrefix + "_TRANSPORT_KIND"); v != "" {
		cfg.Transport.Kind = TransportKind(v)
	}
	if v := os.Getenv(envPrefix + "_CLUSTER_RANK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s_CLUSTER_RANK: %w", envPrefix, err)
		}
		cfg.Cluster.Rank = n
	}
	if v := os.Getenv(envPrefix + "_CLUSTER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s_CLUSTER_SIZE: %w", envPrefix, err)
		}
		cfg.Cluster.Size = n
	}
	return nil
}
