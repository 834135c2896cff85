// Package config loads the runtime toggles listed in spec.md's
// Configuration options section: query timeout, cluster heartbeat
// cadence, change-feed and index-compaction GC intervals, the expression
// evaluator's stack-depth limit, and the storage engine's opaque
// tunables. A TOML or YAML file (github.com/BurntSushi/toml, the same
// direct Unmarshal call the teacher's internal/formula/parser.go uses
// for its recipe files) supplies the base layer; github.com/spf13/viper
// then layers environment variables on top, mirroring the precedence
// order the teacher's cli/root.go sets up with viper.AutomaticEnv.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved set of runtime toggles.
type Config struct {
	QueryTimeout time.Duration

	NodeMembershipRefreshInterval time.Duration
	NodeMembershipCheckInterval   time.Duration
	NodeMembershipCleanupInterval time.Duration

	ChangefeedGCInterval    time.Duration
	IndexCompactionInterval time.Duration

	MaxComputationDepth int

	Storage StorageConfig
}

// StorageConfig holds the C2 backend selection plus a driver-opaque
// Tunable map, which this package never interprets itself. Tunable is
// not passed to kv.Open: cmd/coredbd opens the driver with a zero
// kv.Options and reads only Tunable["compaction_targets"], for the index
// compactor.
type StorageConfig struct {
	Driver  string
	DSN     string
	Tunable map[string]interface{}
}

// fileConfig mirrors Config field-for-field but spells durations as
// plain strings ("45s", "1h"), since neither BurntSushi/toml nor
// gopkg.in/yaml.v3 know how to decode a quoted duration straight into a
// time.Duration (an int64 underneath); cast.ToDurationE does that
// conversion once the raw file has been decoded.
type fileConfig struct {
	QueryTimeout string `toml:"query_timeout" yaml:"query_timeout"`

	NodeMembershipRefreshInterval string `toml:"node_membership_refresh_interval" yaml:"node_membership_refresh_interval"`
	NodeMembershipCheckInterval   string `toml:"node_membership_check_interval" yaml:"node_membership_check_interval"`
	NodeMembershipCleanupInterval string `toml:"node_membership_cleanup_interval" yaml:"node_membership_cleanup_interval"`

	ChangefeedGCInterval    string `toml:"changefeed_gc_interval" yaml:"changefeed_gc_interval"`
	IndexCompactionInterval string `toml:"index_compaction_interval" yaml:"index_compaction_interval"`

	MaxComputationDepth int `toml:"max_computation_depth" yaml:"max_computation_depth"`

	Storage struct {
		Driver  string                 `toml:"driver" yaml:"driver"`
		DSN     string                 `toml:"dsn" yaml:"dsn"`
		Tunable map[string]interface{} `toml:"tunable" yaml:"tunable"`
	} `toml:"storage" yaml:"storage"`
}

// defaults mirrors the zero-config behavior a fresh checkout should have.
func defaults() Config {
	return Config{
		QueryTimeout:                  30 * time.Second,
		NodeMembershipRefreshInterval: 5 * time.Second,
		NodeMembershipCheckInterval:   10 * time.Second,
		NodeMembershipCleanupInterval: time.Minute,
		ChangefeedGCInterval:          time.Hour,
		IndexCompactionInterval:       time.Hour,
		MaxComputationDepth:           120,
		Storage: StorageConfig{
			Driver: "memory",
		},
	}
}

// applyDuration overwrites *field with raw parsed as a duration, unless
// raw is empty.
func applyDuration(field *time.Duration, key, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return fmt.Errorf("config: parse %s=%q: %w", key, raw, err)
	}
	*field = d
	return nil
}

// Load resolves a Config from, in ascending precedence: built-in
// defaults, the config file at path (TOML or YAML, picked by extension;
// skipped entirely if path is empty or absent), then COREDB_-prefixed
// environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			var fc fileConfig
			if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
				err = yaml.Unmarshal(data, &fc)
			} else {
				err = toml.Unmarshal(data, &fc)
			}
			if err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
			if err := applyFileConfig(&cfg, fc); err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"query_timeout", fc.QueryTimeout, &cfg.QueryTimeout},
		{"node_membership_refresh_interval", fc.NodeMembershipRefreshInterval, &cfg.NodeMembershipRefreshInterval},
		{"node_membership_check_interval", fc.NodeMembershipCheckInterval, &cfg.NodeMembershipCheckInterval},
		{"node_membership_cleanup_interval", fc.NodeMembershipCleanupInterval, &cfg.NodeMembershipCleanupInterval},
		{"changefeed_gc_interval", fc.ChangefeedGCInterval, &cfg.ChangefeedGCInterval},
		{"index_compaction_interval", fc.IndexCompactionInterval, &cfg.IndexCompactionInterval},
	}
	for _, d := range durations {
		if err := applyDuration(d.field, d.key, d.raw); err != nil {
			return err
		}
	}

	if fc.MaxComputationDepth != 0 {
		if fc.MaxComputationDepth <= 0 {
			return fmt.Errorf("config: max_computation_depth must be positive, got %d", fc.MaxComputationDepth)
		}
		cfg.MaxComputationDepth = fc.MaxComputationDepth
	}
	if fc.Storage.Driver != "" {
		cfg.Storage.Driver = fc.Storage.Driver
	}
	if fc.Storage.DSN != "" {
		cfg.Storage.DSN = fc.Storage.DSN
	}
	if fc.Storage.Tunable != nil {
		cfg.Storage.Tunable = fc.Storage.Tunable
	}
	return nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix("coredb")
	v.AutomaticEnv()

	durations := []struct {
		key   string
		field *time.Duration
	}{
		{"query_timeout", &cfg.QueryTimeout},
		{"node_membership_refresh_interval", &cfg.NodeMembershipRefreshInterval},
		{"node_membership_check_interval", &cfg.NodeMembershipCheckInterval},
		{"node_membership_cleanup_interval", &cfg.NodeMembershipCleanupInterval},
		{"changefeed_gc_interval", &cfg.ChangefeedGCInterval},
		{"index_compaction_interval", &cfg.IndexCompactionInterval},
	}
	for _, d := range durations {
		if err := v.BindEnv(d.key); err != nil {
			return fmt.Errorf("config: bind %s: %w", d.key, err)
		}
		if err := applyDuration(d.field, d.key, v.GetString(d.key)); err != nil {
			return err
		}
	}

	if err := v.BindEnv("max_computation_depth"); err != nil {
		return fmt.Errorf("config: bind max_computation_depth: %w", err)
	}
	if raw := v.GetString("max_computation_depth"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: max_computation_depth must be a positive integer, got %q", raw)
		}
		cfg.MaxComputationDepth = n
	}

	if err := v.BindEnv("storage_driver"); err != nil {
		return fmt.Errorf("config: bind storage_driver: %w", err)
	}
	if d := v.GetString("storage_driver"); d != "" {
		cfg.Storage.Driver = d
	}
	if err := v.BindEnv("storage_dsn"); err != nil {
		return fmt.Errorf("config: bind storage_dsn: %w", err)
	}
	if d := v.GetString("storage_dsn"); d != "" {
		cfg.Storage.DSN = d
	}

	return nil
}
