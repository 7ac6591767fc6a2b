// Package config loads the tool configuration in priority order: built-in
// defaults, an optional TOML file, then OFML_-prefixed environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full tool configuration.
type Config struct {
	DataRoot  string   `mapstructure:"data_root"`
	Languages []string `mapstructure:"languages"`
	PriceDate string   `mapstructure:"price_date"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Overrides OverridesConfig `mapstructure:"overrides"`
	Log       LogConfig       `mapstructure:"log"`
}

// CacheConfig bounds the in-memory model cache.
type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	MaxModels int           `mapstructure:"max_models"`
}

// SnapshotConfig controls the persistent model snapshot store.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OverridesConfig locates the optional price override database.
type OverridesConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration. An empty path skips the file layer; a named
// file that does not exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("OFML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_root", "./ofml_data")
	v.SetDefault("languages", []string{"DE", "EN", "ANY"})
	v.SetDefault("price_date", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_models", 32)
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.path", "./.ofml-snapshots")
	v.SetDefault("overrides.path", "")
	v.SetDefault("log.level", "info")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return errors.New("data_root must be set")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be non-negative")
	}
	if c.Cache.MaxModels < 0 {
		return errors.New("cache.max_models must be non-negative")
	}
	if c.Snapshot.Enabled && c.Snapshot.Path == "" {
		return errors.New("snapshot.path must be set when snapshots are enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug/info/warn/error", c.Log.Level)
	}
	return nil
}

// BuildLogger constructs the process logger for the configured level.
// Output goes to stderr so JSON exports on stdout stay clean.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
