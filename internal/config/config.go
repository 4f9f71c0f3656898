// Package config loads notitia settings from an optional notitia.yaml,
// NOTITIA_* environment variables and built-in defaults, in that order of
// increasing precedence: environment beats file beats default.
//
//	database: sqlite:./data/app.db
//	dialect: sqlite
//	log:
//	  level: info
//	  format: text
//	engine:
//	  workers: 32
//	  lookup_timeout: 5s
//	metrics:
//	  addr: ":9090"
//
// NOTITIA_ENGINE_WORKERS=8 overrides engine.workers.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/notitia/internal/engine"
	"github.com/roach88/notitia/internal/querysql"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "NOTITIA"

// Config holds every runtime setting.
type Config struct {
	// Database is the storage URI passed to engine.Connect.
	Database string        `mapstructure:"database"`
	Dialect  string        `mapstructure:"dialect"`
	Log      LogConfig     `mapstructure:"log"`
	Engine   EngineConfig  `mapstructure:"engine"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// EngineConfig tunes the merge engine.
type EngineConfig struct {
	Workers       int           `mapstructure:"workers"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", "sqlite::memory:")
	v.SetDefault("dialect", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("engine.workers", engine.DefaultMergeWorkers)
	v.SetDefault("engine.lookup_timeout", engine.DefaultLookupTimeout)
	v.SetDefault("metrics.addr", "")
}

// Default returns the built-in defaults.
func Default() Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(err) // defaults are valid
	}
	return cfg
}

// Load reads configuration. An explicit path must exist; with an empty
// path, notitia.yaml in the working directory is used if present.
func Load(path string) (Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("notitia")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field. Returns the first problem found.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("database is required")
	}
	if _, err := querysql.ParseDialect(c.Dialect); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be >= 1, got %d", c.Engine.Workers)
	}
	if c.Engine.LookupTimeout <= 0 {
		return fmt.Errorf("engine.lookup_timeout must be positive, got %s", c.Engine.LookupTimeout)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger builds a logger writing to w. verbose forces debug level.
func (c Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level, err := c.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EngineOptions converts the engine settings to engine options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithMergeWorkers(c.Engine.Workers),
		engine.WithLookupTimeout(c.Engine.LookupTimeout),
	}
}
