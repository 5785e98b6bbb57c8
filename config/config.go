// Package config loads the settings of strata applications from a YAML
// file and STRATA_ prefixed environment variables, and builds their
// logger.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application settings.
type Config struct {
	// Dialect is the database/sql driver name: sqlite, postgres or mysql.
	Dialect string `mapstructure:"dialect"`
	// DSN is the data source name passed to the driver.
	DSN string `mapstructure:"dsn"`
	// Debug logs every statement.
	Debug bool `mapstructure:"debug"`
	// SlowThreshold is the duration above which statements are logged as
	// slow.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	Log           LogConfig     `mapstructure:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// File is the path of the rotated JSON log file. Empty logs to the
	// console only.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Dev        bool   `mapstructure:"dev"`
}

var defaults = map[string]any{
	"dialect":         "sqlite",
	"dsn":             "file:strata.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	"debug":           false,
	"slow_threshold":  200 * time.Millisecond,
	"log.level":       "info",
	"log.file":        "",
	"log.max_size":    100,
	"log.max_backups": 3,
	"log.max_age":     28,
	"log.compress":    false,
	"log.dev":         false,
}

// Loader reads the configuration and keeps it current when the file
// changes.
type Loader struct {
	v      *viper.Viper
	logger *zap.Logger

	mu  sync.RWMutex
	cfg Config
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger reporting reload failures.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// Load reads the configuration file at path, if any, and the environment.
// Environment variables take precedence, e.g. STRATA_DSN or
// STRATA_LOG_LEVEL.
func Load(path string, opts ...Option) (*Loader, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	l := &Loader{v: v, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

// Config returns the current configuration.
func (l *Loader) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch watches the configuration file and calls fn with the new
// configuration after every change. Changes that fail to decode are logged
// and ignored.
func (l *Loader) Watch(fn func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			l.logger.Warn("config: ignoring invalid change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		l.logger.Info("config: reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		if fn != nil {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	switch cfg.Dialect {
	case "sqlite", "postgres", "mysql":
	default:
		return Config{}, fmt.Errorf("config: unsupported dialect %q", cfg.Dialect)
	}
	return cfg, nil
}
