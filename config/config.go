// Package config loads the server configuration from defaults, an optional
// config file, environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys. Each one is also read from the environment variable of
// the same name.
const (
	KeyHTTPPort          = "HTTP_PORT"
	KeyDBPath            = "DB_PATH"
	KeyDBDebug           = "DB_DEBUG"
	KeyHistoryLimit      = "HISTORY_LIMIT"
	KeyRedisAddr         = "REDIS_ADDR"
	KeyRedisPassword     = "REDIS_PASSWORD"
	KeyCacheTTL          = "CACHE_TTL"
	KeyStorageDir        = "STORAGE_DIR"
	KeyCookieDomain      = "COOKIE_DOMAIN"
	KeyCookieSecure      = "COOKIE_SECURE"
	KeySessionExpiration = "SESSION_EXPIRATION"
	KeyWSIdleTimeout     = "WS_IDLE_TIMEOUT"
	KeyWSPingInterval    = "WS_PING_INTERVAL"
	KeyWSWriteTimeout    = "WS_WRITE_TIMEOUT"
	KeyClientDir         = "CLIENT_DIR"
	KeyShutdownTimeout   = "SHUTDOWN_TIMEOUT"
	KeyLogLevel          = "LOG_LEVEL"
)

// Config is the server configuration.
type Config struct {
	HTTPPort          int
	DBPath            string
	DBDebug           bool
	HistoryLimit      int
	RedisAddr         string
	RedisPassword     string
	CacheTTL          time.Duration
	StorageDir        string
	CookieDomain      string
	CookieSecure      bool
	SessionExpiration time.Duration
	WSIdleTimeout     time.Duration
	WSPingInterval    time.Duration
	WSWriteTimeout    time.Duration
	ClientDir         string
	ShutdownTimeout   time.Duration
	LogLevel          string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHTTPPort, 3000)
	v.SetDefault(KeyDBPath, "livechat.db")
	v.SetDefault(KeyDBDebug, false)
	v.SetDefault(KeyHistoryLimit, 100)
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyCacheTTL, 30*time.Second)
	v.SetDefault(KeyStorageDir, "/tmp/livechat")
	v.SetDefault(KeyCookieDomain, "")
	v.SetDefault(KeyCookieSecure, false)
	v.SetDefault(KeySessionExpiration, 24*time.Hour)
	v.SetDefault(KeyWSIdleTimeout, 60*time.Second)
	v.SetDefault(KeyWSPingInterval, 25*time.Second)
	v.SetDefault(KeyWSWriteTimeout, 10*time.Second)
	v.SetDefault(KeyClientDir, "")
	v.SetDefault(KeyShutdownTimeout, 30*time.Second)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads configFile when given, then the environment, and returns the
// validated configuration. Flags must already be bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}
	}

	cfg := &Config{
		HTTPPort:          v.GetInt(KeyHTTPPort),
		DBPath:            v.GetString(KeyDBPath),
		DBDebug:           v.GetBool(KeyDBDebug),
		HistoryLimit:      v.GetInt(KeyHistoryLimit),
		RedisAddr:         v.GetString(KeyRedisAddr),
		RedisPassword:     v.GetString(KeyRedisPassword),
		CacheTTL:          v.GetDuration(KeyCacheTTL),
		StorageDir:        v.GetString(KeyStorageDir),
		CookieDomain:      v.GetString(KeyCookieDomain),
		CookieSecure:      v.GetBool(KeyCookieSecure),
		SessionExpiration: v.GetDuration(KeySessionExpiration),
		WSIdleTimeout:     v.GetDuration(KeyWSIdleTimeout),
		WSPingInterval:    v.GetDuration(KeyWSPingInterval),
		WSWriteTimeout:    v.GetDuration(KeyWSWriteTimeout),
		ClientDir:         v.GetString(KeyClientDir),
		ShutdownTimeout:   v.GetDuration(KeyShutdownTimeout),
		LogLevel:          strings.ToLower(v.GetString(KeyLogLevel)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", KeyHTTPPort, c.HTTPPort))
	}
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyDBPath))
	}
	if c.StorageDir == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyStorageDir))
	}
	if c.WSIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyWSIdleTimeout))
	}
	if c.WSPingInterval >= c.WSIdleTimeout {
		errs = append(errs, fmt.Errorf("%s must be shorter than %s", KeyWSPingInterval, KeyWSIdleTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyShutdownTimeout))
	}
	switch c.LogLevel {
	case "info", "error":
	default:
		errs = append(errs, fmt.Errorf("%s must be info or error, got %q", KeyLogLevel, c.LogLevel))
	}
	return errors.Join(errs...)
}
