// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// ErrMissingAdminID is returned when CIABOT_ADMIN_ID is unset.
var ErrMissingAdminID = errors.New("config: CIABOT_ADMIN_ID is required")

// Config holds everything the redactor process needs to start.
type Config struct {
	AdminID string

	SettingsPath    string
	SettingsBackend string // "file" or "redis"
	SettingsKey     string // redis key when SettingsBackend is "redis"
	WatchSettings   bool

	Production     bool
	DebugChannelID string // seeds debug_channel_id when settings lack one

	NATSURL            string
	NATSRequestTimeout time.Duration

	RedisAddr   string // empty disables redis
	DatabaseURL string // empty disables the audit log
	MetricsAddr string
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset. Malformed booleans and durations fall back to
// their defaults.
func Load() (Config, error) {
	cfg := Config{
		AdminID:            strings.TrimSpace(os.Getenv("CIABOT_ADMIN_ID")),
		SettingsPath:       getenv("CIABOT_SETTINGS_PATH", "settings.json"),
		SettingsBackend:    strings.ToLower(getenv("CIABOT_SETTINGS_BACKEND", BackendFile)),
		SettingsKey:        getenv("CIABOT_SETTINGS_KEY", "ciabot:settings"),
		WatchSettings:      getbool("CIABOT_SETTINGS_WATCH", false),
		Production:         getbool("IS_PRODUCTION", false),
		DebugChannelID:     strings.TrimSpace(os.Getenv("DEBUG_CHANNEL_ID")),
		NATSURL:            getenv("NATS_URL", "nats://localhost:4222"),
		NATSRequestTimeout: getduration("NATS_REQUEST_TIMEOUT", 5*time.Second),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MetricsAddr:        getenv("METRICS_ADDR", ":9102"),
	}

	if cfg.AdminID == "" {
		return Config{}, ErrMissingAdminID
	}
	switch cfg.SettingsBackend {
	case BackendFile:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("config: settings backend %q requires REDIS_ADDR", cfg.SettingsBackend)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown settings backend %q", cfg.SettingsBackend)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
