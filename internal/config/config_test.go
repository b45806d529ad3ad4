package config

import (
	"errors"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CIABOT_ADMIN_ID", "CIABOT_SETTINGS_PATH", "CIABOT_SETTINGS_BACKEND", "CIABOT_SETTINGS_KEY",
		"CIABOT_SETTINGS_WATCH", "IS_PRODUCTION", "DEBUG_CHANNEL_ID", "NATS_URL",
		"NATS_REQUEST_TIMEOUT", "REDIS_ADDR", "DATABASE_URL", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIABOT_ADMIN_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdminID != "42" {
		t.Errorf("AdminID = %q", cfg.AdminID)
	}
	if cfg.SettingsPath != "settings.json" || cfg.SettingsBackend != BackendFile || cfg.SettingsKey != "ciabot:settings" {
		t.Errorf("settings defaults = %q %q %q", cfg.SettingsPath, cfg.SettingsBackend, cfg.SettingsKey)
	}
	if cfg.Production || cfg.WatchSettings {
		t.Error("production and watch should default to false")
	}
	if cfg.NATSURL != "nats://localhost:4222" || cfg.NATSRequestTimeout != 5*time.Second {
		t.Errorf("nats defaults = %q %v", cfg.NATSURL, cfg.NATSRequestTimeout)
	}
	if cfg.MetricsAddr != ":9102" || cfg.RedisAddr != "" || cfg.DatabaseURL != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_MissingAdmin(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); !errors.Is(err, ErrMissingAdminID) {
		t.Errorf("err = %v, want ErrMissingAdminID", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIABOT_ADMIN_ID", " 42 ")
	t.Setenv("CIABOT_SETTINGS_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CIABOT_SETTINGS_WATCH", "true")
	t.Setenv("IS_PRODUCTION", "True")
	t.Setenv("DEBUG_CHANNEL_ID", "777")
	t.Setenv("NATS_REQUEST_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdminID != "42" || cfg.SettingsBackend != BackendRedis || cfg.RedisAddr != "redis:6379" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.WatchSettings || !cfg.Production || cfg.DebugChannelID != "777" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.NATSRequestTimeout != 750*time.Millisecond {
		t.Errorf("NATSRequestTimeout = %v", cfg.NATSRequestTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"CIABOT_SETTINGS_BACKEND": "etcd"}},
		{"redis backend without redis", map[string]string{"CIABOT_SETTINGS_BACKEND": "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CIABOT_ADMIN_ID", "42")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CIABOT_ADMIN_ID", "42")
	t.Setenv("IS_PRODUCTION", "yes please")
	t.Setenv("NATS_REQUEST_TIMEOUT", "-3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Production {
		t.Error("malformed IS_PRODUCTION enabled production")
	}
	if cfg.NATSRequestTimeout != 5*time.Second {
		t.Errorf("NATSRequestTimeout = %v, want default", cfg.NATSRequestTimeout)
	}
}
