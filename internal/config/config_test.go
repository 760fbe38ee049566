package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CART_STORAGE":          "",
		"PORT":                  "",
		"CART_TTL":              "",
		"CART_CLEAR_ON_CONFIRM": "",
		"CART_STORAGE_KEY":      "",
	})
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "cart", cfg.CartStorageKey)
	require.Equal(t, 168*time.Hour, cfg.CartTTL)
	require.True(t, cfg.ClearOnConfirm)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CART_STORAGE":          "Redis",
		"REDIS_URL":             "redis://localhost:6379/0",
		"PORT":                  ":9090",
		"CART_TTL":              "2h",
		"CART_CLEAR_ON_CONFIRM": "false",
		"CORS_ALLOWED_ORIGINS":  "https://shop.example, ,https://admin.example",
		"RATE_LIMIT_MAX":        "10",
		"RATE_LIMIT_WINDOW":     "not-a-duration",
	})
	require.NoError(t, err)
	require.Equal(t, StorageRedis, cfg.Storage)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 2*time.Hour, cfg.CartTTL)
	require.False(t, cfg.ClearOnConfirm)
	require.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 10, cfg.RateLimitMax)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadValidatesDriver(t *testing.T) {
	_, err := LoadForTests(map[string]string{"CART_STORAGE": "redis", "REDIS_URL": ""})
	require.ErrorContains(t, err, "REDIS_URL")

	_, err = LoadForTests(map[string]string{"CART_STORAGE": "postgres", "DATABASE_URL": ""})
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = LoadForTests(map[string]string{"CART_STORAGE": "floppy"})
	require.ErrorContains(t, err, "unsupported")

	cfg, err := LoadForTests(map[string]string{"CART_STORAGE": "sqlite", "SQLITE_PATH": ""})
	require.NoError(t, err)
	require.Equal(t, "cart.db", cfg.SQLitePath)
}
