package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "GOOGLE_CLOUD_PROJECT", "SCHEDULER_LOCATION",
	"CALLBACK_URL", "CALLBACK_SECRET", "CALLBACK_SERVICE_ACCOUNT", "DEFAULT_TIMEZONE",
	"HTTP_ADDR", "PORT", "HTTP_SHUTDOWN_TIMEOUT", "METRICS_ENABLED", "METRICS_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "ANALYTICS_RETENTION",
}

// clearEnv unsets every variable Load reads and restores them after the test.
// envconfig only applies defaults to variables that are absent.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "us-central1", cfg.Location)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.HTTPShutdownTimeout)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.Equal(t, 720*time.Hour, cfg.AnalyticsRetention)
	assert.Empty(t, cfg.CallbackURL)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ops-project")
	t.Setenv("SCHEDULER_LOCATION", "europe-west1")
	t.Setenv("CALLBACK_URL", "https://billing.example.run.app/")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "20s")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ops-project", cfg.ProjectID)
	assert.Equal(t, "europe-west1", cfg.Location)
	assert.Equal(t, "https://billing.example.run.app/", cfg.CallbackURL)
	assert.Equal(t, 20*time.Second, cfg.HTTPShutdownTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.NoError(t, ValidateSchedule(cfg))
}

func TestLoad_PortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)

	t.Setenv("HTTP_ADDR", "127.0.0.1:7000")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestMaskedJSON_MasksSecrets(t *testing.T) {
	cfg := Config{
		CallbackURL:         "https://billing.example.run.app/",
		CallbackSecret:      "super-secret",
		RedisPassword:       "hunter2",
		HTTPShutdownTimeout: 10 * time.Second,
		AnalyticsRetention:  time.Hour,
	}

	data, err := cfg.MaskedJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
	assert.NotContains(t, string(data), "hunter2")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "***", decoded["callback_secret"])
	assert.Equal(t, "***", decoded["redis_password"])
	assert.Equal(t, "10s", decoded["http_shutdown_timeout"])
	assert.Equal(t, "https://billing.example.run.app/", decoded["callback_url"])
}

func TestMaskedJSON_OmitsEmptySecrets(t *testing.T) {
	data, err := Config{}.MaskedJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "callback_secret")
	assert.NotContains(t, string(data), "redis_password")
}
