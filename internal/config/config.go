// Package config loads billcron settings from the environment.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the billcron binary.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	// ProjectID is the project jobs are registered under. Empty means it is
	// resolved from the runtime credentials.
	ProjectID string `envconfig:"GOOGLE_CLOUD_PROJECT"`
	Location  string `envconfig:"SCHEDULER_LOCATION" default:"us-central1"`

	CallbackURL            string `envconfig:"CALLBACK_URL"`
	CallbackSecret         string `envconfig:"CALLBACK_SECRET"`
	CallbackServiceAccount string `envconfig:"CALLBACK_SERVICE_ACCOUNT" validate:"omitempty,email"`
	DefaultTimezone        string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`

	HTTPAddr            string        `envconfig:"HTTP_ADDR"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsPath    string `envconfig:"METRICS_PATH" default:"/metrics" validate:"startswith=/"`

	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	RedisDB            int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	AnalyticsRetention time.Duration `envconfig:"ANALYTICS_RETENTION" default:"720h" validate:"gt=0"`
}

// Load reads configuration from a .env file, when present, and the environment.
// Existing environment variables win over the .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	return cfg, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		Environment            string `json:"app_env"`
		LogLevel               string `json:"log_level"`
		LogFormat              string `json:"log_format"`
		ProjectID              string `json:"google_cloud_project,omitempty"`
		Location               string `json:"scheduler_location"`
		CallbackURL            string `json:"callback_url"`
		CallbackSecret         string `json:"callback_secret,omitempty"`
		CallbackServiceAccount string `json:"callback_service_account,omitempty"`
		DefaultTimezone        string `json:"default_timezone"`
		HTTPAddr               string `json:"http_addr"`
		HTTPShutdownTimeout    string `json:"http_shutdown_timeout"`
		MetricsEnabled         bool   `json:"metrics_enabled"`
		MetricsPath            string `json:"metrics_path"`
		RedisAddr              string `json:"redis_addr,omitempty"`
		RedisPassword          string `json:"redis_password,omitempty"`
		RedisDB                int    `json:"redis_db"`
		AnalyticsRetention     string `json:"analytics_retention"`
	}{
		Environment:            c.Environment,
		LogLevel:               c.LogLevel,
		LogFormat:              c.LogFormat,
		ProjectID:              c.ProjectID,
		Location:               c.Location,
		CallbackURL:            c.CallbackURL,
		CallbackSecret:         maskSecret(c.CallbackSecret),
		CallbackServiceAccount: c.CallbackServiceAccount,
		DefaultTimezone:        c.DefaultTimezone,
		HTTPAddr:               c.HTTPAddr,
		HTTPShutdownTimeout:    c.HTTPShutdownTimeout.String(),
		MetricsEnabled:         c.MetricsEnabled,
		MetricsPath:            c.MetricsPath,
		RedisAddr:              c.RedisAddr,
		RedisPassword:          maskSecret(c.RedisPassword),
		RedisDB:                c.RedisDB,
		AnalyticsRetention:     c.AnalyticsRetention.String(),
	}
	return json.MarshalIndent(masked, "", "  ")
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
