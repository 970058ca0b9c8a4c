package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-tracker/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "PORT", "DB_PATH", "OPENMETEO_BASE_URL", "FETCH_INTERVAL", "HTTP_TIMEOUT",
		"FINE_INTERVAL", "COARSE_INTERVAL", "FORECAST_DAYS", "TIMEZONE", "SNAPSHOT_RETENTION",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "forecast.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.FineInterval)
	assert.Equal(t, time.Hour, cfg.CoarseInterval)
	assert.Equal(t, 1, cfg.ForecastDays)
	assert.Equal(t, 96, cfg.SnapshotRetention)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/snapshots.db")
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("FORECAST_DAYS", "3")
	t.Setenv("SNAPSHOT_RETENTION", "10")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("OPENMETEO_BASE_URL", "http://localhost:1234/v1/forecast")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/snapshots.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 3, cfg.ForecastDays)
	assert.Equal(t, 10, cfg.SnapshotRetention)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "http://localhost:1234/v1/forecast", cfg.OpenMeteoBaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, key, value, msg string
	}{
		{"bad interval", "FETCH_INTERVAL", "often", "invalid FETCH_INTERVAL"},
		{"negative timeout", "HTTP_TIMEOUT", "-1s", "invalid HTTP_TIMEOUT"},
		{"days not a number", "FORECAST_DAYS", "two", "invalid FORECAST_DAYS"},
		{"days out of range", "FORECAST_DAYS", "30", "invalid FORECAST_DAYS"},
		{"unknown zone", "TIMEZONE", "Mars/Olympus", "invalid TIMEZONE"},
		{"coarse not a multiple of fine", "COARSE_INTERVAL", "20m", "invalid COARSE_INTERVAL"},
		{"retention not a number", "SNAPSHOT_RETENTION", "all", "invalid SNAPSHOT_RETENTION"},
		{"retention below one", "SNAPSHOT_RETENTION", "0", "invalid SNAPSHOT_RETENTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := config.Load()

			require.Nil(t, cfg)
			require.ErrorContains(t, err, tt.msg)
		})
	}
}
