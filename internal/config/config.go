package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Env selects the log format: local, development or production.
	Env  string
	Port string

	// FetchInterval controls how often all tracked forecasts are refreshed.
	FetchInterval time.Duration
	HTTPTimeout   time.Duration

	// DBPath is the sqlite file holding snapshots.
	DBPath string
	// SnapshotRetention is how many of the newest snapshot rows are kept.
	SnapshotRetention int

	OpenMeteoBaseURL string
	ForecastDays     int
	FineInterval     time.Duration
	CoarseInterval   time.Duration

	// Location is the clock forecasts and time-of-day queries are compared in.
	Location *time.Location
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Env:              getenvDefault("APP_ENV", "local"),
		Port:             getenvDefault("PORT", "8080"),
		DBPath:           getenvDefault("DB_PATH", "forecast.db"),
		OpenMeteoBaseURL: os.Getenv("OPENMETEO_BASE_URL"),
	}

	var err error
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FineInterval, err = getenvDuration("FINE_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.CoarseInterval, err = getenvDuration("COARSE_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.CoarseInterval%cfg.FineInterval != 0 {
		return nil, fmt.Errorf("invalid COARSE_INTERVAL: %s is not a multiple of FINE_INTERVAL %s", cfg.CoarseInterval, cfg.FineInterval)
	}

	if cfg.ForecastDays, err = strconv.Atoi(getenvDefault("FORECAST_DAYS", "1")); err != nil {
		return nil, fmt.Errorf("invalid FORECAST_DAYS: %w", err)
	}
	if cfg.ForecastDays < 1 || cfg.ForecastDays > 16 {
		return nil, fmt.Errorf("invalid FORECAST_DAYS: %d is outside 1..16", cfg.ForecastDays)
	}

	if cfg.SnapshotRetention, err = strconv.Atoi(getenvDefault("SNAPSHOT_RETENTION", "96")); err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_RETENTION: %w", err)
	}
	if cfg.SnapshotRetention < 1 {
		return nil, fmt.Errorf("invalid SNAPSHOT_RETENTION: %d is below 1", cfg.SnapshotRetention)
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
