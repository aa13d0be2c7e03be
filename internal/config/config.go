package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

type AppConfig struct {
	// AEMET OpenData access.
	AEMETBaseURL string
	AEMETAPIKey  string

	// DatabaseURL selects the Postgres cache store; empty means the
	// in-memory fallback.
	DatabaseURL string

	// DefaultTimezone is applied when a request carries no location.
	DefaultTimezone string

	// CacheRetention is the insertion-age limit enforced on every write.
	CacheRetention time.Duration

	// Outbound HTTP and retry policy for the upstream client.
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration

	// Cache-warming prefetch job. Empty station list disables it.
	PrefetchStations []meteo.Station
	PrefetchInterval time.Duration
	PrefetchWindow   time.Duration

	Port  string
	Debug bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.AEMETBaseURL = getenvDefault("AEMET_BASE_URL", "https://opendata.aemet.es/opendata")
	cfg.AEMETAPIKey = os.Getenv("AEMET_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DefaultTimezone = getenvDefault("DEFAULT_TIMEZONE", "Europe/Madrid")
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Debug = getenvDefault("DEBUG", "false") == "true"

	var err error
	if cfg.CacheRetention, err = getenvDuration("CACHE_RETENTION", "12h"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getenvDuration("RETRY_DELAY", "2s"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getenvInt("MAX_RETRIES", 4); err != nil {
		return nil, err
	}

	if cfg.PrefetchInterval, err = getenvDuration("PREFETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.PrefetchWindow, err = getenvDuration("PREFETCH_WINDOW", "1h"); err != nil {
		return nil, err
	}
	if cfg.PrefetchStations, err = loadPrefetchStations(); err != nil {
		return nil, err
	}

	if _, err := meteo.ResolveLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func loadPrefetchStations() ([]meteo.Station, error) {
	raw := os.Getenv("PREFETCH_STATIONS")
	if raw == "" {
		return nil, nil
	}

	var stations []meteo.Station
	for _, code := range strings.Split(raw, ",") {
		station := meteo.Station(strings.TrimSpace(code))
		if !station.Valid() {
			return nil, fmt.Errorf("unknown station in PREFETCH_STATIONS: %q", code)
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
