//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
	"github.com/kjstillabower/aviation-weather-service/internal/client"
)

// IntegrationTestConfig holds configuration for integration tests that
// hit the live upstream APIs.
type IntegrationTestConfig struct {
	CurrentAPIKey string
	CurrentAPIURL string
	METARAPIURL   string
	ForecastURL   string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if CURRENT_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("CURRENT_API_KEY")
	if apiKey == "" {
		t.Skip("CURRENT_API_KEY not set, skipping integration test")
	}

	currentURL := os.Getenv("CURRENT_API_URL")
	if currentURL == "" {
		currentURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	metarURL := os.Getenv("METAR_API_URL")
	if metarURL == "" {
		metarURL = "https://aviationweather.gov/api/data"
	}
	forecastURL := os.Getenv("FORECAST_API_URL")
	if forecastURL == "" {
		forecastURL = "https://api.open-meteo.com/v1"
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		CurrentAPIKey: apiKey,
		CurrentAPIURL: currentURL,
		METARAPIURL:   metarURL,
		ForecastURL:   forecastURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationCache creates the report cache for integration tests.
// Falls back to in-memory when memcached is requested but unreachable.
// Returns the cache and a cleanup function.
func SetupIntegrationCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache[string], func()) {
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			t.Logf("Using memcached cache at %s", cfg.MemcachedAddr)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("Memcached not available, using in-memory cache")
	}
	return cache.NewStore[string](), func() {}
}

// SetupIntegrationClients creates real upstream clients for integration
// tests, sharing one report cache.
func SetupIntegrationClients(t *testing.T, cfg IntegrationTestConfig) (*client.METARClient, *client.ForecastClient, *client.CurrentWeatherClient, func()) {
	store, cleanup := SetupIntegrationCache(t, cfg)

	metarClient := client.NewMETARClient(cfg.METARAPIURL, 5*time.Second, store)
	forecastClient := client.NewForecastClient(cfg.ForecastURL, 5*time.Second, store)
	currentClient, err := client.NewCurrentWeatherClient(cfg.CurrentAPIKey, cfg.CurrentAPIURL, 5*time.Second, store)
	if err != nil {
		cleanup()
		t.Fatalf("NewCurrentWeatherClient() error = %v", err)
	}
	return metarClient, forecastClient, currentClient, cleanup
}
