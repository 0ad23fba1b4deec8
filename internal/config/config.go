package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-tracker/internal/weather"
)

type AppConfig struct {
	// Provider selects the weather source: openweather, weatherapi or openmeteo.
	Provider string

	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// HTTPTimeout bounds outbound provider calls.
	HTTPTimeout time.Duration

	// MatchEpsilon is the coordinate tolerance, in degrees, for treating two
	// resolved locations as the same place on add.
	MatchEpsilon float64

	DBPath string
	Port   string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Provider = getenvDefault("WEATHER_PROVIDER", "openweather")
	switch cfg.Provider {
	case "openweather", "weatherapi", "openmeteo":
	default:
		return nil, fmt.Errorf("invalid WEATHER_PROVIDER: %s", cfg.Provider)
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.MatchEpsilon = getenvFloat("MATCH_EPSILON", weather.DefaultMatchEpsilon)
	if cfg.MatchEpsilon <= 0 {
		return nil, fmt.Errorf("MATCH_EPSILON must be positive")
	}

	cfg.DBPath = getenvDefault("DB_PATH", "data/weather.db")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
