package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// The forecast API itself is keyless; location resolution goes through Google
// geocoding (kelvins/geocoder), which requires an API key. Readings are
// always metric; the transform layer converts for imperial locations.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, geocoderAPIKey string) *OpenMeteoProvider {
	geocoder.ApiKey = geocoderAPIKey

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Resolve geocodes the query, then reverse-geocodes the coordinates to obtain
// a canonical city/country pair.
func (p *OpenMeteoProvider) Resolve(ctx context.Context, query string) (weather.ResolvedLocation, error) {
	if geocoder.ApiKey == "" {
		return weather.ResolvedLocation{}, fmt.Errorf("geocoder api key is not configured")
	}

	location, err := geocoder.Geocoding(geocoder.Address{City: query})
	if err != nil {
		return weather.ResolvedLocation{}, fmt.Errorf("geocoding %q: %w", query, err)
	}

	resolved := weather.ResolvedLocation{
		Name:      query,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
	}

	addresses, err := geocoder.GeocodingReverse(location)
	if err == nil && len(addresses) > 0 {
		if addresses[0].City != "" {
			resolved.Name = addresses[0].City
		}
		resolved.Country = addresses[0].Country
	}

	return resolved, nil
}

// Current fetches current conditions for the coordinates. Values are metric.
func (p *OpenMeteoProvider) Current(ctx context.Context, lat, lon float64, units weather.Units) (weather.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,surface_pressure,wind_speed_10m,weather_code")
		values.Set("wind_speed_unit", "ms")
		values.Set("timeformat", "unixtime")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Current struct {
			Time            int64   `json:"time"`
			Temperature     float64 `json:"temperature_2m"`
			Humidity        int     `json:"relative_humidity_2m"`
			ApparentTemp    float64 `json:"apparent_temperature"`
			SurfacePressure float64 `json:"surface_pressure"`
			WindSpeed       float64 `json:"wind_speed_10m"`
			WeatherCode     int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := getJSON(ctx, p.client, p.circuit, buildRequest, &payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Unix(payload.Current.Time, 0).UTC()
	if payload.Current.Time == 0 {
		ts = time.Now().UTC()
	}

	category, description := openMeteoCondition(payload.Current.WeatherCode)

	return weather.Observation{
		Timestamp:   ts,
		Temperature: payload.Current.Temperature,
		FeelsLike:   payload.Current.ApparentTemp,
		Humidity:    payload.Current.Humidity,
		WindSpeed:   payload.Current.WindSpeed,
		Pressure:    int(payload.Current.SurfacePressure),
		Category:    category,
		Description: description,
		Units:       weather.UnitsMetric,
	}, nil
}

// Forecast fetches the hourly 5-day forecast for the coordinates, sampled at
// 3-hour steps. Values are metric.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("hourly", "temperature_2m,weather_code")
		values.Set("forecast_days", "5")
		values.Set("timeformat", "unixtime")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Hourly struct {
			Time        []int64   `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			WeatherCode []int     `json:"weather_code"`
		} `json:"hourly"`
	}
	if err := getJSON(ctx, p.client, p.circuit, buildRequest, &payload); err != nil {
		return nil, err
	}

	var points []weather.ForecastPoint
	for i, epoch := range payload.Hourly.Time {
		if i%3 != 0 || i >= len(payload.Hourly.Temperature) || i >= len(payload.Hourly.WeatherCode) {
			continue
		}
		category, description := openMeteoCondition(payload.Hourly.WeatherCode[i])
		points = append(points, weather.ForecastPoint{
			Timestamp:   time.Unix(epoch, 0).UTC(),
			Temperature: payload.Hourly.Temperature[i],
			Category:    category,
			Description: description,
		})
	}
	return points, nil
}

// openMeteoCondition maps an Open-Meteo weather code to a coarse category and
// a human-readable description (simplified WMO code ranges).
func openMeteoCondition(code int) (category, description string) {
	switch {
	case code == 0:
		return "Clear", "clear sky"
	case code >= 1 && code <= 3:
		return "Clouds", "partly cloudy"
	case code == 45 || code == 48:
		return "Fog", "fog"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain", "rain"
	case code >= 71 && code <= 77 || code == 85 || code == 86:
		return "Snow", "snow"
	case code >= 95:
		return "Thunderstorm", "thunderstorm"
	default:
		return "", fmt.Sprintf("weather code %d", code)
	}
}
