package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for
// OpenWeatherMap: geocoding for resolution, current conditions, and the
// 5 day / 3 hour forecast.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	geoURL  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		geoURL:  "https://api.openweathermap.org/geo/1.0",
		client:  client,
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) buildRequest(endpoint string, values url.Values) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		values.Set("appid", p.apiKey)
		u := fmt.Sprintf("%s?%s", endpoint, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}
}

// Resolve matches a free-form query against the OpenWeather geocoding API and
// returns the best (first) match.
func (p *OpenWeatherProvider) Resolve(ctx context.Context, query string) (weather.ResolvedLocation, error) {
	if p.apiKey == "" {
		return weather.ResolvedLocation{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", "5")

	var payload []struct {
		Name    string  `json:"name"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.geoURL+"/direct", values), &payload); err != nil {
		return weather.ResolvedLocation{}, err
	}
	if len(payload) == 0 {
		return weather.ResolvedLocation{}, fmt.Errorf("no geocoding match for %q", query)
	}

	best := payload[0]
	return weather.ResolvedLocation{
		Name:      best.Name,
		Country:   best.Country,
		Latitude:  best.Lat,
		Longitude: best.Lon,
	}, nil
}

// Current fetches current conditions for the coordinates in the requested
// unit system.
func (p *OpenWeatherProvider) Current(ctx context.Context, lat, lon float64, units weather.Units) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("units", string(units))

	var payload struct {
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			Pressure  int     `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.baseURL+"/weather", values), &payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Unix(payload.Dt, 0).UTC()
	if payload.Dt == 0 {
		ts = time.Now().UTC()
	}

	obs := weather.Observation{
		Timestamp:   ts,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
		Pressure:    payload.Main.Pressure,
		Units:       units,
	}
	if len(payload.Weather) > 0 {
		obs.Category = payload.Weather[0].Main
		obs.Description = payload.Weather[0].Description
	}
	if payload.Coord.Lat != 0 || payload.Coord.Lon != 0 {
		obs.Latitude = &payload.Coord.Lat
		obs.Longitude = &payload.Coord.Lon
	}
	return obs, nil
}

// Forecast fetches the 5 day / 3 hour forecast for the coordinates in the
// requested unit system.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("units", string(units))

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Main        string `json:"main"`
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"list"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.baseURL+"/forecast", values), &payload); err != nil {
		return nil, err
	}

	points := make([]weather.ForecastPoint, 0, len(payload.List))
	for _, item := range payload.List {
		point := weather.ForecastPoint{
			Timestamp:   time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
		}
		if len(item.Weather) > 0 {
			point.Category = item.Weather[0].Main
			point.Description = item.Weather[0].Description
		}
		points = append(points, point)
	}
	return points, nil
}
