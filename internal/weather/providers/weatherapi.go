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

// WeatherAPIProvider implements the weather.Provider interface for
// WeatherAPI.com. Payloads carry both metric and imperial values; the
// requested unit system picks which side is read.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		client:  client,
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) buildRequest(endpoint string, values url.Values) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		values.Set("key", p.apiKey)
		u := fmt.Sprintf("%s?%s", endpoint, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}
}

// Resolve matches a free-form query against the WeatherAPI search endpoint.
func (p *WeatherAPIProvider) Resolve(ctx context.Context, query string) (weather.ResolvedLocation, error) {
	if p.apiKey == "" {
		return weather.ResolvedLocation{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("q", query)

	var payload []struct {
		Name    string  `json:"name"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.baseURL+"/search.json", values), &payload); err != nil {
		return weather.ResolvedLocation{}, err
	}
	if len(payload) == 0 {
		return weather.ResolvedLocation{}, fmt.Errorf("no search match for %q", query)
	}

	best := payload[0]
	return weather.ResolvedLocation{
		Name:      best.Name,
		Country:   best.Country,
		Latitude:  best.Lat,
		Longitude: best.Lon,
	}, nil
}

type weatherAPICurrent struct {
	LastUpdatedEpoch int64   `json:"last_updated_epoch"`
	TempC            float64 `json:"temp_c"`
	TempF            float64 `json:"temp_f"`
	FeelsLikeC       float64 `json:"feelslike_c"`
	FeelsLikeF       float64 `json:"feelslike_f"`
	Humidity         int     `json:"humidity"`
	WindKph          float64 `json:"wind_kph"`
	WindMph          float64 `json:"wind_mph"`
	PressureMb       float64 `json:"pressure_mb"`
	Condition        struct {
		Text string `json:"text"`
	} `json:"condition"`
}

// Current fetches current conditions for the coordinates.
func (p *WeatherAPIProvider) Current(ctx context.Context, lat, lon float64, units weather.Units) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	// WeatherAPI uses "q" for location; "lat,lon" selects by coordinates.
	values.Set("q", fmt.Sprintf("%f,%f", lat, lon))

	var payload struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"location"`
		Current weatherAPICurrent `json:"current"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.baseURL+"/current.json", values), &payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		ts = time.Now().UTC()
	}

	cur := payload.Current
	obs := weather.Observation{
		Timestamp:   ts,
		Humidity:    cur.Humidity,
		Pressure:    int(cur.PressureMb),
		Category:    cur.Condition.Text,
		Description: cur.Condition.Text,
		Units:       units,
	}
	switch units {
	case weather.UnitsImperial:
		obs.Temperature = cur.TempF
		obs.FeelsLike = cur.FeelsLikeF
		obs.WindSpeed = cur.WindMph
	default:
		obs.Temperature = cur.TempC
		obs.FeelsLike = cur.FeelsLikeC
		obs.WindSpeed = cur.WindKph / 3.6 // kph to m/s
	}
	if payload.Location.Lat != 0 || payload.Location.Lon != 0 {
		obs.Latitude = &payload.Location.Lat
		obs.Longitude = &payload.Location.Lon
	}
	return obs, nil
}

// Forecast fetches the 5-day hourly forecast for the coordinates, sampled at
// 3-hour steps to match the canonical forecast granularity.
func (p *WeatherAPIProvider) Forecast(ctx context.Context, lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	values.Set("days", "5")

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Hour []struct {
					TimeEpoch int64   `json:"time_epoch"`
					TempC     float64 `json:"temp_c"`
					TempF     float64 `json:"temp_f"`
					Condition struct {
						Text string `json:"text"`
					} `json:"condition"`
				} `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := getJSON(ctx, p.client, p.circuit, p.buildRequest(p.baseURL+"/forecast.json", values), &payload); err != nil {
		return nil, err
	}

	var points []weather.ForecastPoint
	for _, day := range payload.Forecast.ForecastDay {
		for i, hour := range day.Hour {
			if i%3 != 0 {
				continue
			}
			temp := hour.TempC
			if units == weather.UnitsImperial {
				temp = hour.TempF
			}
			points = append(points, weather.ForecastPoint{
				Timestamp:   time.Unix(hour.TimeEpoch, 0).UTC(),
				Temperature: temp,
				Category:    hour.Condition.Text,
				Description: hour.Condition.Text,
			})
		}
	}
	return points, nil
}
