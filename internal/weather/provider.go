package weather

import (
	"context"
	"time"
)

// ResolvedLocation is a provider's answer to a free-form location query.
type ResolvedLocation struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Observation is a provider's normalized current-conditions reading, in the
// unit system named by Units. Latitude/Longitude are set when the provider
// reports refined coordinates for the queried point.
type Observation struct {
	Timestamp   time.Time
	Temperature float64
	FeelsLike   float64
	Humidity    int
	WindSpeed   float64
	Pressure    int
	Category    string // provider condition category, e.g. "Clear"
	Description string
	Units       Units
	Latitude    *float64
	Longitude   *float64
}

// ForecastPoint is one provider forecast step, in the unit system the
// accompanying call reported.
type ForecastPoint struct {
	Timestamp   time.Time
	Temperature float64
	Category    string
	Description string
}

// Provider abstracts an external weather source (e.g. OpenWeatherMap,
// WeatherAPI, Open-Meteo). Implementations do not retry failed calls; a
// failure is returned as-is for the caller to surface.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, query string) (ResolvedLocation, error)
	Current(ctx context.Context, lat, lon float64, units Units) (Observation, error)
	Forecast(ctx context.Context, lat, lon float64, units Units) ([]ForecastPoint, error)
}

// Store is the contract the persistent snapshot store must satisfy.
//
// ReplaceWeather is the single transactional commit of a sync: it replaces the
// current-conditions row, appends one history snapshot, swaps the whole
// forecast set, and stamps the location's last_synced (plus refined
// coordinates when given). Either all of it lands or none of it does.
type Store interface {
	CreateLocation(ctx context.Context, loc *Location) error
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context) ([]Location, error)
	UpdateLocation(ctx context.Context, id int64, patch LocationPatch) (Location, error)
	DeleteLocation(ctx context.Context, id int64) error

	// FindLocationNear returns an existing location with the same canonical
	// name and country whose coordinates are within epsilon degrees, or
	// ErrLocationNotFound.
	FindLocationNear(ctx context.Context, name, country string, lat, lon, epsilon float64) (Location, error)

	// GetCurrent returns nil without error when the location has never been
	// synced.
	GetCurrent(ctx context.Context, locationID int64) (*CurrentConditions, error)
	GetForecast(ctx context.Context, locationID int64) ([]ForecastEntry, error)
	GetHistoryRange(ctx context.Context, locationID int64, from, to time.Time) ([]HistorySnapshot, error)

	// GetWeather reads the location, its current conditions (nil when never
	// synced) and its forecast set in one transaction, so the three parts
	// always come from the same sync generation.
	GetWeather(ctx context.Context, locationID int64) (Location, *CurrentConditions, []ForecastEntry, error)

	ReplaceWeather(ctx context.Context, locationID int64, current CurrentConditions, forecast []ForecastEntry, syncedAt time.Time, lat, lon *float64) error
}
