package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Units is the unit system readings are normalized to for a location.
type Units string

const (
	UnitsMetric   Units = "metric"   // Celsius, m/s
	UnitsImperial Units = "imperial" // Fahrenheit, mph
)

// Location is a tracked geographic point with a store-assigned, stable id.
// Name is the provider's canonical place name and drives duplicate matching;
// DisplayName is the user-facing label, initialized to Name and patchable.
type Location struct {
	ID          int64      `json:"id"`
	Query       string     `json:"query"`
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName"`
	Country     string     `json:"country"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	IsFavorite  bool       `json:"isFavorite"`
	Units       Units      `json:"units"`
	LastSynced  *time.Time `json:"lastSynced,omitempty"` // nil until the first successful sync
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// LocationPatch carries the optional fields of a partial location update.
// Nil fields are left untouched.
type LocationPatch struct {
	DisplayName *string `json:"displayName"`
	IsFavorite  *bool   `json:"isFavorite"`
	Units       *Units  `json:"units"`
}

// CurrentConditions is the single mutable latest-observation record for a
// location. It is replaced wholesale on every successful sync.
type CurrentConditions struct {
	LocationID  int64     `json:"locationId"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    int       `json:"humidityPercent"`
	WindSpeed   float64   `json:"windSpeed"`
	Pressure    int       `json:"pressureHpa"`
	Condition   Condition `json:"condition"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observedAt"` // provider-reported, always UTC
}

// HistorySnapshot is an immutable past observation, appended once per
// successful sync and never updated.
type HistorySnapshot struct {
	CurrentConditions
	SyncedAt time.Time `json:"syncedAt"`
}

// ForecastEntry is one future time-point prediction. The full set for a
// location belongs to exactly one sync generation.
type ForecastEntry struct {
	LocationID  int64     `json:"locationId"`
	Timestamp   time.Time `json:"forecastTimestamp"` // validity time, UTC
	Temperature float64   `json:"temperature"`
	Condition   Condition `json:"condition"`
	Description string    `json:"description"`
}

// Aggregate is the combined read view of a location: its registry entry, the
// latest current-conditions record if any sync ever succeeded, and the
// forecast set ordered by forecast timestamp ascending.
type Aggregate struct {
	Location   Location           `json:"location"`
	Current    *CurrentConditions `json:"current,omitempty"`
	Forecast   []ForecastEntry    `json:"forecast"`
	LastSynced *time.Time         `json:"lastSynced,omitempty"`
}
