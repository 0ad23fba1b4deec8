package weather

import (
	"sort"
	"strings"
	"time"

	"github.com/i474232898/weather-tracker/internal/common"
)

// MapCondition normalizes a provider condition category into the coarse
// Condition set. Unrecognized categories fall back to the description text,
// then to ConditionUnknown.
func MapCondition(category, description string) Condition {
	switch category {
	case "Clear", "Sunny":
		return ConditionClear
	case "Clouds", "Cloudy", "Overcast":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow", "Sleet":
		return ConditionSnow
	case "Thunderstorm", "Storm":
		return ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return ConditionMist
	}

	text := strings.ToLower(category + " " + description)
	switch {
	case common.HasAny(text, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(text, "snow", "sleet", "blizzard"):
		return ConditionSnow
	case common.HasAny(text, "rain", "drizzle", "shower"):
		return ConditionRain
	case common.HasAny(text, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAny(text, "mist", "fog", "haze"):
		return ConditionMist
	case common.HasAny(text, "clear", "sunny"):
		return ConditionClear
	}
	return ConditionUnknown
}

// celsiusToFahrenheit converts a temperature reading.
func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// msToMph converts a wind speed from m/s to mph.
func msToMph(ms float64) float64 {
	return ms * 2.236936
}

// convertTemperature maps a temperature between unit systems.
func convertTemperature(v float64, from, to Units) float64 {
	if from == to {
		return v
	}
	if from == UnitsMetric && to == UnitsImperial {
		return celsiusToFahrenheit(v)
	}
	return (v - 32) * 5 / 9
}

// convertWindSpeed maps a wind speed between unit systems.
func convertWindSpeed(v float64, from, to Units) float64 {
	if from == to {
		return v
	}
	if from == UnitsMetric && to == UnitsImperial {
		return msToMph(v)
	}
	return v / 2.236936
}

// BuildCurrent transforms a provider observation into the canonical
// current-conditions record for a location, normalized to the location's
// preferred unit system.
func BuildCurrent(loc Location, obs Observation) CurrentConditions {
	ts := obs.Timestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return CurrentConditions{
		LocationID:  loc.ID,
		Temperature: convertTemperature(obs.Temperature, obs.Units, loc.Units),
		FeelsLike:   convertTemperature(obs.FeelsLike, obs.Units, loc.Units),
		Humidity:    obs.Humidity,
		WindSpeed:   convertWindSpeed(obs.WindSpeed, obs.Units, loc.Units),
		Pressure:    obs.Pressure, // hPa in both unit systems
		Condition:   MapCondition(obs.Category, obs.Description),
		Description: obs.Description,
		ObservedAt:  ts,
	}
}

// BuildForecast transforms provider forecast points into canonical entries,
// normalized to the location's unit system, deduplicated by validity time and
// ordered by forecast timestamp ascending.
func BuildForecast(loc Location, points []ForecastPoint, from Units) []ForecastEntry {
	entries := make([]ForecastEntry, 0, len(points))
	seen := make(map[int64]bool, len(points))

	for _, p := range points {
		ts := p.Timestamp.UTC()
		if seen[ts.Unix()] {
			continue
		}
		seen[ts.Unix()] = true

		entries = append(entries, ForecastEntry{
			LocationID:  loc.ID,
			Timestamp:   ts,
			Temperature: convertTemperature(p.Temperature, from, loc.Units),
			Condition:   MapCondition(p.Category, p.Description),
			Description: p.Description,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries
}
