package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-tracker/internal/weather"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLocation() *weather.Location {
	return &weather.Location{
		Query:       "Lisbon",
		Name:        "Lisbon",
		DisplayName: "Lisbon",
		Country:     "PT",
		Latitude:    38.72,
		Longitude:   -9.14,
		Units:       weather.UnitsMetric,
	}
}

func testConditions(locationID int64, temp float64) weather.CurrentConditions {
	return weather.CurrentConditions{
		LocationID:  locationID,
		Temperature: temp,
		FeelsLike:   temp - 1,
		Humidity:    60,
		WindSpeed:   3.5,
		Pressure:    1015,
		Condition:   weather.ConditionClear,
		Description: "clear sky",
		ObservedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func testForecast(locationID int64, base time.Time, temps ...float64) []weather.ForecastEntry {
	entries := make([]weather.ForecastEntry, 0, len(temps))
	for i, temp := range temps {
		entries = append(entries, weather.ForecastEntry{
			LocationID:  locationID,
			Timestamp:   base.Add(time.Duration(i) * 3 * time.Hour),
			Temperature: temp,
			Condition:   weather.ConditionCloudy,
			Description: "scattered clouds",
		})
	}
	return entries
}

func TestLocationCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := newTestLocation()
	require.NoError(t, s.CreateLocation(ctx, loc))
	assert.NotZero(t, loc.ID)
	assert.Nil(t, loc.LastSynced)

	got, err := s.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", got.Name)
	assert.Equal(t, weather.UnitsMetric, got.Units)
	assert.False(t, got.IsFavorite)

	second := &weather.Location{
		Query: "Paris", Name: "Paris", Country: "FR",
		Latitude: 48.85, Longitude: 2.35, Units: weather.UnitsMetric,
	}
	require.NoError(t, s.CreateLocation(ctx, second))

	locs, err := s.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	// Stable id order.
	assert.Equal(t, loc.ID, locs[0].ID)
	assert.Equal(t, second.ID, locs[1].ID)

	fav := true
	imperial := weather.UnitsImperial
	home := "Home"
	updated, err := s.UpdateLocation(ctx, loc.ID, weather.LocationPatch{
		DisplayName: &home,
		IsFavorite:  &fav,
		Units:       &imperial,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsFavorite)
	assert.Equal(t, weather.UnitsImperial, updated.Units)
	assert.Equal(t, "Home", updated.DisplayName)
	// The canonical name keeps driving duplicate matching.
	assert.Equal(t, "Lisbon", updated.Name)

	// Empty patch leaves everything untouched.
	same, err := s.UpdateLocation(ctx, loc.ID, weather.LocationPatch{})
	require.NoError(t, err)
	assert.Equal(t, updated, same)

	_, err = s.UpdateLocation(ctx, 9999, weather.LocationPatch{IsFavorite: &fav})
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestGetLocationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLocation(context.Background(), 42)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestFindLocationNear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := newTestLocation()
	require.NoError(t, s.CreateLocation(ctx, loc))

	// Within epsilon.
	found, err := s.FindLocationNear(ctx, "Lisbon", "PT", 38.715, -9.145, 0.01)
	require.NoError(t, err)
	assert.Equal(t, loc.ID, found.ID)

	// Outside epsilon.
	_, err = s.FindLocationNear(ctx, "Lisbon", "PT", 38.9, -9.14, 0.01)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)

	// Different canonical identity.
	_, err = s.FindLocationNear(ctx, "Lisbon", "ES", 38.72, -9.14, 0.01)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestReplaceWeather(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := newTestLocation()
	require.NoError(t, s.CreateLocation(ctx, loc))

	// Absent until first sync.
	current, err := s.GetCurrent(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, current)

	base := time.Now().UTC().Truncate(time.Hour).Add(3 * time.Hour)
	firstSync := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.ReplaceWeather(ctx, loc.ID,
		testConditions(loc.ID, 21.5),
		testForecast(loc.ID, base, 20, 19, 18),
		firstSync, nil, nil,
	))

	current, err = s.GetCurrent(ctx, loc.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 21.5, current.Temperature)

	forecast, err := s.GetForecast(ctx, loc.ID)
	require.NoError(t, err)
	require.Len(t, forecast, 3)
	// Ordered by forecast timestamp ascending.
	assert.True(t, forecast[0].Timestamp.Before(forecast[1].Timestamp))
	assert.True(t, forecast[1].Timestamp.Before(forecast[2].Timestamp))

	got, err := s.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSynced)
	assert.WithinDuration(t, firstSync, *got.LastSynced, time.Second)

	// Second sync replaces the current row and the whole forecast set and
	// appends a second history snapshot.
	secondSync := firstSync.Add(time.Minute)
	newBase := base.Add(12 * time.Hour)
	lat, lon := 38.7223, -9.1393
	require.NoError(t, s.ReplaceWeather(ctx, loc.ID,
		testConditions(loc.ID, 19.0),
		testForecast(loc.ID, newBase, 17, 16),
		secondSync, &lat, &lon,
	))

	current, err = s.GetCurrent(ctx, loc.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 19.0, current.Temperature)

	forecast, err = s.GetForecast(ctx, loc.ID)
	require.NoError(t, err)
	require.Len(t, forecast, 2)
	for _, e := range forecast {
		assert.False(t, e.Timestamp.Before(newBase), "old forecast entries must not survive")
	}

	history, err := s.GetHistoryRange(ctx, loc.ID, firstSync.Add(-time.Hour), secondSync.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 21.5, history[0].Temperature)
	assert.Equal(t, 19.0, history[1].Temperature)
	assert.True(t, history[0].SyncedAt.Before(history[1].SyncedAt))

	// Coordinates refreshed by the second sync.
	got, err = s.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, lat, got.Latitude)
	assert.Equal(t, lon, got.Longitude)
}

// TestGetWeatherSingleGeneration checks the one-transaction aggregate read:
// the current record and the forecast set always come from the same sync.
func TestGetWeatherSingleGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := newTestLocation()
	require.NoError(t, s.CreateLocation(ctx, loc))

	// Before the first sync: location only.
	got, current, forecast, err := s.GetWeather(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, loc.ID, got.ID)
	assert.Nil(t, current)
	assert.Empty(t, forecast)

	// Each generation stamps its number into every temperature.
	base := time.Now().UTC().Truncate(time.Hour)
	syncedAt := time.Now().UTC()
	for gen := 1.0; gen <= 3; gen++ {
		require.NoError(t, s.ReplaceWeather(ctx, loc.ID,
			testConditions(loc.ID, gen),
			testForecast(loc.ID, base, gen, gen),
			syncedAt.Add(time.Duration(gen)*time.Second), nil, nil,
		))

		_, current, forecast, err = s.GetWeather(ctx, loc.ID)
		require.NoError(t, err)
		require.NotNil(t, current)
		require.Len(t, forecast, 2)
		for _, e := range forecast {
			assert.Equal(t, current.Temperature, e.Temperature,
				"forecast entries must belong to the same sync as the current record")
		}
	}

	_, _, _, err = s.GetWeather(ctx, 9999)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestReplaceWeatherUnknownLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ReplaceWeather(ctx, 77, testConditions(77, 10),
		nil, time.Now().UTC(), nil, nil)
	assert.Error(t, err)

	// The rolled-back transaction must leave nothing behind.
	current, err := s.GetCurrent(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestDeleteLocationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := newTestLocation()
	require.NoError(t, s.CreateLocation(ctx, loc))

	base := time.Now().UTC().Truncate(time.Hour)
	syncedAt := time.Now().UTC()
	require.NoError(t, s.ReplaceWeather(ctx, loc.ID,
		testConditions(loc.ID, 15),
		testForecast(loc.ID, base, 14, 13),
		syncedAt, nil, nil,
	))

	require.NoError(t, s.DeleteLocation(ctx, loc.ID))

	_, err := s.GetLocation(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)

	current, err := s.GetCurrent(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, current)

	forecast, err := s.GetForecast(ctx, loc.ID)
	require.NoError(t, err)
	assert.Empty(t, forecast)

	history, err := s.GetHistoryRange(ctx, loc.ID, syncedAt.Add(-time.Hour), syncedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, history)

	// Deleting twice is an error, not a silent no-op.
	err = s.DeleteLocation(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}
