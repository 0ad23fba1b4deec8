package weather_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// fakeProvider implements weather.Provider with pluggable behaviour.
type fakeProvider struct {
	resolve  func(query string) (weather.ResolvedLocation, error)
	current  func(lat, lon float64, units weather.Units) (weather.Observation, error)
	forecast func(lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Resolve(_ context.Context, query string) (weather.ResolvedLocation, error) {
	return f.resolve(query)
}

func (f *fakeProvider) Current(_ context.Context, lat, lon float64, units weather.Units) (weather.Observation, error) {
	return f.current(lat, lon, units)
}

func (f *fakeProvider) Forecast(_ context.Context, lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
	return f.forecast(lat, lon, units)
}

func lisbonProvider(temp float64, forecastBase time.Time) *fakeProvider {
	return &fakeProvider{
		resolve: func(query string) (weather.ResolvedLocation, error) {
			return weather.ResolvedLocation{
				Name: "Lisbon", Country: "PT", Latitude: 38.72, Longitude: -9.14,
			}, nil
		},
		current: func(lat, lon float64, units weather.Units) (weather.Observation, error) {
			return weather.Observation{
				Timestamp:   time.Now().UTC(),
				Temperature: temp,
				FeelsLike:   temp - 0.5,
				Humidity:    55,
				WindSpeed:   4.2,
				Pressure:    1018,
				Category:    "Clear",
				Description: "clear sky",
				Units:       units,
			}, nil
		},
		forecast: func(lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
			points := make([]weather.ForecastPoint, 0, 3)
			for i := 0; i < 3; i++ {
				points = append(points, weather.ForecastPoint{
					Timestamp:   forecastBase.Add(time.Duration(i) * 3 * time.Hour),
					Temperature: temp - float64(i),
					Category:    "Clouds",
					Description: "scattered clouds",
				})
			}
			return points, nil
		},
	}
}

func newTestService(t *testing.T, provider weather.Provider) *weather.Service {
	t.Helper()

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return weather.NewService(s, provider, 0)
}

func TestAddLocationIdempotent(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	svc := newTestService(t, lisbonProvider(21.5, base))
	ctx := context.Background()

	first, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", first.Name)
	assert.Equal(t, "Lisbon", first.DisplayName)
	assert.Equal(t, weather.UnitsMetric, first.Units)
	assert.Nil(t, first.LastSynced)

	// A query resolving to the same canonical place returns the same row.
	second, err := svc.AddLocation(ctx, "lisboa portugal")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	locs, err := svc.ListLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

// brokenMatchStore fails the duplicate lookup while everything else works.
type brokenMatchStore struct {
	weather.Store
}

func (s *brokenMatchStore) FindLocationNear(ctx context.Context, name, country string, lat, lon, epsilon float64) (weather.Location, error) {
	return weather.Location{}, fmt.Errorf("%w: disk I/O error", weather.ErrStorage)
}

// TestAddLocationMatchStorageFailure checks that a failed duplicate lookup
// aborts the add instead of silently creating a possibly-duplicate row.
func TestAddLocationMatchStorageFailure(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	backing, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backing.Close() })

	svc := weather.NewService(&brokenMatchStore{Store: backing}, lisbonProvider(21.5, base), 0)
	ctx := context.Background()

	_, err = svc.AddLocation(ctx, "Lisbon")
	assert.ErrorIs(t, err, weather.ErrStorage)

	locs, err := backing.ListLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs, "a failed duplicate lookup must not create a row")
}

func TestAddLocationResolutionFailure(t *testing.T) {
	provider := &fakeProvider{
		resolve: func(query string) (weather.ResolvedLocation, error) {
			return weather.ResolvedLocation{}, errors.New("no geocoding match")
		},
	}
	svc := newTestService(t, provider)

	_, err := svc.AddLocation(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, weather.ErrResolutionFailed)
}

func TestSyncUnknownLocation(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	svc := newTestService(t, lisbonProvider(21.5, base))

	_, err := svc.Sync(context.Background(), 123)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

// TestSyncScenario walks the add -> sync -> re-sync flow: the current record
// is replaced, the forecast set is swapped wholesale, and history accumulates
// one snapshot per sync.
func TestSyncScenario(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(3 * time.Hour)
	provider := lisbonProvider(21.5, base)
	svc := newTestService(t, provider)
	ctx := context.Background()

	loc, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)

	before := time.Now().UTC()
	agg, err := svc.Sync(ctx, loc.ID)
	require.NoError(t, err)

	require.NotNil(t, agg.Current)
	assert.Equal(t, 21.5, agg.Current.Temperature)
	assert.Equal(t, weather.ConditionClear, agg.Current.Condition)
	assert.Len(t, agg.Forecast, 3)
	require.NotNil(t, agg.LastSynced)
	assert.False(t, agg.LastSynced.Before(before.Truncate(time.Second)))

	history, err := svc.GetHistoryRange(ctx, loc.ID, before.Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Second sync with different readings.
	time.Sleep(10 * time.Millisecond)
	newBase := base.Add(24 * time.Hour)
	*provider = *lisbonProvider(19.0, newBase)

	agg, err = svc.Sync(ctx, loc.ID)
	require.NoError(t, err)

	require.NotNil(t, agg.Current)
	assert.Equal(t, 19.0, agg.Current.Temperature)
	require.Len(t, agg.Forecast, 3)
	for _, e := range agg.Forecast {
		assert.False(t, e.Timestamp.Before(newBase), "entries from the first sync must be gone")
	}

	history, err = svc.GetHistoryRange(ctx, loc.ID, before.Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].SyncedAt.Before(history[1].SyncedAt))
}

// TestSyncFailurePreservesState checks the atomicity contract: a failed sync
// leaves current conditions, forecast, history and last_synced untouched.
func TestSyncFailurePreservesState(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	provider := lisbonProvider(21.5, base)
	svc := newTestService(t, provider)
	ctx := context.Background()

	loc, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)

	_, err = svc.Sync(ctx, loc.ID)
	require.NoError(t, err)

	beforeAgg, err := svc.GetAggregate(ctx, loc.ID)
	require.NoError(t, err)

	// Current call fails, forecast still succeeds.
	provider.current = func(lat, lon float64, units weather.Units) (weather.Observation, error) {
		return weather.Observation{}, errors.New("upstream 503")
	}
	_, err = svc.Sync(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

	// Forecast call fails, current succeeds.
	*provider = *lisbonProvider(25.0, base)
	provider.forecast = func(lat, lon float64, units weather.Units) ([]weather.ForecastPoint, error) {
		return nil, errors.New("upstream timeout")
	}
	_, err = svc.Sync(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

	afterAgg, err := svc.GetAggregate(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeAgg.Current, afterAgg.Current)
	assert.Equal(t, beforeAgg.Forecast, afterAgg.Forecast)
	require.NotNil(t, afterAgg.LastSynced)
	assert.True(t, beforeAgg.LastSynced.Equal(*afterAgg.LastSynced))

	history, err := svc.GetHistoryRange(ctx, loc.ID, base.Add(-24*time.Hour), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed syncs must not append history")
}

func TestGetAggregateBeforeFirstSync(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	svc := newTestService(t, lisbonProvider(21.5, base))
	ctx := context.Background()

	loc, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)

	agg, err := svc.GetAggregate(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, agg.Current)
	assert.Empty(t, agg.Forecast)
	assert.Nil(t, agg.LastSynced)
}

func TestDeleteLocationRemovesAggregate(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	svc := newTestService(t, lisbonProvider(21.5, base))
	ctx := context.Background()

	loc, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)
	_, err = svc.Sync(ctx, loc.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLocation(ctx, loc.ID))

	_, err = svc.GetAggregate(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)

	err = svc.DeleteLocation(ctx, loc.ID)
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

// TestConcurrentSyncs runs parallel syncs for two locations and repeated
// syncs for one of them; every resulting forecast set must belong to a single
// sync generation.
func TestConcurrentSyncs(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour)
	calls := 0
	var mu sync.Mutex

	provider := lisbonProvider(20, base)
	resolveQueue := []weather.ResolvedLocation{
		{Name: "Lisbon", Country: "PT", Latitude: 38.72, Longitude: -9.14},
		{Name: "Paris", Country: "FR", Latitude: 48.85, Longitude: 2.35},
	}
	provider.resolve = func(query string) (weather.ResolvedLocation, error) {
		mu.Lock()
		defer mu.Unlock()
		r := resolveQueue[calls%len(resolveQueue)]
		calls++
		return r, nil
	}

	svc := newTestService(t, provider)
	ctx := context.Background()

	lisbon, err := svc.AddLocation(ctx, "Lisbon")
	require.NoError(t, err)
	paris, err := svc.AddLocation(ctx, "Paris")
	require.NoError(t, err)
	require.NotEqual(t, lisbon.ID, paris.ID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := lisbon.ID
		if i%2 == 0 {
			id = paris.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sync(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []int64{lisbon.ID, paris.ID} {
		agg, err := svc.GetAggregate(ctx, id)
		require.NoError(t, err)
		assert.Len(t, agg.Forecast, 3)
	}
}
