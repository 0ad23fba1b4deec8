package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultMatchEpsilon is the coordinate tolerance, in degrees, used to treat
// two resolved locations as the same place during idempotent add.
const DefaultMatchEpsilon = 0.01

// Service orchestrates the location registry, on-demand synchronization
// against the provider, and read-only aggregate queries.
type Service struct {
	store        Store
	provider     Provider
	matchEpsilon float64
	locks        *locationLocks
}

// NewService creates a new Service. A matchEpsilon <= 0 falls back to
// DefaultMatchEpsilon.
func NewService(store Store, provider Provider, matchEpsilon float64) *Service {
	if matchEpsilon <= 0 {
		matchEpsilon = DefaultMatchEpsilon
	}
	return &Service{
		store:        store,
		provider:     provider,
		matchEpsilon: matchEpsilon,
		locks:        newLocationLocks(),
	}
}

// AddLocation resolves query through the provider and registers the location.
// A query resolving to an already-tracked place (same canonical name and
// country, coordinates within the match epsilon) returns the existing
// location unchanged.
func (s *Service) AddLocation(ctx context.Context, query string) (Location, error) {
	resolved, err := s.provider.Resolve(ctx, query)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrResolutionFailed, query, err)
	}

	existing, err := s.store.FindLocationNear(ctx, resolved.Name, resolved.Country,
		resolved.Latitude, resolved.Longitude, s.matchEpsilon)
	if err == nil {
		return existing, nil
	}
	// Only a definite "no such location" may proceed to create; a failed
	// duplicate lookup must not insert a possibly-duplicate row.
	if !errors.Is(err, ErrLocationNotFound) {
		return Location{}, err
	}

	loc := Location{
		Query:       query,
		Name:        resolved.Name,
		DisplayName: resolved.Name,
		Country:     resolved.Country,
		Latitude:    resolved.Latitude,
		Longitude:   resolved.Longitude,
		Units:       UnitsMetric,
	}
	if err := s.store.CreateLocation(ctx, &loc); err != nil {
		return Location{}, err
	}

	log.Printf("registered location %d (%s, %s)", loc.ID, loc.Name, loc.Country)
	return loc, nil
}

// GetLocation returns a single tracked location by id.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.store.GetLocation(ctx, id)
}

// ListLocations returns all tracked locations in id order.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.store.ListLocations(ctx)
}

// UpdateLocation applies the provided patch fields and returns the updated
// location.
func (s *Service) UpdateLocation(ctx context.Context, id int64, patch LocationPatch) (Location, error) {
	return s.store.UpdateLocation(ctx, id, patch)
}

// DeleteLocation removes a location and all of its dependent weather records.
func (s *Service) DeleteLocation(ctx context.Context, id int64) error {
	return s.store.DeleteLocation(ctx, id)
}

// Sync performs one fetch-transform-commit cycle for the location. Current
// conditions and the forecast are fetched concurrently; if either call fails
// nothing is written and the stored state is left exactly as it was. On
// success the current-conditions row is replaced, one history snapshot is
// appended, the forecast set is swapped, and last_synced is stamped, all in
// one transaction serialized per location.
func (s *Service) Sync(ctx context.Context, id int64) (*Aggregate, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}

	// Provider calls happen outside the commit lock so slow fetches do not
	// block syncs or reads for other locations.
	var (
		wg     sync.WaitGroup
		obs    Observation
		points []ForecastPoint
		obsErr error
		fcErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		obs, obsErr = s.provider.Current(ctx, loc.Latitude, loc.Longitude, loc.Units)
	}()
	go func() {
		defer wg.Done()
		points, fcErr = s.provider.Forecast(ctx, loc.Latitude, loc.Longitude, loc.Units)
	}()
	wg.Wait()

	if obsErr != nil {
		return nil, fmt.Errorf("%w: current conditions: %v", ErrProviderUnavailable, obsErr)
	}
	if fcErr != nil {
		return nil, fmt.Errorf("%w: forecast: %v", ErrProviderUnavailable, fcErr)
	}

	current := BuildCurrent(loc, obs)
	forecast := BuildForecast(loc, points, obs.Units)
	syncedAt := time.Now().UTC()

	mu := s.locks.get(id)
	mu.Lock()
	err = s.store.ReplaceWeather(ctx, id, current, forecast, syncedAt, obs.Latitude, obs.Longitude)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Printf("synced location %d (%s): %d forecast entries", id, loc.Name, len(forecast))
	return s.GetAggregate(ctx, id)
}

// GetAggregate assembles the read view of a location from the store. It never
// calls the provider. Current is nil when no sync has ever succeeded. The
// store reads all parts in one transaction, so the view always belongs to a
// single sync generation even with a sync committing concurrently.
func (s *Service) GetAggregate(ctx context.Context, id int64) (*Aggregate, error) {
	loc, current, forecast, err := s.store.GetWeather(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Aggregate{
		Location:   loc,
		Current:    current,
		Forecast:   forecast,
		LastSynced: loc.LastSynced,
	}, nil
}

// GetHistoryRange returns the history snapshots recorded for the location
// between from and to, oldest first.
func (s *Service) GetHistoryRange(ctx context.Context, id int64, from, to time.Time) ([]HistorySnapshot, error) {
	if _, err := s.store.GetLocation(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetHistoryRange(ctx, id, from, to)
}
