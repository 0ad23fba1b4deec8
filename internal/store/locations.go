package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

const locationColumns = `id, query, name, display_name, country, latitude,
	longitude, is_favorite, units, last_synced, created_at, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (weather.Location, error) {
	var (
		loc        weather.Location
		lastSynced sql.NullTime
	)
	err := row.Scan(
		&loc.ID, &loc.Query, &loc.Name, &loc.DisplayName, &loc.Country,
		&loc.Latitude, &loc.Longitude,
		&loc.IsFavorite, &loc.Units, &lastSynced,
		&loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		return weather.Location{}, err
	}
	if lastSynced.Valid {
		t := lastSynced.Time.UTC()
		loc.LastSynced = &t
	}
	return loc, nil
}

// CreateLocation inserts a new location and fills in its assigned id and
// timestamps.
func (s *SQLiteStore) CreateLocation(ctx context.Context, loc *weather.Location) error {
	now := time.Now().UTC()
	loc.CreatedAt = now
	loc.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (query, name, display_name, country, latitude,
			longitude, is_favorite, units, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.Query, loc.Name, loc.DisplayName, loc.Country, loc.Latitude,
		loc.Longitude, loc.IsFavorite, loc.Units, loc.CreatedAt, loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting location: %v", weather.ErrStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: reading inserted id: %v", weather.ErrStorage, err)
	}
	loc.ID = id
	return nil
}

// GetLocation returns the location with the given id.
func (s *SQLiteStore) GetLocation(ctx context.Context, id int64) (weather.Location, error) {
	return getLocation(ctx, s.db, id)
}

func getLocation(ctx context.Context, q querier, id int64) (weather.Location, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)

	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return weather.Location{}, fmt.Errorf("%w: id %d", weather.ErrLocationNotFound, id)
	}
	if err != nil {
		return weather.Location{}, fmt.Errorf("%w: getting location %d: %v", weather.ErrStorage, id, err)
	}
	return loc, nil
}

// ListLocations returns all locations in id order.
func (s *SQLiteStore) ListLocations(ctx context.Context) ([]weather.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing locations: %v", weather.ErrStorage, err)
	}
	defer rows.Close()

	var locs []weather.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning location: %v", weather.ErrStorage, err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating locations: %v", weather.ErrStorage, err)
	}
	return locs, nil
}

// UpdateLocation applies the non-nil patch fields and returns the updated row.
func (s *SQLiteStore) UpdateLocation(ctx context.Context, id int64, patch weather.LocationPatch) (weather.Location, error) {
	var (
		sets []string
		args []any
	)
	if patch.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *patch.DisplayName)
	}
	if patch.IsFavorite != nil {
		sets = append(sets, "is_favorite = ?")
		args = append(args, *patch.IsFavorite)
	}
	if patch.Units != nil {
		sets = append(sets, "units = ?")
		args = append(args, *patch.Units)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC())
		args = append(args, id)

		query := "UPDATE locations SET " + sets[0]
		for _, set := range sets[1:] {
			query += ", " + set
		}
		query += " WHERE id = ?"

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return weather.Location{}, fmt.Errorf("%w: updating location %d: %v", weather.ErrStorage, id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return weather.Location{}, fmt.Errorf("%w: checking rows affected: %v", weather.ErrStorage, err)
		}
		if affected == 0 {
			return weather.Location{}, fmt.Errorf("%w: id %d", weather.ErrLocationNotFound, id)
		}
	}

	return s.GetLocation(ctx, id)
}

// DeleteLocation removes the location; current conditions, history and
// forecast rows go with it through the foreign key cascade.
func (s *SQLiteStore) DeleteLocation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting location %d: %v", weather.ErrStorage, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking rows affected: %v", weather.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", weather.ErrLocationNotFound, id)
	}
	return nil
}

// FindLocationNear returns an existing location with the same canonical name
// and country whose coordinates lie within epsilon degrees of (lat, lon).
func (s *SQLiteStore) FindLocationNear(ctx context.Context, name, country string, lat, lon, epsilon float64) (weather.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations
		 WHERE name = ? AND country = ?
		   AND ABS(latitude - ?) <= ? AND ABS(longitude - ?) <= ?
		 ORDER BY id LIMIT 1`,
		name, country, lat, epsilon, lon, epsilon,
	)

	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return weather.Location{}, fmt.Errorf("%w: %s, %s", weather.ErrLocationNotFound, name, country)
	}
	if err != nil {
		return weather.Location{}, fmt.Errorf("%w: matching location: %v", weather.ErrStorage, err)
	}
	return loc, nil
}
