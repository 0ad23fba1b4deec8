package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// GetCurrent returns the current-conditions record for a location, or nil
// when the location has never been synced.
func (s *SQLiteStore) GetCurrent(ctx context.Context, locationID int64) (*weather.CurrentConditions, error) {
	return getCurrent(ctx, s.db, locationID)
}

func getCurrent(ctx context.Context, q querier, locationID int64) (*weather.CurrentConditions, error) {
	var c weather.CurrentConditions
	err := q.QueryRowContext(ctx,
		`SELECT location_id, temperature, feels_like, humidity, wind_speed,
			pressure, condition, description, observed_at
		 FROM current_conditions WHERE location_id = ?`,
		locationID,
	).Scan(
		&c.LocationID, &c.Temperature, &c.FeelsLike, &c.Humidity,
		&c.WindSpeed, &c.Pressure, &c.Condition, &c.Description, &c.ObservedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting current conditions for %d: %v", weather.ErrStorage, locationID, err)
	}
	c.ObservedAt = c.ObservedAt.UTC()
	return &c, nil
}

// GetForecast returns the forecast set for a location ordered by forecast
// timestamp ascending.
func (s *SQLiteStore) GetForecast(ctx context.Context, locationID int64) ([]weather.ForecastEntry, error) {
	return getForecast(ctx, s.db, locationID)
}

func getForecast(ctx context.Context, q querier, locationID int64) ([]weather.ForecastEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT location_id, forecast_ts, temperature, condition, description
		 FROM forecasts WHERE location_id = ?
		 ORDER BY forecast_ts ASC`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying forecast for %d: %v", weather.ErrStorage, locationID, err)
	}
	defer rows.Close()

	var entries []weather.ForecastEntry
	for rows.Next() {
		var (
			e  weather.ForecastEntry
			ts int64
		)
		if err := rows.Scan(&e.LocationID, &ts, &e.Temperature, &e.Condition, &e.Description); err != nil {
			return nil, fmt.Errorf("%w: scanning forecast entry: %v", weather.ErrStorage, err)
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating forecast: %v", weather.ErrStorage, err)
	}
	return entries, nil
}

// GetWeather reads the location, its current conditions and its forecast set
// in a single transaction, so the returned parts always belong to one sync
// generation even when a sync commits concurrently.
func (s *SQLiteStore) GetWeather(ctx context.Context, locationID int64) (weather.Location, *weather.CurrentConditions, []weather.ForecastEntry, error) {
	var (
		loc      weather.Location
		current  *weather.CurrentConditions
		forecast []weather.ForecastEntry
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if loc, err = getLocation(ctx, tx, locationID); err != nil {
			return err
		}
		if current, err = getCurrent(ctx, tx, locationID); err != nil {
			return err
		}
		forecast, err = getForecast(ctx, tx, locationID)
		return err
	})
	if err != nil {
		return weather.Location{}, nil, nil, err
	}
	return loc, current, forecast, nil
}

// GetHistoryRange returns history snapshots between from and to inclusive,
// oldest first.
func (s *SQLiteStore) GetHistoryRange(ctx context.Context, locationID int64, from, to time.Time) ([]weather.HistorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT location_id, temperature, feels_like, humidity, wind_speed,
			pressure, condition, description, observed_at, synced_at
		 FROM history
		 WHERE location_id = ? AND synced_at >= ? AND synced_at <= ?
		 ORDER BY synced_at ASC`,
		locationID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history for %d: %v", weather.ErrStorage, locationID, err)
	}
	defer rows.Close()

	var snapshots []weather.HistorySnapshot
	for rows.Next() {
		var h weather.HistorySnapshot
		if err := rows.Scan(
			&h.LocationID, &h.Temperature, &h.FeelsLike, &h.Humidity,
			&h.WindSpeed, &h.Pressure, &h.Condition, &h.Description,
			&h.ObservedAt, &h.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning history snapshot: %v", weather.ErrStorage, err)
		}
		h.ObservedAt = h.ObservedAt.UTC()
		h.SyncedAt = h.SyncedAt.UTC()
		snapshots = append(snapshots, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history: %v", weather.ErrStorage, err)
	}
	return snapshots, nil
}

// ReplaceWeather commits one sync in a single transaction: the
// current-conditions row is upserted to exactly one row, a history snapshot
// is appended, the previous forecast set is dropped and the new one inserted,
// and the location's last_synced (plus refined coordinates, when given) is
// stamped. On error the transaction rolls back and the pre-sync state stands.
func (s *SQLiteStore) ReplaceWeather(ctx context.Context, locationID int64, current weather.CurrentConditions, forecast []weather.ForecastEntry, syncedAt time.Time, lat, lon *float64) error {
	syncedAt = syncedAt.UTC()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO current_conditions (location_id, temperature, feels_like,
				humidity, wind_speed, pressure, condition, description, observed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(location_id) DO UPDATE SET
				temperature = excluded.temperature,
				feels_like  = excluded.feels_like,
				humidity    = excluded.humidity,
				wind_speed  = excluded.wind_speed,
				pressure    = excluded.pressure,
				condition   = excluded.condition,
				description = excluded.description,
				observed_at = excluded.observed_at`,
			locationID, current.Temperature, current.FeelsLike, current.Humidity,
			current.WindSpeed, current.Pressure, current.Condition,
			current.Description, current.ObservedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("%w: replacing current conditions: %v", weather.ErrStorage, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO history (location_id, temperature, feels_like, humidity,
				wind_speed, pressure, condition, description, observed_at, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			locationID, current.Temperature, current.FeelsLike, current.Humidity,
			current.WindSpeed, current.Pressure, current.Condition,
			current.Description, current.ObservedAt.UTC(), syncedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: appending history snapshot: %v", weather.ErrStorage, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM forecasts WHERE location_id = ?`, locationID); err != nil {
			return fmt.Errorf("%w: clearing forecast set: %v", weather.ErrStorage, err)
		}
		for _, e := range forecast {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO forecasts (location_id, forecast_ts, temperature,
					condition, description)
				 VALUES (?, ?, ?, ?, ?)`,
				locationID, e.Timestamp.UTC().Unix(), e.Temperature, e.Condition, e.Description,
			)
			if err != nil {
				return fmt.Errorf("%w: inserting forecast entry: %v", weather.ErrStorage, err)
			}
		}

		query := `UPDATE locations SET last_synced = ?, updated_at = ?`
		args := []any{syncedAt, syncedAt}
		if lat != nil && lon != nil {
			query += `, latitude = ?, longitude = ?`
			args = append(args, *lat, *lon)
		}
		query += ` WHERE id = ?`
		args = append(args, locationID)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: stamping last_synced: %v", weather.ErrStorage, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: checking rows affected: %v", weather.ErrStorage, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: id %d", weather.ErrLocationNotFound, locationID)
		}

		return nil
	})
}
