package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketlens/internal/timeseries"
)

const dateLayout = "2006-01-02"

// SeriesMeta describes one catalog entry. A series is identified by its
// code plus field (e.g. SPX / PX_LAST); most codes carry a single field.
type SeriesMeta struct {
	ID        int64   `json:"-"`
	Code      string  `json:"code"`
	Field     string  `json:"field"`
	Name      string  `json:"name"`
	Frequency string  `json:"frequency"`
	Currency  string  `json:"currency,omitempty"`
	Scale     float64 `json:"scale"`
	StartDate string  `json:"start_date,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
}

// UpsertSeries creates or updates a catalog entry and returns its row id.
func (s *Store) UpsertSeries(ctx context.Context, m SeriesMeta) (int64, error) {
	if m.Scale == 0 {
		m.Scale = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series (code, field, name, frequency, currency, scale)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, field) DO UPDATE SET
			name = excluded.name,
			frequency = excluded.frequency,
			currency = excluded.currency,
			scale = excluded.scale`,
		m.Code, m.Field, m.Name, m.Frequency, m.Currency, m.Scale)
	if err != nil {
		return 0, fmt.Errorf("upsert series %s:%s: %w", m.Code, m.Field, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM series WHERE code = ? AND field = ?`,
		m.Code, m.Field).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup series id: %w", err)
	}
	return id, nil
}

// GetSeriesMeta returns the catalog entry for code and field. An empty
// field selects PX_LAST when present, otherwise the first field by name.
func (s *Store) GetSeriesMeta(ctx context.Context, code, field string) (SeriesMeta, error) {
	var (
		m     SeriesMeta
		start sql.NullString
		end   sql.NullString
		row   *sql.Row
	)
	if field != "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, code, field, name, frequency, currency, scale, start_date, end_date
			FROM series WHERE code = ? AND field = ?`, code, field)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, code, field, name, frequency, currency, scale, start_date, end_date
			FROM series WHERE code = ?
			ORDER BY (field = 'PX_LAST') DESC, field ASC
			LIMIT 1`, code)
	}

	err := row.Scan(&m.ID, &m.Code, &m.Field, &m.Name, &m.Frequency, &m.Currency, &m.Scale, &start, &end)
	if err == sql.ErrNoRows {
		return SeriesMeta{}, fmt.Errorf("%s: %w", code, ErrSeriesNotFound)
	}
	if err != nil {
		return SeriesMeta{}, fmt.Errorf("get series meta: %w", err)
	}
	m.StartDate = start.String
	m.EndDate = end.String
	return m, nil
}

// ListSeries returns the whole catalog ordered by code then field.
func (s *Store) ListSeries(ctx context.Context) ([]SeriesMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, field, name, frequency, currency, scale, start_date, end_date
		FROM series ORDER BY code, field`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []SeriesMeta
	for rows.Next() {
		var (
			m     SeriesMeta
			start sql.NullString
			end   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Code, &m.Field, &m.Name, &m.Frequency, &m.Currency, &m.Scale, &start, &end); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		m.StartDate = start.String
		m.EndDate = end.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReplaceObservations replaces the full observation set for a series and
// refreshes its coverage dates, in one transaction.
func (s *Store) ReplaceObservations(ctx context.Context, seriesID int64, points []timeseries.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (series_id, date, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, seriesID, p.Date.Format(dateLayout), p.Value); err != nil {
			return fmt.Errorf("insert observation %s: %w", p.Date.Format(dateLayout), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE series SET
			start_date = (SELECT MIN(date) FROM observations WHERE series_id = ?),
			end_date   = (SELECT MAX(date) FROM observations WHERE series_id = ?)
		WHERE id = ?`, seriesID, seriesID, seriesID); err != nil {
		return fmt.Errorf("update coverage: %w", err)
	}

	return tx.Commit()
}

// AppendObservations inserts or overwrites individual points without
// touching the rest of the series.
func (s *Store) AppendObservations(ctx context.Context, seriesID int64, points []timeseries.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (series_id, date, value) VALUES (?, ?, ?)
		ON CONFLICT(series_id, date) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, seriesID, p.Date.Format(dateLayout), p.Value); err != nil {
			return fmt.Errorf("upsert observation %s: %w", p.Date.Format(dateLayout), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE series SET
			start_date = (SELECT MIN(date) FROM observations WHERE series_id = ?),
			end_date   = (SELECT MAX(date) FROM observations WHERE series_id = ?)
		WHERE id = ?`, seriesID, seriesID, seriesID); err != nil {
		return fmt.Errorf("update coverage: %w", err)
	}

	return tx.Commit()
}

// LoadSeries reads observations for code/field into a Series. Zero start
// or end leave that side of the window open.
func (s *Store) LoadSeries(ctx context.Context, code, field string, start, end time.Time) (timeseries.Series, error) {
	meta, err := s.GetSeriesMeta(ctx, code, field)
	if err != nil {
		return timeseries.Series{}, err
	}

	q := `SELECT date, value FROM observations WHERE series_id = ?`
	args := []any{meta.ID}
	if !start.IsZero() {
		q += ` AND date >= ?`
		args = append(args, start.Format(dateLayout))
	}
	if !end.IsZero() {
		q += ` AND date <= ?`
		args = append(args, end.Format(dateLayout))
	}
	q += ` ORDER BY date`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	var points []timeseries.Point
	for rows.Next() {
		var (
			ds string
			v  float64
		)
		if err := rows.Scan(&ds, &v); err != nil {
			return timeseries.Series{}, fmt.Errorf("scan observation: %w", err)
		}
		d, err := time.ParseInLocation(dateLayout, ds, time.UTC)
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("bad date %q: %w", ds, err)
		}
		points = append(points, timeseries.Point{Date: d, Value: v})
	}
	if err := rows.Err(); err != nil {
		return timeseries.Series{}, err
	}

	freq, err := timeseries.ParseFrequency(meta.Frequency)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("series %s: %w", code, err)
	}

	name := meta.Code
	if meta.Field != "" && meta.Field != "PX_LAST" {
		name = meta.Code + ":" + meta.Field
	}
	out := timeseries.New(name, freq, points)
	if meta.Scale != 1 {
		out = out.Scale(meta.Scale)
	}
	return out, nil
}
