package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Chart is a stored dashboard panel definition: one or more expressions
// plotted together, with free-form style options passed to the front end.
type Chart struct {
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Group       string          `json:"group"`
	Expressions []string        `json:"expressions"`
	Style       json.RawMessage `json:"style,omitempty"`
}

// SaveChart inserts or replaces a chart definition.
func (s *Store) SaveChart(ctx context.Context, c Chart) error {
	exprs, err := json.Marshal(c.Expressions)
	if err != nil {
		return fmt.Errorf("marshal expressions: %w", err)
	}
	style := c.Style
	if len(style) == 0 {
		style = json.RawMessage("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO charts (slug, title, grp, expressions, style)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			grp = excluded.grp,
			expressions = excluded.expressions,
			style = excluded.style`,
		c.Slug, c.Title, c.Group, string(exprs), string(style))
	if err != nil {
		return fmt.Errorf("save chart %s: %w", c.Slug, err)
	}
	return nil
}

// GetChart returns one chart by slug.
func (s *Store) GetChart(ctx context.Context, slug string) (Chart, error) {
	var (
		c     Chart
		exprs string
		style string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, title, grp, expressions, style FROM charts WHERE slug = ?`, slug).
		Scan(&c.Slug, &c.Title, &c.Group, &exprs, &style)
	if err == sql.ErrNoRows {
		return Chart{}, fmt.Errorf("%s: %w", slug, ErrChartNotFound)
	}
	if err != nil {
		return Chart{}, fmt.Errorf("get chart: %w", err)
	}
	if err := json.Unmarshal([]byte(exprs), &c.Expressions); err != nil {
		return Chart{}, fmt.Errorf("chart %s expressions: %w", slug, err)
	}
	c.Style = json.RawMessage(style)
	return c, nil
}

// ListCharts returns all charts grouped then titled, the order the
// dashboard renders them in.
func (s *Store) ListCharts(ctx context.Context) ([]Chart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, title, grp, expressions, style FROM charts ORDER BY grp, title`)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	defer rows.Close()

	var out []Chart
	for rows.Next() {
		var (
			c     Chart
			exprs string
			style string
		)
		if err := rows.Scan(&c.Slug, &c.Title, &c.Group, &exprs, &style); err != nil {
			return nil, fmt.Errorf("scan chart: %w", err)
		}
		if err := json.Unmarshal([]byte(exprs), &c.Expressions); err != nil {
			return nil, fmt.Errorf("chart %s expressions: %w", c.Slug, err)
		}
		c.Style = json.RawMessage(style)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChart removes a chart definition.
func (s *Store) DeleteChart(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM charts WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", slug, ErrChartNotFound)
	}
	return nil
}
