package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Insight statuses. A record starts pending and moves to ready or failed
// once summarization completes.
const (
	InsightPending = "pending"
	InsightReady   = "ready"
	InsightFailed  = "failed"
)

// Insight is the metadata record for one uploaded research document.
type Insight struct {
	ID          string    `json:"id"`
	Issuer      string    `json:"issuer"`
	Name        string    `json:"name"`
	PublishedAt string    `json:"published_at"`
	Filename    string    `json:"filename"`
	Pages       int       `json:"pages"`
	Summary     string    `json:"summary,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateInsight inserts a new record, normally with status pending.
func (s *Store) CreateInsight(ctx context.Context, in Insight) error {
	if in.Status == "" {
		in.Status = InsightPending
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, issuer, name, published_at, filename, pages, summary, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Issuer, in.Name, in.PublishedAt, in.Filename, in.Pages,
		in.Summary, in.Status, in.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create insight %s: %w", in.ID, err)
	}
	return nil
}

// GetInsight returns one record by id.
func (s *Store) GetInsight(ctx context.Context, id string) (Insight, error) {
	var (
		in      Insight
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, issuer, name, published_at, filename, pages, summary, status, created_at
		FROM insights WHERE id = ?`, id).
		Scan(&in.ID, &in.Issuer, &in.Name, &in.PublishedAt, &in.Filename,
			&in.Pages, &in.Summary, &in.Status, &created)
	if err == sql.ErrNoRows {
		return Insight{}, fmt.Errorf("%s: %w", id, ErrInsightNotFound)
	}
	if err != nil {
		return Insight{}, fmt.Errorf("get insight: %w", err)
	}
	in.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return in, nil
}

// ListInsights returns records newest-publication-first, optionally
// filtered by issuer.
func (s *Store) ListInsights(ctx context.Context, issuer string) ([]Insight, error) {
	q := `SELECT id, issuer, name, published_at, filename, pages, summary, status, created_at
		FROM insights`
	var args []any
	if issuer != "" {
		q += ` WHERE issuer = ?`
		args = append(args, issuer)
	}
	q += ` ORDER BY published_at DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var (
			in      Insight
			created string
		)
		if err := rows.Scan(&in.ID, &in.Issuer, &in.Name, &in.PublishedAt, &in.Filename,
			&in.Pages, &in.Summary, &in.Status, &created); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, in)
	}
	return out, rows.Err()
}

// SetInsightSummary records the generated summary and flips the status
// to ready.
func (s *Store) SetInsightSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE insights SET summary = ?, status = ? WHERE id = ?`,
		summary, InsightReady, id)
	if err != nil {
		return fmt.Errorf("set insight summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrInsightNotFound)
	}
	return nil
}

// SetInsightStatus updates only the status column (e.g. to failed).
func (s *Store) SetInsightStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE insights SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set insight status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrInsightNotFound)
	}
	return nil
}

// DeleteInsight removes the metadata record. The stored file is the
// blob store's problem.
func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete insight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrInsightNotFound)
	}
	return nil
}
