package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"marketlens/internal/timeseries"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestSeriesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertSeries(ctx, SeriesMeta{
		Code: "SPX", Field: "PX_LAST", Name: "S&P 500", Frequency: "D", Currency: "USD",
	})
	if err != nil {
		t.Fatalf("UpsertSeries: %v", err)
	}

	points := []timeseries.Point{
		{Date: d(2024, 1, 2), Value: 4742.83},
		{Date: d(2024, 1, 3), Value: 4704.81},
		{Date: d(2024, 1, 4), Value: 4688.68},
	}
	if err := s.ReplaceObservations(ctx, id, points); err != nil {
		t.Fatalf("ReplaceObservations: %v", err)
	}

	got, err := s.LoadSeries(ctx, "SPX", "PX_LAST", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len = %d, want 3", got.Len())
	}
	if v, ok := got.Lookup(d(2024, 1, 3)); !ok || v != 4704.81 {
		t.Errorf("Lookup(Jan 3) = %v, %v", v, ok)
	}
	if got.Freq != timeseries.Daily {
		t.Errorf("Freq = %v, want Daily", got.Freq)
	}

	meta, err := s.GetSeriesMeta(ctx, "SPX", "")
	if err != nil {
		t.Fatalf("GetSeriesMeta: %v", err)
	}
	if meta.StartDate != "2024-01-02" || meta.EndDate != "2024-01-04" {
		t.Errorf("coverage = %s..%s", meta.StartDate, meta.EndDate)
	}
}

func TestSeriesDefaultFieldPrefersPXLast(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, f := range []string{"PX_VOLUME", "PX_LAST", "PX_OPEN"} {
		if _, err := s.UpsertSeries(ctx, SeriesMeta{Code: "DAX", Field: f, Frequency: "D"}); err != nil {
			t.Fatalf("UpsertSeries(%s): %v", f, err)
		}
	}

	meta, err := s.GetSeriesMeta(ctx, "DAX", "")
	if err != nil {
		t.Fatalf("GetSeriesMeta: %v", err)
	}
	if meta.Field != "PX_LAST" {
		t.Errorf("default field = %s, want PX_LAST", meta.Field)
	}
}

func TestLoadSeriesWindowAndScale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertSeries(ctx, SeriesMeta{
		Code: "US_GDP", Field: "PX_LAST", Frequency: "Q", Scale: 0.001,
	})
	if err != nil {
		t.Fatalf("UpsertSeries: %v", err)
	}
	points := []timeseries.Point{
		{Date: d(2023, 3, 31), Value: 26000},
		{Date: d(2023, 6, 30), Value: 27000},
		{Date: d(2023, 9, 30), Value: 28000},
	}
	if err := s.ReplaceObservations(ctx, id, points); err != nil {
		t.Fatalf("ReplaceObservations: %v", err)
	}

	got, err := s.LoadSeries(ctx, "US_GDP", "", d(2023, 6, 1), d(2023, 12, 31))
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len = %d, want 2", got.Len())
	}
	if v, _ := got.Lookup(d(2023, 6, 30)); v != 27 {
		t.Errorf("scaled value = %v, want 27", v)
	}
}

func TestAppendObservationsOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertSeries(ctx, SeriesMeta{Code: "US10Y", Field: "PX_LAST", Frequency: "D"})
	if err != nil {
		t.Fatalf("UpsertSeries: %v", err)
	}
	if err := s.AppendObservations(ctx, id, []timeseries.Point{{Date: d(2024, 1, 2), Value: 4.0}}); err != nil {
		t.Fatalf("AppendObservations: %v", err)
	}
	if err := s.AppendObservations(ctx, id, []timeseries.Point{
		{Date: d(2024, 1, 2), Value: 4.05},
		{Date: d(2024, 1, 3), Value: 4.10},
	}); err != nil {
		t.Fatalf("AppendObservations: %v", err)
	}

	got, err := s.LoadSeries(ctx, "US10Y", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len = %d, want 2", got.Len())
	}
	if v, _ := got.Lookup(d(2024, 1, 2)); v != 4.05 {
		t.Errorf("revised value = %v, want 4.05", v)
	}
}

func TestSeriesNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadSeries(context.Background(), "NOPE", "", time.Time{}, time.Time{})
	if !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("err = %v, want ErrSeriesNotFound", err)
	}
}

func TestInsightLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := Insight{
		ID:          "0c9d7c2e-8f3a-4f2f-9a2b-1e5d6c7b8a90",
		Issuer:      "GS",
		Name:        "Global Views",
		PublishedAt: "2024-01-15",
		Filename:    "global-views.pdf",
		Pages:       12,
	}
	if err := s.CreateInsight(ctx, in); err != nil {
		t.Fatalf("CreateInsight: %v", err)
	}

	got, err := s.GetInsight(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got.Status != InsightPending {
		t.Errorf("status = %s, want pending", got.Status)
	}

	if err := s.SetInsightSummary(ctx, in.ID, "Bullish on duration."); err != nil {
		t.Fatalf("SetInsightSummary: %v", err)
	}
	got, err = s.GetInsight(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got.Status != InsightReady || got.Summary != "Bullish on duration." {
		t.Errorf("after summary: status=%s summary=%q", got.Status, got.Summary)
	}

	list, err := s.ListInsights(ctx, "GS")
	if err != nil {
		t.Fatalf("ListInsights: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListInsights returned %d records", len(list))
	}

	if err := s.DeleteInsight(ctx, in.ID); err != nil {
		t.Fatalf("DeleteInsight: %v", err)
	}
	if _, err := s.GetInsight(ctx, in.ID); !errors.Is(err, ErrInsightNotFound) {
		t.Errorf("after delete: err = %v, want ErrInsightNotFound", err)
	}
}

func TestInsightStatusUnknownID(t *testing.T) {
	s := testStore(t)
	err := s.SetInsightStatus(context.Background(), "missing", InsightFailed)
	if !errors.Is(err, ErrInsightNotFound) {
		t.Errorf("err = %v, want ErrInsightNotFound", err)
	}
}

func TestChartRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c := Chart{
		Slug:        "us-curve",
		Title:       "US 2s10s",
		Group:       "Rates",
		Expressions: []string{"US10Y - US2Y"},
		Style:       []byte(`{"yaxis":"bp"}`),
	}
	if err := s.SaveChart(ctx, c); err != nil {
		t.Fatalf("SaveChart: %v", err)
	}

	got, err := s.GetChart(ctx, "us-curve")
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if len(got.Expressions) != 1 || got.Expressions[0] != "US10Y - US2Y" {
		t.Errorf("expressions = %v", got.Expressions)
	}

	// Replace via the same slug.
	c.Title = "US 2s10s spread"
	if err := s.SaveChart(ctx, c); err != nil {
		t.Fatalf("SaveChart (update): %v", err)
	}
	got, err = s.GetChart(ctx, "us-curve")
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if got.Title != "US 2s10s spread" {
		t.Errorf("title = %s", got.Title)
	}

	list, err := s.ListCharts(ctx)
	if err != nil {
		t.Fatalf("ListCharts: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListCharts returned %d charts", len(list))
	}

	if err := s.DeleteChart(ctx, "us-curve"); err != nil {
		t.Fatalf("DeleteChart: %v", err)
	}
	if _, err := s.GetChart(ctx, "us-curve"); !errors.Is(err, ErrChartNotFound) {
		t.Errorf("after delete: err = %v, want ErrChartNotFound", err)
	}
}
