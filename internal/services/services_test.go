package services

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"marketlens/internal/infrastructure"
	"marketlens/internal/insightfile"
	"marketlens/internal/store"
	"marketlens/internal/summarize"
	"marketlens/internal/timeseries"
	"marketlens/internal/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

// seedStore opens a temp store holding a short SPX daily history.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	id, err := st.UpsertSeries(ctx, store.SeriesMeta{
		Code: "SPX", Field: "PX_LAST", Name: "S&P 500", Frequency: "D",
	})
	if err != nil {
		t.Fatalf("upsert series: %v", err)
	}
	points := []timeseries.Point{
		{Date: day("2024-01-02"), Value: 4700},
		{Date: day("2024-01-03"), Value: 4710},
		{Date: day("2024-01-04"), Value: 4690},
		{Date: day("2024-01-05"), Value: 4720},
	}
	if err := st.ReplaceObservations(ctx, id, points); err != nil {
		t.Fatalf("replace observations: %v", err)
	}
	return st
}

func TestSeriesServiceEvaluate(t *testing.T) {
	st := seedStore(t)
	svc := NewSeriesService(st, nil, discardLogger())

	frame, err := svc.Evaluate(context.Background(), []string{"SPX", "diff(SPX)"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if frame.Width() != 2 {
		t.Fatalf("width = %d, want 2", frame.Width())
	}
	if frame.Len() != 4 {
		t.Errorf("len = %d, want 4", frame.Len())
	}

	col, ok := frame.Column("diff(SPX)")
	if !ok {
		t.Fatalf("columns = %v, want diff(SPX)", frame.Names())
	}
	diffs := col.Values()
	if !math.IsNaN(diffs[0]) {
		t.Errorf("first diff = %v, want NaN", diffs[0])
	}
	if diffs[1] != 10 {
		t.Errorf("second diff = %v, want 10", diffs[1])
	}
}

func TestSeriesServiceEvaluateWindowSlices(t *testing.T) {
	st := seedStore(t)
	svc := NewSeriesService(st, nil, discardLogger())

	frame, err := svc.Evaluate(context.Background(), []string{"diff(SPX)"},
		day("2024-01-04"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if frame.Len() != 2 {
		t.Fatalf("len = %d, want 2", frame.Len())
	}
	// the transform runs over full history, so the windowed first row
	// still has a defined difference
	col, _ := frame.Column("diff(SPX)")
	if got := col.Values()[0]; got != -20 {
		t.Errorf("first windowed diff = %v, want -20", got)
	}
}

func TestSeriesServiceEvaluateUnknownCode(t *testing.T) {
	st := seedStore(t)
	svc := NewSeriesService(st, nil, discardLogger())

	if _, err := svc.Evaluate(context.Background(), []string{"NOPE"}, time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error for unknown series code")
	}
}

func TestChartServiceSaveValidatesExpressions(t *testing.T) {
	st := seedStore(t)
	series := NewSeriesService(st, nil, discardLogger())
	charts := NewChartService(st, series, discardLogger())
	ctx := context.Background()

	bad := store.Chart{Slug: "bad", Title: "Bad", Group: "test",
		Expressions: []string{"roll(SPX"}}
	if err := charts.Save(ctx, bad); err == nil {
		t.Fatal("expected save to reject a malformed expression")
	}
	if _, err := st.GetChart(ctx, "bad"); err == nil {
		t.Fatal("rejected chart must not be persisted")
	}

	good := store.Chart{Slug: "spx-mom", Title: "SPX momentum", Group: "equities",
		Expressions: []string{"SPX", "diff(SPX)"}}
	if err := charts.Save(ctx, good); err != nil {
		t.Fatalf("save: %v", err)
	}

	c, frame, err := charts.Render(ctx, "spx-mom", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if c.Title != "SPX momentum" {
		t.Errorf("title = %q", c.Title)
	}
	if frame.Width() != 2 {
		t.Errorf("width = %d, want 2", frame.Width())
	}
}

func TestInsightServiceUploadRejectsNonPDF(t *testing.T) {
	st := seedStore(t)
	blobs, err := insightfile.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	svc := NewInsightService(st, blobs, nil, nil, nil, 200, discardLogger())

	req := UploadRequest{Issuer: "GS", Name: "Weekly Kickstart",
		PublishedAt: "2024-01-05", Filename: "kickstart.pdf"}
	_, err = svc.Upload(context.Background(), req, strings.NewReader("not a pdf at all"))
	if err == nil {
		t.Fatal("expected rejection of non-PDF payload")
	}

	list, err := st.ListInsights(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("rejected upload left %d records", len(list))
	}
}

// collectInsightUploads reads the insight_uploads_total counter for one
// status value.
func collectInsightUploads(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "insight_uploads_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("insight_uploads_total data type = %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok && v.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestInsightServiceRejectedUploadRecordsMetric(t *testing.T) {
	st := seedStore(t)
	blobs, err := insightfile.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })
	metrics, err := infrastructure.CreateServiceMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}

	svc := NewInsightService(st, blobs, nil, nil, metrics, 200, discardLogger())
	req := UploadRequest{Issuer: "GS", Name: "Weekly Kickstart",
		PublishedAt: "2024-01-05", Filename: "kickstart.pdf"}
	if _, err := svc.Upload(context.Background(), req, strings.NewReader("not a pdf")); err == nil {
		t.Fatal("expected rejection of non-PDF payload")
	}

	if got := collectInsightUploads(t, reader, "rejected"); got != 1 {
		t.Errorf("rejected uploads = %d, want 1", got)
	}
}

func TestInsightServiceFailedSummarizationSetsStatus(t *testing.T) {
	st := seedStore(t)
	blobs, err := insightfile.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	hub := websocket.NewHub(discardLogger())
	hub.Start()
	t.Cleanup(hub.Stop)

	svc := NewInsightService(st, blobs, stubSummarizer{}, hub, nil, 200, discardLogger())
	ctx := context.Background()

	in := store.Insight{ID: "ins-1", Issuer: "MS", Name: "FX Views",
		PublishedAt: "2024-02-01", Filename: "fx.pdf", Pages: 3}
	if err := st.CreateInsight(ctx, in); err != nil {
		t.Fatalf("create insight: %v", err)
	}
	// blob content is junk, so text extraction fails before the
	// summarizer is reached
	if err := blobs.Save(ctx, in.ID, strings.NewReader("junk")); err != nil {
		t.Fatalf("save blob: %v", err)
	}

	svc.wg.Add(1)
	svc.summarizeInBackground("", in)

	got, err := st.GetInsight(ctx, in.ID)
	if err != nil {
		t.Fatalf("get insight: %v", err)
	}
	if got.Status != store.InsightFailed {
		t.Errorf("status = %q, want %q", got.Status, store.InsightFailed)
	}
}

func TestInsightServiceDeleteRemovesBlob(t *testing.T) {
	st := seedStore(t)
	blobs, err := insightfile.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	svc := NewInsightService(st, blobs, nil, nil, nil, 200, discardLogger())
	ctx := context.Background()

	in := store.Insight{ID: "ins-2", Issuer: "JPM", Name: "Eye on the Market",
		PublishedAt: "2024-03-01", Filename: "eotm.pdf", Pages: 10}
	if err := st.CreateInsight(ctx, in); err != nil {
		t.Fatalf("create insight: %v", err)
	}
	if err := blobs.Save(ctx, in.ID, strings.NewReader("payload")); err != nil {
		t.Fatalf("save blob: %v", err)
	}

	if err := svc.Delete(ctx, in.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetInsight(ctx, in.ID); err == nil {
		t.Error("record still present after delete")
	}
	if _, err := blobs.Open(ctx, in.ID); err == nil {
		t.Error("blob still present after delete")
	}
}

func TestHealthServiceCheck(t *testing.T) {
	st := seedStore(t)
	svc := NewHealthService(st, discardLogger())

	status := svc.Check(context.Background())
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy", status.Status)
	}
	if status.Checks["store"] != "ok" {
		t.Errorf("store check = %q", status.Checks["store"])
	}
	if !svc.Ready(context.Background()) {
		t.Error("ready = false, want true")
	}
}

// stubSummarizer stands in for the Anthropic client in tests.
type stubSummarizer struct{}

func (stubSummarizer) Summarize(context.Context, summarize.Document) (string, error) {
	return "summary", nil
}
