package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketlens/internal/infrastructure"
	"marketlens/internal/insightfile"
	"marketlens/internal/store"
	"marketlens/internal/summarize"
	"marketlens/internal/websocket"
)

// summarizeTimeout bounds one background summarization run.
const summarizeTimeout = 2 * time.Minute

// UploadRequest is the metadata accompanying an uploaded document.
type UploadRequest struct {
	Issuer      string `json:"issuer" validate:"required,max=128"`
	Name        string `json:"name" validate:"required,max=256"`
	PublishedAt string `json:"published_at" validate:"required,date"`
	Filename    string `json:"filename" validate:"required,filename"`
}

// InsightService accepts research documents, stores them and generates
// summaries in the background.
type InsightService struct {
	store      *store.Store
	blobs      insightfile.BlobStore
	summarizer summarize.Summarizer
	hub        *websocket.Hub
	metrics    *infrastructure.ServiceMetrics
	maxPages   int
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewInsightService wires the service. summarizer and hub may be nil;
// without a summarizer uploaded documents stay pending.
func NewInsightService(st *store.Store, blobs insightfile.BlobStore, summarizer summarize.Summarizer,
	hub *websocket.Hub, metrics *infrastructure.ServiceMetrics, maxPages int, logger *slog.Logger) *InsightService {
	return &InsightService{
		store:      st,
		blobs:      blobs,
		summarizer: summarizer,
		hub:        hub,
		metrics:    metrics,
		maxPages:   maxPages,
		logger:     logger.With(slog.String("component", "insight_service")),
	}
}

// Upload validates the PDF in r, stores it and creates a pending record.
// Summarization runs in the background; the returned record reflects the
// state at accept time. The caller is responsible for capping r's size.
func (s *InsightService) Upload(ctx context.Context, req UploadRequest, r io.Reader) (store.Insight, error) {
	tmp, err := os.CreateTemp("", "marketlens-upload-*.pdf")
	if err != nil {
		return store.Insight{}, fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		s.metrics.RecordInsightUpload(ctx, false)
		return store.Insight{}, fmt.Errorf("stage upload: %w", err)
	}
	tmp.Close()

	pages, err := insightfile.ValidatePDF(tmp.Name(), s.maxPages)
	if err != nil {
		s.metrics.RecordInsightUpload(ctx, false)
		return store.Insight{}, err
	}

	id := uuid.NewString()

	f, err := os.Open(tmp.Name())
	if err != nil {
		s.metrics.RecordInsightUpload(ctx, false)
		return store.Insight{}, fmt.Errorf("reopen upload: %w", err)
	}
	saveErr := s.blobs.Save(ctx, id, f)
	f.Close()
	if saveErr != nil {
		s.metrics.RecordInsightUpload(ctx, false)
		return store.Insight{}, saveErr
	}

	in := store.Insight{
		ID:          id,
		Issuer:      req.Issuer,
		Name:        req.Name,
		PublishedAt: req.PublishedAt,
		Filename:    req.Filename,
		Pages:       pages,
		Status:      store.InsightPending,
	}
	if err := s.store.CreateInsight(ctx, in); err != nil {
		s.blobs.Remove(ctx, id)
		return store.Insight{}, err
	}

	s.metrics.RecordInsightUpload(ctx, true)
	s.logger.InfoContext(ctx, "insight accepted",
		slog.String("id", id),
		slog.String("issuer", in.Issuer),
		slog.Int("pages", pages))

	if s.summarizer == nil {
		s.logger.WarnContext(ctx, "summarizer not configured, insight stays pending",
			slog.String("id", id))
		return s.store.GetInsight(ctx, id)
	}

	traceID := infrastructure.GetTraceID(ctx)
	s.wg.Add(1)
	go s.summarizeInBackground(traceID, in)

	return s.store.GetInsight(ctx, id)
}

// summarizeInBackground extracts the document text, asks the summarizer
// for a digest and records the outcome. Runs detached from the request.
func (s *InsightService) summarizeInBackground(traceID string, in store.Insight) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}

	summary, err := s.generateSummary(ctx, in)
	s.metrics.RecordInsightSummary(ctx, err)

	status := store.InsightReady
	if err != nil {
		status = store.InsightFailed
		s.logger.ErrorContext(ctx, "summarization failed",
			slog.String("id", in.ID),
			slog.String("error", err.Error()))
		if serr := s.store.SetInsightStatus(ctx, in.ID, status); serr != nil {
			s.logger.ErrorContext(ctx, "record failure status",
				slog.String("id", in.ID),
				slog.String("error", serr.Error()))
		}
	} else {
		if serr := s.store.SetInsightSummary(ctx, in.ID, summary); serr != nil {
			s.logger.ErrorContext(ctx, "record summary",
				slog.String("id", in.ID),
				slog.String("error", serr.Error()))
			return
		}
		s.logger.InfoContext(ctx, "summary stored", slog.String("id", in.ID))
	}

	if s.hub != nil {
		s.hub.BroadcastInsightStatus(in.ID, status)
	}
}

func (s *InsightService) generateSummary(ctx context.Context, in store.Insight) (string, error) {
	path := s.blobs.Path(in.ID)
	if path == "" {
		f, err := s.blobs.Open(ctx, in.ID)
		if err != nil {
			return "", err
		}
		tmp, err := os.CreateTemp("", "marketlens-summarize-*.pdf")
		if err != nil {
			f.Close()
			return "", fmt.Errorf("stage blob: %w", err)
		}
		_, copyErr := io.Copy(tmp, f)
		f.Close()
		tmp.Close()
		defer os.Remove(tmp.Name())
		if copyErr != nil {
			return "", fmt.Errorf("stage blob: %w", copyErr)
		}
		path = tmp.Name()
	}

	text, err := insightfile.ExtractText(path)
	if err != nil {
		return "", err
	}

	return s.summarizer.Summarize(ctx, summarize.Document{
		Issuer:      in.Issuer,
		Name:        in.Name,
		PublishedAt: in.PublishedAt,
		Text:        text,
	})
}

// Get returns one insight record.
func (s *InsightService) Get(ctx context.Context, id string) (store.Insight, error) {
	return s.store.GetInsight(ctx, id)
}

// List returns insight records, optionally filtered by issuer.
func (s *InsightService) List(ctx context.Context, issuer string) ([]store.Insight, error) {
	return s.store.ListInsights(ctx, issuer)
}

// File opens the stored document for streaming back to the client.
func (s *InsightService) File(ctx context.Context, id string) (io.ReadCloser, store.Insight, error) {
	in, err := s.store.GetInsight(ctx, id)
	if err != nil {
		return nil, store.Insight{}, err
	}
	rc, err := s.blobs.Open(ctx, id)
	if err != nil {
		return nil, store.Insight{}, err
	}
	return rc, in, nil
}

// Delete removes the record and its stored document.
func (s *InsightService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteInsight(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "remove blob",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	return nil
}

// Wait blocks until in-flight background summarizations finish. Used
// during shutdown and in tests.
func (s *InsightService) Wait() {
	s.wg.Wait()
}
