// Package snapshot captures the rendered risk dashboard as a PDF with a
// headless browser, for distribution to readers without dashboard access.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Capturer prints dashboard pages to PDF.
type Capturer struct {
	outDir  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCapturer wires the capturer. outDir is created on first capture.
func NewCapturer(outDir string, timeout time.Duration, logger *slog.Logger) *Capturer {
	return &Capturer{
		outDir:  outDir,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "snapshot")),
	}
}

// Capture loads url in headless Chrome, waits for the charts to settle
// and writes a dated PDF into the output directory, returning its path.
func (c *Capturer) Capture(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	began := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`.card .chart`, chromedp.ByQuery),
		// give plotly a beat to finish drawing after the containers appear
		chromedp.Sleep(2*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(true).
				WithPaperWidth(11.69).
				WithPaperHeight(8.27).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("print dashboard: %w", err)
	}

	out := filepath.Join(c.outDir,
		fmt.Sprintf("risk-dashboard-%s.pdf", time.Now().UTC().Format("2006-01-02-150405")))
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	c.logger.InfoContext(ctx, "dashboard snapshot written",
		slog.String("path", out),
		slog.Int("bytes", len(pdf)),
		slog.Duration("duration", time.Since(began)))
	return out, nil
}
