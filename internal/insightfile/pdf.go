// Package insightfile handles uploaded research documents: PDF
// validation and blob storage, local or mirrored to Google Drive.
package insightfile

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var pdfMagic = []byte("%PDF-")

// ValidatePDF checks that path holds a structurally valid PDF and
// returns its page count. maxPages of 0 disables the page cap.
func ValidatePDF(path string, maxPages int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	header := make([]byte, len(pdfMagic))
	_, readErr := f.Read(header)
	f.Close()
	if readErr != nil || !bytes.Equal(header, pdfMagic) {
		return 0, fmt.Errorf("file is not a PDF")
	}

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}

	pages := ctx.PageCount
	if pages == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	if maxPages > 0 && pages > maxPages {
		return 0, fmt.Errorf("pdf has %d pages, limit is %d", pages, maxPages)
	}
	return pages, nil
}
