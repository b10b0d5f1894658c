package insightfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "abc", strings.NewReader("%PDF-1.7 fake")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, err := s.Open(ctx, "abc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-1.7 fake" {
		t.Errorf("content = %q", data)
	}

	if err := s.Remove(ctx, "abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Open(ctx, "abc"); err == nil {
		t.Error("Open after Remove succeeded")
	}

	// Removing twice is not an error.
	if err := s.Remove(ctx, "abc"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestLocalStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "insights")
	if _, err := NewLocalStore(dir); err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestValidatePDFRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ValidatePDF(path, 0); err == nil {
		t.Error("non-PDF accepted")
	}
}

func TestValidatePDFRejectsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ValidatePDF(path, 0); err == nil {
		t.Error("truncated PDF accepted")
	}
}

func TestValidatePDFMissingFile(t *testing.T) {
	if _, err := ValidatePDF(filepath.Join(t.TempDir(), "nope.pdf"), 0); err == nil {
		t.Error("missing file accepted")
	}
}
