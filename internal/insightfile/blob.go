package insightfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore persists insight documents by id.
type BlobStore interface {
	Save(ctx context.Context, id string, r io.Reader) error
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Remove(ctx context.Context, id string) error
	// Path returns a local filesystem path for the blob, or "" when the
	// store is remote.
	Path(id string) string
}

// LocalStore keeps documents as <dir>/<id>.pdf.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create insight directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Path(id string) string {
	return filepath.Join(s.dir, id+".pdf")
}

func (s *LocalStore) Save(_ context.Context, id string, r io.Reader) error {
	f, err := os.Create(s.Path(id))
	if err != nil {
		return fmt.Errorf("create blob %s: %w", id, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write blob %s: %w", id, err)
	}
	return f.Close()
}

func (s *LocalStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(id))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	return f, nil
}

func (s *LocalStore) Remove(_ context.Context, id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", id, err)
	}
	return nil
}
