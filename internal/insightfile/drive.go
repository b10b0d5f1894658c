package insightfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveStore wraps a local store and mirrors every document to a Google
// Drive folder. Reads are served locally; Drive is the off-box copy.
type DriveStore struct {
	local    *LocalStore
	service  *drive.Service
	folderID string
	logger   *slog.Logger

	// fileIDs maps insight id to Drive file id for removal. Uploads and
	// deletes run on separate request goroutines, so access goes through
	// mu. The index is memory-only: files mirrored before a restart stay
	// on Drive until cleaned up there.
	mu      sync.Mutex
	fileIDs map[string]string
}

// NewDriveStore builds the Drive client from a service account
// credentials file.
func NewDriveStore(ctx context.Context, local *LocalStore, credentialsFile, folderID string, logger *slog.Logger) (*DriveStore, error) {
	service, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveStore{
		local:    local,
		service:  service,
		folderID: folderID,
		logger:   logger.With(slog.String("component", "drive_store")),
		fileIDs:  make(map[string]string),
	}, nil
}

func (s *DriveStore) Path(id string) string {
	return s.local.Path(id)
}

func (s *DriveStore) Save(ctx context.Context, id string, r io.Reader) error {
	if err := s.local.Save(ctx, id, r); err != nil {
		return err
	}

	f, err := s.local.Open(ctx, id)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := &drive.File{
		Name:     id + ".pdf",
		MimeType: "application/pdf",
		Parents:  []string{s.folderID},
	}
	created, err := s.service.Files.Create(meta).
		Media(f, googleapi.ContentType("application/pdf")).
		Context(ctx).
		Do()
	if err != nil {
		// The local copy is authoritative; a failed mirror is logged, not
		// fatal.
		s.logger.ErrorContext(ctx, "drive mirror failed",
			slog.String("insight_id", id),
			slog.String("error", err.Error()))
		return nil
	}

	s.rememberFileID(id, created.Id)
	s.logger.InfoContext(ctx, "mirrored insight to drive",
		slog.String("insight_id", id),
		slog.String("drive_file_id", created.Id))
	return nil
}

func (s *DriveStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	return s.local.Open(ctx, id)
}

func (s *DriveStore) Remove(ctx context.Context, id string) error {
	if err := s.local.Remove(ctx, id); err != nil {
		return err
	}
	if fileID, ok := s.takeFileID(id); ok {
		if err := s.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
			s.logger.WarnContext(ctx, "drive delete failed",
				slog.String("insight_id", id),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *DriveStore) rememberFileID(id, driveID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileIDs[id] = driveID
}

// takeFileID removes and returns the Drive file id for an insight.
func (s *DriveStore) takeFileID(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	driveID, ok := s.fileIDs[id]
	if ok {
		delete(s.fileIDs, id)
	}
	return driveID, ok
}
