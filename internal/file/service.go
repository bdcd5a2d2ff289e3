package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/quota"
	"github.com/filedrop/service/internal/storage"
)

// Ledger is the quota interface the service consumes.
type Ledger interface {
	CheckAdmission(ctx context.Context, userID string, candidate int64) (quota.Admission, error)
	ApplyDelta(ctx context.Context, userID string, delta int64) (int64, error)
}

// UploadInput describes one candidate upload.
type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	// OnProgress, when set, receives the transfer percentage in [0,100].
	OnProgress func(pct int)
}

// UploadResult is returned on a committed upload. LedgerStale is set when the
// object and record were written but the counter increment failed — the data
// is safe, the counter under-counts until external reconciliation.
type UploadResult struct {
	File        *File
	LedgerStale bool
}

// Service orchestrates uploads and deletes across the object store, the
// metadata repository, and the quota ledger. The three writes are not
// atomic; every step runs only after the previous one committed, and each
// failure point maps to a distinct error.
type Service struct {
	repo   Repository
	store  storage.Storage
	ledger Ledger
	logger *zap.Logger
}

// NewService creates a file Service.
func NewService(repo Repository, store storage.Storage, ledger Ledger, logger *zap.Logger) *Service {
	return &Service{repo: repo, store: store, ledger: ledger, logger: logger}
}

// Upload admits, stores, records, and accounts one file for the user.
//
// Order: quota pre-check → object write → metadata insert → counter
// increment. A quota rejection has zero side effects. A failed metadata
// insert triggers one best-effort removal of the just-written object. A
// failed counter increment is reported via UploadResult.LedgerStale, not as
// an upload failure — see the error docs in this package.
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (*UploadResult, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrUploadFailed)
	}
	if in.Size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrUploadFailed)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	adm, err := s.ledger.CheckAdmission(ctx, userID, in.Size)
	if err != nil {
		return nil, fmt.Errorf("check admission: %w", err)
	}
	if !adm.Admit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d remaining", ErrQuotaExceeded, in.Size, adm.Remaining)
	}

	key := objectKey(userID, in.Name)

	err = s.store.Upload(ctx, key, in.Body, in.Size, contentType, storage.UploadOptions{
		OnProgress: in.OnProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	f := &File{
		UserID:      userID,
		Name:        in.Name,
		ContentType: contentType,
		Size:        in.Size,
		StorageKey:  key,
		DownloadURL: s.store.PublicURL(key),
	}
	if err := s.repo.Insert(ctx, f); err != nil {
		// One cleanup attempt; a failure here leaves an orphaned object
		// that is invisible and never served.
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.logger.Error("orphaned object left in storage",
				zap.String("key", key), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}

	res := &UploadResult{File: f}
	if _, err := s.ledger.ApplyDelta(ctx, userID, in.Size); err != nil {
		s.logger.Error("storage counter not incremented after upload",
			zap.String("user_id", userID),
			zap.String("file_id", f.ID),
			zap.Int64("size", in.Size),
			zap.Error(err))
		res.LedgerStale = true
	}
	return res, nil
}

// List returns the user's file records, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]File, error) {
	return s.repo.ListByOwner(ctx, userID)
}

// Delete removes one file: object first, then record, then the counter.
// If the object removal fails, nothing is changed — the record still points
// at an existing object. A failed counter decrement is logged only.
func (s *Service) Delete(ctx context.Context, userID, fileID string) error {
	f, err := s.repo.GetByID(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("look up file: %w", err)
	}

	if err := s.store.Remove(ctx, f.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	if err := s.repo.Delete(ctx, userID, fileID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete file record: %w", err)
	}

	if _, err := s.ledger.ApplyDelta(ctx, userID, -f.Size); err != nil {
		s.logger.Error("storage counter not decremented after delete",
			zap.String("user_id", userID),
			zap.String("file_id", fileID),
			zap.Int64("size", f.Size),
			zap.Error(err))
	}
	return nil
}

// objectKey builds a per-user key that is unique with overwhelming
// probability: {userID}/{unix-millis}-{random}{.ext}.
func objectKey(userID, name string) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s/%d-%s%s", userID, time.Now().UnixMilli(), suffix, filepath.Ext(name))
}
