package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docuvault/internal/domain"
)

type RetentionUploadsStore interface {
	ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]domain.Upload, error)
	SoftDelete(ctx context.Context, uploadID string, when time.Time) (bool, error)
}

type BlobRemover interface {
	Remove(ctx context.Context, key string) error
}

// RetentionService sweeps uploads past their delete-after deadline: remove
// the object from blob storage first, then soft-delete the row. The row is
// only marked once the bytes are gone, so a crashed sweep re-finds the
// upload next run.
type RetentionService struct {
	Uploads RetentionUploadsStore
	Blobs   BlobRemover
	Logger  *slog.Logger
	Batch   int
	Now     func() time.Time
}

type RetentionResult struct {
	Processed int `json:"processed"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}

// Run sweeps up to limit expired uploads; limit <= 0 uses the configured
// batch size.
func (s *RetentionService) Run(ctx context.Context, limit int) (RetentionResult, error) {
	if limit <= 0 {
		limit = s.batch()
	}
	now := s.now()
	uploads, err := s.Uploads.ListExpiredRetention(ctx, now, limit)
	if err != nil {
		return RetentionResult{}, fmt.Errorf("list expired uploads: %w", err)
	}

	var res RetentionResult
	for _, u := range uploads {
		res.Processed++
		if err := s.Blobs.Remove(ctx, u.StorageKey); err != nil {
			res.Failed++
			s.logger().Error("remove expired blob", "upload_id", u.ID, "key", u.StorageKey, "err", err)
			continue
		}
		if _, err := s.Uploads.SoftDelete(ctx, u.ID, s.now()); err != nil {
			res.Failed++
			s.logger().Error("soft delete expired upload", "upload_id", u.ID, "err", err)
			continue
		}
		res.Deleted++
	}
	return res, nil
}

func (s *RetentionService) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return 200
}

func (s *RetentionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *RetentionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
