package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuvault/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UploadsStore struct {
	pool *pgxpool.Pool
}

func NewUploadsStore(pool *pgxpool.Pool) *UploadsStore {
	return &UploadsStore{pool: pool}
}

const uploadColumns = `id, session_id, document_request_id, filename, storage_key, content_type, size_bytes, status, denial_reason, uploaded_at, viewed_at, reviewed_at, delete_after_at, deleted_at, created_at`

func (s *UploadsStore) CreateUpload(ctx context.Context, u domain.Upload) (domain.Upload, error) {
	const q = `
		INSERT INTO uploads (session_id, document_request_id, filename, storage_key, content_type, size_bytes, status, delete_after_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		RETURNING ` + uploadColumns

	var deleteAfter any
	if u.DeleteAfterAt != nil {
		deleteAfter = *u.DeleteAfterAt
	}
	row := s.pool.QueryRow(ctx, q, u.SessionID, u.DocumentID, u.Filename, u.StorageKey, u.ContentType, u.SizeBytes, deleteAfter)
	out, err := scanUpload(row)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("create upload: %w", err)
	}
	return out, nil
}

func (s *UploadsStore) GetUploadForOwner(ctx context.Context, ownerID, uploadID string) (domain.Upload, error) {
	const q = `
		SELECT ` + qualifiedUploadColumns + `
		FROM uploads u
		JOIN submission_sessions s ON s.id = u.session_id
		JOIN clients c ON c.id = s.client_id
		WHERE u.id = $1 AND c.owner_id = $2 AND u.deleted_at IS NULL
	`

	out, err := scanUpload(s.pool.QueryRow(ctx, q, uploadID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Upload{}, domain.ErrNotFound
		}
		return domain.Upload{}, fmt.Errorf("get upload: %w", err)
	}
	return out, nil
}

// GetSessionUpload scopes the lookup to one session, for the token-gated
// portal flow.
func (s *UploadsStore) GetSessionUpload(ctx context.Context, sessionID, uploadID string) (domain.Upload, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1 AND session_id = $2 AND deleted_at IS NULL`

	out, err := scanUpload(s.pool.QueryRow(ctx, q, uploadID, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Upload{}, domain.ErrNotFound
		}
		return domain.Upload{}, fmt.Errorf("get session upload: %w", err)
	}
	return out, nil
}

func (s *UploadsStore) ListForSession(ctx context.Context, sessionID string) ([]domain.Upload, error) {
	const q = `
		SELECT ` + uploadColumns + `
		FROM uploads
		WHERE session_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []domain.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return out, nil
}

func (s *UploadsStore) ActiveUploadCount(ctx context.Context, sessionID, documentID string) (int, error) {
	const q = `
		SELECT COUNT(*)::int FROM uploads
		WHERE session_id = $1 AND document_request_id = $2 AND deleted_at IS NULL
	`
	var n int
	if err := s.pool.QueryRow(ctx, q, sessionID, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("active upload count: %w", err)
	}
	return n, nil
}

// MarkUploaded stamps uploaded_at if still null. A second completion call for
// the same upload is a no-op, not an error.
func (s *UploadsStore) MarkUploaded(ctx context.Context, sessionID, uploadID string, when time.Time) (bool, error) {
	const q = `
		UPDATE uploads
		SET uploaded_at = $3
		WHERE id = $1 AND session_id = $2 AND deleted_at IS NULL AND uploaded_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, uploadID, sessionID, when)
	if err != nil {
		return false, fmt.Errorf("mark uploaded: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows: either a retry (fine) or an unknown upload (not found).
	if _, err := s.GetSessionUpload(ctx, sessionID, uploadID); err != nil {
		return false, err
	}
	return false, nil
}

// ReviewUpload applies a terminal review decision. The status predicate makes
// the transition one-way: zero rows updated means the upload already left
// PENDING (or the owner does not match).
func (s *UploadsStore) ReviewUpload(ctx context.Context, ownerID, uploadID string, status domain.UploadStatus, reason string, reviewedAt, deleteAfter time.Time) (bool, error) {
	const q = `
		UPDATE uploads u
		SET status = $3, denial_reason = $4, reviewed_at = $5, delete_after_at = $6
		FROM submission_sessions s, clients c
		WHERE u.id = $1 AND s.id = u.session_id AND c.id = s.client_id AND c.owner_id = $2
		  AND u.status = 'pending' AND u.deleted_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, uploadID, ownerID, status, reason, reviewedAt, deleteAfter)
	if err != nil {
		return false, fmt.Errorf("review upload: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UploadsStore) MarkViewed(ctx context.Context, ownerID, uploadID string, when time.Time) (bool, error) {
	const q = `
		UPDATE uploads u
		SET viewed_at = $3
		FROM submission_sessions s, clients c
		WHERE u.id = $1 AND s.id = u.session_id AND c.id = s.client_id AND c.owner_id = $2
		  AND u.viewed_at IS NULL AND u.deleted_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, uploadID, ownerID, when)
	if err != nil {
		return false, fmt.Errorf("mark viewed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SessionUploadCounts reports submitted-but-unreviewed and denied uploads for
// the accepted-confirmation trigger.
func (s *UploadsStore) SessionUploadCounts(ctx context.Context, sessionID string) (pending, denied int, err error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending' AND uploaded_at IS NOT NULL)::int,
			COUNT(*) FILTER (WHERE status = 'denied')::int
		FROM uploads
		WHERE session_id = $1 AND deleted_at IS NULL
	`
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&pending, &denied); err != nil {
		return 0, 0, fmt.Errorf("session upload counts: %w", err)
	}
	return pending, denied, nil
}

// DistinctSubmittedDocuments counts requested documents satisfied by at least
// one non-deleted, non-denied upload with bytes submitted. Pending counts
// toward completion; only denial voids a submission.
func (s *UploadsStore) DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error) {
	const q = `
		SELECT COUNT(DISTINCT document_request_id)::int
		FROM uploads
		WHERE session_id = $1 AND deleted_at IS NULL AND uploaded_at IS NOT NULL AND status <> 'denied'
	`
	var n int
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("distinct submitted documents: %w", err)
	}
	return n, nil
}

// ListExpiredRetention returns uploads whose retention deadline has passed,
// for the cleanup sweep.
func (s *UploadsStore) ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]domain.Upload, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	const q = `
		SELECT ` + uploadColumns + `
		FROM uploads
		WHERE deleted_at IS NULL AND delete_after_at IS NOT NULL AND delete_after_at <= $1
		ORDER BY delete_after_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired uploads: %w", err)
	}
	defer rows.Close()

	var out []domain.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired uploads: %w", err)
	}
	return out, nil
}

func (s *UploadsStore) SoftDelete(ctx context.Context, uploadID string, when time.Time) (bool, error) {
	const q = `UPDATE uploads SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, q, uploadID, when)
	if err != nil {
		return false, fmt.Errorf("soft delete upload: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const qualifiedUploadColumns = `u.id, u.session_id, u.document_request_id, u.filename, u.storage_key, u.content_type, u.size_bytes, u.status, u.denial_reason, u.uploaded_at, u.viewed_at, u.reviewed_at, u.delete_after_at, u.deleted_at, u.created_at`

func scanUpload(row pgx.Row) (domain.Upload, error) {
	var (
		u           domain.Upload
		idUUID      pgtype.UUID
		sessionUUID pgtype.UUID
		docUUID     pgtype.UUID
		status      string
		uploadedAt  pgtype.Timestamptz
		viewedAt    pgtype.Timestamptz
		reviewedAt  pgtype.Timestamptz
		deleteAfter pgtype.Timestamptz
		deletedAt   pgtype.Timestamptz
		createdAt   time.Time
	)
	if err := row.Scan(
		&idUUID,
		&sessionUUID,
		&docUUID,
		&u.Filename,
		&u.StorageKey,
		&u.ContentType,
		&u.SizeBytes,
		&status,
		&u.DenialReason,
		&uploadedAt,
		&viewedAt,
		&reviewedAt,
		&deleteAfter,
		&deletedAt,
		&createdAt,
	); err != nil {
		return domain.Upload{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	u.SessionID = uuidOrEmpty(sessionUUID)
	u.DocumentID = uuidOrEmpty(docUUID)
	u.Status = domain.UploadStatus(status)
	u.UploadedAt = timestamptzPtr(uploadedAt)
	u.ViewedAt = timestamptzPtr(viewedAt)
	u.ReviewedAt = timestamptzPtr(reviewedAt)
	u.DeleteAfterAt = timestamptzPtr(deleteAfter)
	u.DeletedAt = timestamptzPtr(deletedAt)
	u.CreatedAt = createdAt
	return u, nil
}
