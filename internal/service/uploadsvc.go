package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"docuvault/internal/domain"

	"github.com/google/uuid"
)

type PortalSessionsStore interface {
	GetOpenSessionByToken(ctx context.Context, token string) (domain.SubmissionSession, error)
	SessionRequestsDocument(ctx context.Context, sessionID, documentID string) (bool, error)
	RequestedDocumentCount(ctx context.Context, sessionID string) (int, error)
	FinalizeIfOpen(ctx context.Context, sessionID, clientID string, when time.Time) (bool, error)
}

type PortalUploadsStore interface {
	CreateUpload(ctx context.Context, u domain.Upload) (domain.Upload, error)
	ActiveUploadCount(ctx context.Context, sessionID, documentID string) (int, error)
	MarkUploaded(ctx context.Context, sessionID, uploadID string, when time.Time) (bool, error)
	GetSessionUpload(ctx context.Context, sessionID, uploadID string) (domain.Upload, error)
	ListForSession(ctx context.Context, sessionID string) ([]domain.Upload, error)
	DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error)
	GetUploadForOwner(ctx context.Context, ownerID, uploadID string) (domain.Upload, error)
}

type UploadDocumentsStore interface {
	GetDocumentRequest(ctx context.Context, documentID string) (domain.DocumentRequest, error)
}

type Blobs interface {
	PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignDownload(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadService is the token-gated portal flow: a client asks for a
// presigned URL, PUTs bytes straight to blob storage, then calls back to
// mark the submission complete.
type UploadService struct {
	Sessions  PortalSessionsStore
	Uploads   PortalUploadsStore
	Documents UploadDocumentsStore
	Store     Blobs
	Logger    *slog.Logger

	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration
	Now            func() time.Time
}

type CreateUploadParams struct {
	DocumentID  string
	Filename    string
	ContentType string
	SizeBytes   int64
}

type SessionView struct {
	Session   domain.SubmissionSession
	Documents []domain.DocumentRequest
	Uploads   []domain.Upload
}

// View resolves the portal token into the session, its requested documents
// and upload state. Unknown and closed tokens are both ErrNotFound.
func (s *UploadService) View(ctx context.Context, token string) (SessionView, error) {
	sess, err := s.Sessions.GetOpenSessionByToken(ctx, token)
	if err != nil {
		return SessionView{}, err
	}

	docs := make([]domain.DocumentRequest, 0, len(sess.DocumentIDs))
	for _, docID := range sess.DocumentIDs {
		d, err := s.Documents.GetDocumentRequest(ctx, docID)
		if err != nil {
			return SessionView{}, err
		}
		docs = append(docs, d)
	}

	uploads, err := s.Uploads.ListForSession(ctx, sess.ID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: sess, Documents: docs, Uploads: uploads}, nil
}

// CreateUpload records a pending upload row and hands back a presigned PUT
// URL for the bytes.
func (s *UploadService) CreateUpload(ctx context.Context, token string, p CreateUploadParams) (domain.Upload, string, error) {
	sess, err := s.Sessions.GetOpenSessionByToken(ctx, token)
	if err != nil {
		return domain.Upload{}, "", err
	}

	requested, err := s.Sessions.SessionRequestsDocument(ctx, sess.ID, p.DocumentID)
	if err != nil {
		return domain.Upload{}, "", err
	}
	if !requested {
		return domain.Upload{}, "", domain.NewValidationError(map[string]string{"document_request_id": "not part of this request"})
	}

	doc, err := s.Documents.GetDocumentRequest(ctx, p.DocumentID)
	if err != nil {
		return domain.Upload{}, "", err
	}
	if !doc.Active {
		return domain.Upload{}, "", domain.NewValidationError(map[string]string{"document_request_id": "no longer active"})
	}

	filename := sanitizeFilename(p.Filename)
	if filename == "" {
		return domain.Upload{}, "", domain.NewValidationError(map[string]string{"filename": "required"})
	}
	if len(doc.AllowedMIMEs) > 0 && !containsFold(doc.AllowedMIMEs, p.ContentType) {
		return domain.Upload{}, "", domain.NewValidationError(map[string]string{"content_type": "type not allowed for this document"})
	}

	count, err := s.Uploads.ActiveUploadCount(ctx, sess.ID, p.DocumentID)
	if err != nil {
		return domain.Upload{}, "", err
	}
	if doc.MaxFiles > 0 && count >= doc.MaxFiles {
		return domain.Upload{}, "", domain.NewValidationError(map[string]string{"document_request_id": fmt.Sprintf("at most %d files allowed", doc.MaxFiles)})
	}

	now := s.now()
	deleteAfter := now.Add(RetentionDefault)
	key := fmt.Sprintf("uploads/%s/%s/%s", sess.ID, p.DocumentID, uuid.NewString())

	upload, err := s.Uploads.CreateUpload(ctx, domain.Upload{
		SessionID:     sess.ID,
		DocumentID:    p.DocumentID,
		Filename:      filename,
		StorageKey:    key,
		ContentType:   p.ContentType,
		SizeBytes:     p.SizeBytes,
		DeleteAfterAt: &deleteAfter,
	})
	if err != nil {
		return domain.Upload{}, "", err
	}

	url, err := s.Store.PresignUpload(ctx, key, s.uploadTTL())
	if err != nil {
		return domain.Upload{}, "", err
	}
	return upload, url, nil
}

// CompleteUpload stamps the submission after the client PUT the bytes, and
// finalizes the session when the last requested document comes in. Retries
// are no-ops. Verifying the object actually landed is best-effort only: the
// signed-URL round trip already succeeded from the client's point of view.
func (s *UploadService) CompleteUpload(ctx context.Context, token, uploadID string) (bool, error) {
	sess, err := s.Sessions.GetOpenSessionByToken(ctx, token)
	if err != nil {
		return false, err
	}

	stamped, err := s.Uploads.MarkUploaded(ctx, sess.ID, uploadID, s.now())
	if err != nil {
		return false, err
	}

	if stamped {
		if u, err := s.Uploads.GetSessionUpload(ctx, sess.ID, uploadID); err == nil {
			if exists, err := s.Store.Exists(ctx, u.StorageKey); err != nil {
				s.logger().Warn("upload existence check failed", "upload_id", uploadID, "err", err)
			} else if !exists {
				s.logger().Warn("completed upload missing from blob store", "upload_id", uploadID, "key", u.StorageKey)
			}
		}
	}

	return finalizeIfComplete(ctx, s.Sessions, s.Uploads, sess.ID, sess.ClientID, s.now())
}

// StaffDownloadURL returns a time-limited GET URL for a reviewed file.
func (s *UploadService) StaffDownloadURL(ctx context.Context, ownerID, uploadID string) (string, error) {
	u, err := s.Uploads.GetUploadForOwner(ctx, ownerID, uploadID)
	if err != nil {
		return "", err
	}
	return s.Store.PresignDownload(ctx, u.StorageKey, u.Filename, s.downloadTTL())
}

func (s *UploadService) uploadTTL() time.Duration {
	if s.UploadURLTTL > 0 {
		return s.UploadURLTTL
	}
	return 15 * time.Minute
}

func (s *UploadService) downloadTTL() time.Duration {
	if s.DownloadURLTTL > 0 {
		return s.DownloadURLTTL
	}
	return 10 * time.Minute
}

func (s *UploadService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *UploadService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = path.Base(strings.ReplaceAll(name, `\`, `/`))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}

func containsFold(ss []string, needle string) bool {
	for _, s := range ss {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
