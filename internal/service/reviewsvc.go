package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/email"
)

// Retention windows assigned by the review state machine. Accepted files are
// short-lived (the provider has taken its copy); denied files stay longer so
// staff can follow up while the client re-uploads.
const (
	RetentionAccepted = 7 * 24 * time.Hour
	RetentionDenied   = 30 * 24 * time.Hour
	RetentionDefault  = 30 * 24 * time.Hour
)

type ReviewUploadsStore interface {
	GetUploadForOwner(ctx context.Context, ownerID, uploadID string) (domain.Upload, error)
	ReviewUpload(ctx context.Context, ownerID, uploadID string, status domain.UploadStatus, reason string, reviewedAt, deleteAfter time.Time) (bool, error)
	SessionUploadCounts(ctx context.Context, sessionID string) (pending, denied int, err error)
	DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error)
	MarkViewed(ctx context.Context, ownerID, uploadID string, when time.Time) (bool, error)
}

type ReviewSessionsStore interface {
	GetSession(ctx context.Context, sessionID string) (domain.SubmissionSession, error)
	RequestedDocumentCount(ctx context.Context, sessionID string) (int, error)
	FinalizeIfOpen(ctx context.Context, sessionID, clientID string, when time.Time) (bool, error)
	MarkAcceptedConfirmationSent(ctx context.Context, sessionID string, when time.Time) (bool, error)
}

type NotifyClientsStore interface {
	GetClientByID(ctx context.Context, clientID string) (domain.Client, error)
}

type Outbox interface {
	Enqueue(ctx context.Context, e domain.OutboxEntry) (bool, error)
}

// ReviewService governs the one-way PENDING to ACCEPTED/DENIED transition of
// uploads and the session finalization it can trigger.
type ReviewService struct {
	Uploads  ReviewUploadsStore
	Sessions ReviewSessionsStore
	Clients  NotifyClientsStore
	Mail     Outbox
	Logger   *slog.Logger
	Now      func() time.Time
}

// Review applies a terminal decision to a pending upload. A second review of
// the same upload fails with ErrAlreadyReviewed; a denied document is only
// ever resolved by a fresh upload, never by mutating the denied row.
func (s *ReviewService) Review(ctx context.Context, ownerID, uploadID string, decision domain.UploadStatus, reason string) error {
	reason = strings.TrimSpace(reason)
	switch decision {
	case domain.UploadAccepted:
		if reason != "" {
			return domain.NewValidationError(map[string]string{"reason": "only denials carry a reason"})
		}
	case domain.UploadDenied:
		if reason == "" {
			return domain.NewValidationError(map[string]string{"reason": "denial requires a reason"})
		}
	default:
		return domain.NewValidationError(map[string]string{"decision": "must be accepted or denied"})
	}

	u, err := s.Uploads.GetUploadForOwner(ctx, ownerID, uploadID)
	if err != nil {
		return err
	}
	if u.Status != domain.UploadPending {
		return domain.ErrAlreadyReviewed
	}

	now := s.now()
	retention := RetentionAccepted
	if decision == domain.UploadDenied {
		retention = RetentionDenied
	}
	ok, err := s.Uploads.ReviewUpload(ctx, ownerID, uploadID, decision, reason, now, now.Add(retention))
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent reviewer.
		return domain.ErrAlreadyReviewed
	}

	if decision == domain.UploadAccepted {
		sess, err := s.Sessions.GetSession(ctx, u.SessionID)
		if err != nil {
			return err
		}
		if _, err := finalizeIfComplete(ctx, s.Sessions, s.Uploads, sess.ID, sess.ClientID, now); err != nil {
			return err
		}
		if err := s.maybeSendAcceptedConfirmation(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

// MarkViewed stamps the staff "seen" marker. Re-viewing is a no-op.
func (s *ReviewService) MarkViewed(ctx context.Context, ownerID, uploadID string) error {
	if _, err := s.Uploads.GetUploadForOwner(ctx, ownerID, uploadID); err != nil {
		return err
	}
	_, err := s.Uploads.MarkViewed(ctx, ownerID, uploadID, s.now())
	return err
}

// maybeSendAcceptedConfirmation fires the one-time "all documents accepted"
// notification when no submitted upload is left pending and none was denied.
// The conditional stamp update is the gate: zero rows updated means another
// review already sent it.
func (s *ReviewService) maybeSendAcceptedConfirmation(ctx context.Context, sess domain.SubmissionSession) error {
	pending, denied, err := s.Uploads.SessionUploadCounts(ctx, sess.ID)
	if err != nil {
		return err
	}
	if pending != 0 || denied != 0 {
		return nil
	}

	stamped, err := s.Sessions.MarkAcceptedConfirmationSent(ctx, sess.ID, s.now())
	if err != nil {
		return err
	}
	if !stamped {
		return nil
	}

	client, err := s.Clients.GetClientByID(ctx, sess.ClientID)
	if err != nil {
		return err
	}
	if client.Email == "" {
		return nil
	}

	payload, err := json.Marshal(email.AcceptedPayload{ClientName: client.Name})
	if err != nil {
		return err
	}
	_, err = s.Mail.Enqueue(ctx, domain.OutboxEntry{
		Recipient:      client.Email,
		Template:       email.TemplateAllDocumentsAccepted,
		Payload:        payload,
		IdempotencyKey: email.TemplateAllDocumentsAccepted + ":" + sess.ID,
	})
	return err
}

func (s *ReviewService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type sessionFinalizer interface {
	RequestedDocumentCount(ctx context.Context, sessionID string) (int, error)
	FinalizeIfOpen(ctx context.Context, sessionID, clientID string, when time.Time) (bool, error)
}

type submissionCounter interface {
	DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error)
}

// finalizeIfComplete flips a session to FINALIZED once every requested
// document has at least one submitted, non-denied upload. Pending review
// counts toward completion; only submission matters.
func finalizeIfComplete(ctx context.Context, sessions sessionFinalizer, uploads submissionCounter, sessionID, clientID string, when time.Time) (bool, error) {
	required, err := sessions.RequestedDocumentCount(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if required == 0 {
		return false, nil
	}
	submitted, err := uploads.DistinctSubmittedDocuments(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if submitted < required {
		return false, nil
	}
	return sessions.FinalizeIfOpen(ctx, sessionID, clientID, when)
}
