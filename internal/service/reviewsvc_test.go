package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"docuvault/internal/domain"
)

type stubReviewUploads struct {
	upload    domain.Upload
	uploadErr error

	reviewCalled bool
	reviewStatus domain.UploadStatus
	reviewReason string
	deleteAfter  time.Time
	reviewOK      bool
	reviewOwnerID string

	pending   int
	denied    int
	submitted int

	viewedID string
}

func (s *stubReviewUploads) GetUploadForOwner(ctx context.Context, ownerID, uploadID string) (domain.Upload, error) {
	if s.uploadErr != nil {
		return domain.Upload{}, s.uploadErr
	}
	return s.upload, nil
}

func (s *stubReviewUploads) ReviewUpload(ctx context.Context, ownerID, uploadID string, status domain.UploadStatus, reason string, reviewedAt, deleteAfter time.Time) (bool, error) {
	s.reviewCalled = true
	s.reviewOwnerID = ownerID
	s.reviewStatus = status
	s.reviewReason = reason
	s.deleteAfter = deleteAfter
	return s.reviewOK, nil
}

func (s *stubReviewUploads) SessionUploadCounts(ctx context.Context, sessionID string) (int, int, error) {
	return s.pending, s.denied, nil
}

func (s *stubReviewUploads) DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error) {
	return s.submitted, nil
}

func (s *stubReviewUploads) MarkViewed(ctx context.Context, ownerID, uploadID string, when time.Time) (bool, error) {
	s.viewedID = uploadID
	return true, nil
}

type stubReviewSessions struct {
	session  domain.SubmissionSession
	required int

	finalizeCalled   bool
	finalizeClientID string
	stampCalled      bool
	stamped          bool
}

func (s *stubReviewSessions) GetSession(ctx context.Context, sessionID string) (domain.SubmissionSession, error) {
	return s.session, nil
}

func (s *stubReviewSessions) RequestedDocumentCount(ctx context.Context, sessionID string) (int, error) {
	return s.required, nil
}

func (s *stubReviewSessions) FinalizeIfOpen(ctx context.Context, sessionID, clientID string, when time.Time) (bool, error) {
	s.finalizeCalled = true
	s.finalizeClientID = clientID
	return true, nil
}

func (s *stubReviewSessions) MarkAcceptedConfirmationSent(ctx context.Context, sessionID string, when time.Time) (bool, error) {
	s.stampCalled = true
	return s.stamped, nil
}

type stubNotifyClients struct {
	client domain.Client
}

func (s *stubNotifyClients) GetClientByID(ctx context.Context, clientID string) (domain.Client, error) {
	if s.client.ID != clientID {
		return domain.Client{}, domain.ErrNotFound
	}
	return s.client, nil
}

func pendingUpload() domain.Upload {
	uploaded := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	return domain.Upload{
		ID:         "up-1",
		SessionID:  "sess-1",
		DocumentID: "doc-1",
		Status:     domain.UploadPending,
		UploadedAt: &uploaded,
	}
}

func newReviewService(uploads *stubReviewUploads, sessions *stubReviewSessions, mail *stubOutbox) *ReviewService {
	return &ReviewService{
		Uploads:  uploads,
		Sessions: sessions,
		Clients:  &stubNotifyClients{client: testClient()},
		Mail:     mail,
		Now:      fixedNow(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
	}
}

func TestReviewDenialRequiresReason(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true}
	svc := newReviewService(uploads, &stubReviewSessions{}, &stubOutbox{})

	err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadDenied, "  ")
	expectValidation(t, err)
	if uploads.reviewCalled {
		t.Fatal("store should not be touched on validation error")
	}
}

func TestReviewAcceptRejectsReason(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true}
	svc := newReviewService(uploads, &stubReviewSessions{}, &stubOutbox{})
	err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, "looks wrong")
	expectValidation(t, err)
}

func TestReviewRejectsUnknownDecision(t *testing.T) {
	svc := newReviewService(&stubReviewUploads{upload: pendingUpload()}, &stubReviewSessions{}, &stubOutbox{})
	err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadStatus("maybe"), "")
	expectValidation(t, err)
}

func TestReviewIsOneWay(t *testing.T) {
	u := pendingUpload()
	u.Status = domain.UploadAccepted
	svc := newReviewService(&stubReviewUploads{upload: u}, &stubReviewSessions{}, &stubOutbox{})

	err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadDenied, "wrong file")
	if !errors.Is(err, domain.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestReviewLosesRaceToConcurrentReviewer(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: false}
	svc := newReviewService(uploads, &stubReviewSessions{}, &stubOutbox{})

	err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadDenied, "wrong file")
	if !errors.Is(err, domain.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestReviewRetentionWindows(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true, pending: 1}
	svc := newReviewService(uploads, &stubReviewSessions{required: 2}, &stubOutbox{})
	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, ""); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got, want := uploads.deleteAfter, now.Add(RetentionAccepted); !got.Equal(want) {
		t.Fatalf("accepted delete_after = %s, want %s", got, want)
	}

	uploads = &stubReviewUploads{upload: pendingUpload(), reviewOK: true}
	svc = newReviewService(uploads, &stubReviewSessions{}, &stubOutbox{})
	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadDenied, "blurry scan"); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got, want := uploads.deleteAfter, now.Add(RetentionDenied); !got.Equal(want) {
		t.Fatalf("denied delete_after = %s, want %s", got, want)
	}
	if uploads.reviewReason != "blurry scan" {
		t.Fatalf("reason = %q", uploads.reviewReason)
	}
	if uploads.reviewOwnerID != "owner-1" {
		t.Fatalf("review scoped to owner %q, want owner-1", uploads.reviewOwnerID)
	}
}

func TestAcceptLastUploadSendsConfirmation(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true, submitted: 2}
	sessions := &stubReviewSessions{
		session:  domain.SubmissionSession{ID: "sess-1", ClientID: "client-1"},
		required: 2,
		stamped:  true,
	}
	mail := &stubOutbox{}
	svc := newReviewService(uploads, sessions, mail)

	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, ""); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !sessions.finalizeCalled {
		t.Fatal("expected session finalization")
	}
	if sessions.finalizeClientID != "client-1" {
		t.Fatalf("finalize scoped to client %q, want client-1", sessions.finalizeClientID)
	}
	if len(mail.entries) != 1 {
		t.Fatalf("expected one confirmation mail, got %d", len(mail.entries))
	}
	if mail.entries[0].IdempotencyKey != "all_documents_accepted:sess-1" {
		t.Fatalf("idempotency key = %q", mail.entries[0].IdempotencyKey)
	}
}

func TestConfirmationBlockedByDeniedUpload(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true, denied: 1, submitted: 2}
	sessions := &stubReviewSessions{required: 2, stamped: true}
	mail := &stubOutbox{}
	svc := newReviewService(uploads, sessions, mail)

	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, ""); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if sessions.stampCalled {
		t.Fatal("confirmation must not be stamped while a denial is outstanding")
	}
	if len(mail.entries) != 0 {
		t.Fatalf("expected no mail, got %d entries", len(mail.entries))
	}
}

func TestConfirmationSentOnlyOnce(t *testing.T) {
	// Another reviewer already claimed the stamp.
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true, submitted: 2}
	sessions := &stubReviewSessions{required: 2, stamped: false}
	mail := &stubOutbox{}
	svc := newReviewService(uploads, sessions, mail)

	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, ""); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !sessions.stampCalled {
		t.Fatal("expected stamp attempt")
	}
	if len(mail.entries) != 0 {
		t.Fatalf("expected no duplicate mail, got %d entries", len(mail.entries))
	}
}

func TestConfirmationSkippedWithoutClientEmail(t *testing.T) {
	uploads := &stubReviewUploads{upload: pendingUpload(), reviewOK: true, submitted: 1}
	sessions := &stubReviewSessions{
		session:  domain.SubmissionSession{ID: "sess-1", ClientID: "client-1"},
		required: 1,
		stamped:  true,
	}
	mail := &stubOutbox{}
	client := testClient()
	client.Email = ""
	svc := &ReviewService{
		Uploads:  uploads,
		Sessions: sessions,
		Clients:  &stubNotifyClients{client: client},
		Mail:     mail,
		Now:      fixedNow(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
	}

	if err := svc.Review(context.Background(), "owner-1", "up-1", domain.UploadAccepted, ""); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(mail.entries) != 0 {
		t.Fatalf("expected no mail without an address, got %d entries", len(mail.entries))
	}
}

func TestMarkViewedChecksOwnership(t *testing.T) {
	uploads := &stubReviewUploads{uploadErr: domain.ErrNotFound}
	svc := newReviewService(uploads, &stubReviewSessions{}, &stubOutbox{})
	err := svc.MarkViewed(context.Background(), "owner-1", "up-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if uploads.viewedID != "" {
		t.Fatal("viewed stamp must not be written for foreign uploads")
	}
}
