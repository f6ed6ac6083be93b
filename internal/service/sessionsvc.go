package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
	"docuvault/internal/email"
)

type SessionsStore interface {
	CreateSession(ctx context.Context, clientID, templateID, token string, sentVia domain.SentVia, dueOn duedate.Date, documentIDs []string) (domain.SubmissionSession, error)
	OpenSessionExists(ctx context.Context, clientID, templateID string) (bool, error)
	ExpireOpenFreeform(ctx context.Context, clientID string, when time.Time) (int, error)
	ExpireSession(ctx context.Context, ownerID, sessionID string, when time.Time) error
	GetSessionForOwner(ctx context.Context, ownerID, sessionID string) (domain.SubmissionSession, error)
}

type SessionClientsStore interface {
	GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error)
}

type ActiveDocumentsStore interface {
	ActiveDocumentIDs(ctx context.Context, clientID string, ids []string) (map[string]bool, error)
}

// SessionService opens submission sessions: the one-per-cycle unit a client
// uploads documents against.
type SessionService struct {
	Sessions  SessionsStore
	Clients   SessionClientsStore
	Documents ActiveDocumentsStore
	Mail      Outbox
	PublicURL string
	Now       func() time.Time
}

type CreateSessionParams struct {
	ClientID    string
	DocumentIDs []string
	DueDay      int // 0 falls back to the client default
}

// Create opens a free-form session for a client. Any still-open free-form
// session for the same client is superseded (expired) by the new one;
// template-backed sessions are left alone.
func (s *SessionService) Create(ctx context.Context, ownerID string, p CreateSessionParams) (domain.SubmissionSession, error) {
	client, err := s.Clients.GetClient(ctx, ownerID, p.ClientID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	if !client.Active {
		return domain.SubmissionSession{}, domain.NewValidationError(map[string]string{"client_id": "client is inactive"})
	}

	docIDs, err := validateDocumentIDs(ctx, s.Documents, client.ID, p.DocumentIDs)
	if err != nil {
		return domain.SubmissionSession{}, err
	}

	dueDay := p.DueDay
	if dueDay == 0 {
		dueDay = client.DueDay
	}
	if dueDay < 1 || dueDay > 31 {
		return domain.SubmissionSession{}, domain.NewValidationError(map[string]string{"due_day": "must be between 1 and 31"})
	}

	dueOn, err := s.nextDue(client, dueDay, duedate.Date{})
	if err != nil {
		return domain.SubmissionSession{}, err
	}

	if _, err := s.Sessions.ExpireOpenFreeform(ctx, client.ID, s.now()); err != nil {
		return domain.SubmissionSession{}, err
	}

	token, err := newSessionToken()
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	sess, err := s.Sessions.CreateSession(ctx, client.ID, "", token, domain.SentViaManual, dueOn, docIDs)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	if _, err := enqueueRequestLink(ctx, s.Mail, s.PublicURL, client, sess, email.TemplateRequestLink+":"+sess.ID); err != nil {
		return domain.SubmissionSession{}, err
	}
	return sess, nil
}

// CreateForTemplate opens a template-backed session. Callers (the monthly
// scheduler and the template send-now action) have already resolved the
// client and the template's document set. The at-most-one-open guard is
// checked here and enforced again by the store's unique index. A non-zero
// today anchors the due-date computation, so a replayed scheduler run
// produces the due date of the day it stands in for; the zero Date means
// "today by the clock, in the client's timezone".
func (s *SessionService) CreateForTemplate(ctx context.Context, client domain.Client, tmpl domain.RequestTemplate, documentIDs []string, sentVia domain.SentVia, today duedate.Date) (domain.SubmissionSession, error) {
	if !client.Active || !client.PortalEnabled {
		return domain.SubmissionSession{}, domain.NewValidationError(map[string]string{"client_id": "client is inactive or portal-disabled"})
	}
	if len(documentIDs) == 0 {
		return domain.SubmissionSession{}, domain.NewValidationError(map[string]string{"document_request_ids": "template has no documents"})
	}

	exists, err := s.Sessions.OpenSessionExists(ctx, client.ID, tmpl.ID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	if exists {
		return domain.SubmissionSession{}, domain.ErrOpenSessionExists
	}

	dueDay := client.DueDay
	if tmpl.DueDay != nil {
		dueDay = *tmpl.DueDay
	}
	dueOn, err := s.nextDue(client, dueDay, today)
	if err != nil {
		return domain.SubmissionSession{}, err
	}

	token, err := newSessionToken()
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	return s.Sessions.CreateSession(ctx, client.ID, tmpl.ID, token, sentVia, dueOn, documentIDs)
}

func (s *SessionService) Get(ctx context.Context, ownerID, sessionID string) (domain.SubmissionSession, error) {
	return s.Sessions.GetSessionForOwner(ctx, ownerID, sessionID)
}

func (s *SessionService) Expire(ctx context.Context, ownerID, sessionID string) error {
	return s.Sessions.ExpireSession(ctx, ownerID, sessionID, s.now())
}

// validateDocumentIDs dedupes the requested ids and checks each one is an
// active document request belonging to the client.
func validateDocumentIDs(ctx context.Context, docs ActiveDocumentsStore, clientID string, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	docIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		docIDs = append(docIDs, id)
	}
	if len(docIDs) == 0 {
		return nil, domain.NewValidationError(map[string]string{"document_request_ids": "at least one document is required"})
	}

	active, err := docs.ActiveDocumentIDs(ctx, clientID, docIDs)
	if err != nil {
		return nil, err
	}
	var invalid []string
	for _, id := range docIDs {
		if !active[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, domain.NewValidationError(map[string]string{
			"document_request_ids": "invalid or inactive: " + strings.Join(invalid, ", "),
		})
	}
	return docIDs, nil
}

func (s *SessionService) nextDue(client domain.Client, dueDay int, today duedate.Date) (duedate.Date, error) {
	if today.IsZero() {
		loc, err := time.LoadLocation(client.DueTimezone)
		if err != nil {
			return duedate.Date{}, domain.NewValidationError(map[string]string{"due_timezone": "unknown timezone " + client.DueTimezone})
		}
		today = duedate.Today(s.now(), loc)
	}
	return duedate.NextDue(today, dueDay), nil
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// newSessionToken mints the opaque capability embedded in the portal URL.
func newSessionToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
