package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
)

type stubSessionsStore struct {
	createCalled bool
	clientID     string
	templateID   string
	token        string
	sentVia      domain.SentVia
	dueOn        duedate.Date
	docIDs       []string
	createErr    error

	openExists       bool
	freeformExpired  int
	session          domain.SubmissionSession
	sessionErr       error
	expiredSessionID string
}

func (s *stubSessionsStore) CreateSession(ctx context.Context, clientID, templateID, token string, sentVia domain.SentVia, dueOn duedate.Date, documentIDs []string) (domain.SubmissionSession, error) {
	s.createCalled = true
	s.clientID = clientID
	s.templateID = templateID
	s.token = token
	s.sentVia = sentVia
	s.dueOn = dueOn
	s.docIDs = append([]string(nil), documentIDs...)
	if s.createErr != nil {
		return domain.SubmissionSession{}, s.createErr
	}
	return domain.SubmissionSession{
		ID:          "sess-1",
		ClientID:    clientID,
		TemplateID:  templateID,
		Status:      domain.SessionOpen,
		Token:       token,
		SentVia:     sentVia,
		DueOn:       dueOn,
		DocumentIDs: documentIDs,
	}, nil
}

func (s *stubSessionsStore) OpenSessionExists(ctx context.Context, clientID, templateID string) (bool, error) {
	return s.openExists, nil
}

func (s *stubSessionsStore) ExpireOpenFreeform(ctx context.Context, clientID string, when time.Time) (int, error) {
	s.freeformExpired++
	return 0, nil
}

func (s *stubSessionsStore) ExpireSession(ctx context.Context, ownerID, sessionID string, when time.Time) error {
	s.expiredSessionID = sessionID
	return nil
}

func (s *stubSessionsStore) GetSessionForOwner(ctx context.Context, ownerID, sessionID string) (domain.SubmissionSession, error) {
	if s.sessionErr != nil {
		return domain.SubmissionSession{}, s.sessionErr
	}
	return s.session, nil
}

type stubSessionClients struct {
	client domain.Client
	err    error
}

func (s *stubSessionClients) GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error) {
	if s.err != nil {
		return domain.Client{}, s.err
	}
	if s.client.OwnerID != ownerID || s.client.ID != clientID {
		return domain.Client{}, domain.ErrNotFound
	}
	return s.client, nil
}

type stubActiveDocs struct {
	active map[string]bool
	err    error
}

func (s *stubActiveDocs) ActiveDocumentIDs(ctx context.Context, clientID string, ids []string) (map[string]bool, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.active[id] {
			out[id] = true
		}
	}
	return out, nil
}

type stubOutbox struct {
	entries []domain.OutboxEntry
	dup     bool
	err     error
}

func (s *stubOutbox) Enqueue(ctx context.Context, e domain.OutboxEntry) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.entries = append(s.entries, e)
	return !s.dup, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testClient() domain.Client {
	return domain.Client{
		ID:            "client-1",
		OwnerID:       "owner-1",
		Name:          "Acme GmbH",
		Email:         "finance@acme.test",
		Active:        true,
		PortalEnabled: true,
		DueDay:        25,
		DueTimezone:   "UTC",
	}
}

func newSessionService(store *stubSessionsStore, client domain.Client, active map[string]bool, mail *stubOutbox) *SessionService {
	return &SessionService{
		Sessions:  store,
		Clients:   &stubSessionClients{client: client},
		Documents: &stubActiveDocs{active: active},
		Mail:      mail,
		PublicURL: "https://portal.test",
		Now:       fixedNow(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
	}
}

func TestCreateSessionRejectsInactiveClient(t *testing.T) {
	client := testClient()
	client.Active = false
	store := &stubSessionsStore{}
	svc := newSessionService(store, client, map[string]bool{"doc-1": true}, &stubOutbox{})

	_, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
	})
	expectValidation(t, err)
	if store.createCalled {
		t.Fatal("store should not be called for an inactive client")
	}
}

func TestCreateSessionRejectsInactiveDocuments(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), map[string]bool{"doc-1": true}, &stubOutbox{})

	_, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1", "doc-2"},
	})
	expectValidation(t, err)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Fields["document_request_ids"], "doc-2") {
		t.Fatalf("expected invalid id in message, got %q", verr.Fields["document_request_ids"])
	}
}

func TestCreateSessionRejectsEmptyDocuments(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), nil, &stubOutbox{})
	_, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{ClientID: "client-1"})
	expectValidation(t, err)
}

func TestCreateSessionUsesClientDefaultDueDay(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), map[string]bool{"doc-1": true}, &stubOutbox{})

	sess, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := duedate.New(2024, time.March, 25)
	if !sess.DueOn.Equal(want) {
		t.Fatalf("due on = %s, want %s", sess.DueOn, want)
	}
	if sess.SentVia != domain.SentViaManual {
		t.Fatalf("sent via = %s, want manual", sess.SentVia)
	}
	if store.templateID != "" {
		t.Fatalf("free-form session must not carry a template id, got %q", store.templateID)
	}
}

func TestCreateSessionRollsDueDateIntoNextMonth(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), map[string]bool{"doc-1": true}, &stubOutbox{})

	// Today is March 10; day 5 already passed this month.
	sess, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
		DueDay:      5,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := duedate.New(2024, time.April, 5)
	if !sess.DueOn.Equal(want) {
		t.Fatalf("due on = %s, want %s", sess.DueOn, want)
	}
}

func TestCreateSessionSupersedesOpenFreeform(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), map[string]bool{"doc-1": true}, &stubOutbox{})

	if _, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if store.freeformExpired != 1 {
		t.Fatalf("expected prior free-form sessions to be expired once, got %d", store.freeformExpired)
	}
}

func TestCreateSessionEnqueuesRequestLink(t *testing.T) {
	store := &stubSessionsStore{}
	mail := &stubOutbox{}
	svc := newSessionService(store, testClient(), map[string]bool{"doc-1": true}, mail)

	sess, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(mail.entries) != 1 {
		t.Fatalf("expected one outbox entry, got %d", len(mail.entries))
	}
	e := mail.entries[0]
	if e.Recipient != "finance@acme.test" {
		t.Fatalf("recipient = %q", e.Recipient)
	}
	if e.IdempotencyKey != "request_link:"+sess.ID {
		t.Fatalf("idempotency key = %q", e.IdempotencyKey)
	}
	if !strings.Contains(string(e.Payload), "/portal/"+sess.Token) {
		t.Fatalf("payload missing portal link: %s", e.Payload)
	}
}

func TestCreateSessionSkipsMailWithoutClientEmail(t *testing.T) {
	client := testClient()
	client.Email = ""
	store := &stubSessionsStore{}
	mail := &stubOutbox{}
	svc := newSessionService(store, client, map[string]bool{"doc-1": true}, mail)

	if _, err := svc.Create(context.Background(), "owner-1", CreateSessionParams{
		ClientID:    "client-1",
		DocumentIDs: []string{"doc-1"},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(mail.entries) != 0 {
		t.Fatalf("expected no mail for a client without an address, got %d entries", len(mail.entries))
	}
}

func TestCreateForTemplateReportsOpenSession(t *testing.T) {
	store := &stubSessionsStore{openExists: true}
	svc := newSessionService(store, testClient(), nil, &stubOutbox{})

	tmpl := domain.RequestTemplate{ID: "tmpl-1", ClientID: "client-1", Enabled: true}
	_, err := svc.CreateForTemplate(context.Background(), testClient(), tmpl, []string{"doc-1"}, domain.SentViaAuto, duedate.Date{})
	if !errors.Is(err, domain.ErrOpenSessionExists) {
		t.Fatalf("expected ErrOpenSessionExists, got %v", err)
	}
	if store.createCalled {
		t.Fatal("store should not create a second open session")
	}
}

func TestCreateForTemplateUsesTemplateDueDay(t *testing.T) {
	store := &stubSessionsStore{}
	svc := newSessionService(store, testClient(), nil, &stubOutbox{})

	day := 28
	tmpl := domain.RequestTemplate{ID: "tmpl-1", ClientID: "client-1", Enabled: true, DueDay: &day}
	sess, err := svc.CreateForTemplate(context.Background(), testClient(), tmpl, []string{"doc-1"}, domain.SentViaAuto, duedate.Date{})
	if err != nil {
		t.Fatalf("CreateForTemplate: %v", err)
	}
	want := duedate.New(2024, time.March, 28)
	if !sess.DueOn.Equal(want) {
		t.Fatalf("due on = %s, want %s", sess.DueOn, want)
	}
	if store.templateID != "tmpl-1" {
		t.Fatalf("template id = %q", store.templateID)
	}
}

func TestCreateForTemplateRejectsPortalDisabledClient(t *testing.T) {
	client := testClient()
	client.PortalEnabled = false
	svc := newSessionService(&stubSessionsStore{}, client, nil, &stubOutbox{})

	tmpl := domain.RequestTemplate{ID: "tmpl-1", ClientID: "client-1", Enabled: true}
	_, err := svc.CreateForTemplate(context.Background(), client, tmpl, []string{"doc-1"}, domain.SentViaAuto, duedate.Date{})
	expectValidation(t, err)
}

func TestSessionTokensAreUnique(t *testing.T) {
	a, err := newSessionToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	b, err := newSessionToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not URL safe", a)
	}
}

func expectValidation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
