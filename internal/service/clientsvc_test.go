package service

import (
	"context"
	"testing"

	"docuvault/internal/domain"
)

type stubClientsStore struct {
	created *domain.Client
	client  domain.Client
	updated *domain.Client
}

func (s *stubClientsStore) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	c.ID = "client-1"
	s.created = &c
	return c, nil
}

func (s *stubClientsStore) GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error) {
	if s.client.ID != clientID || s.client.OwnerID != ownerID {
		return domain.Client{}, domain.ErrNotFound
	}
	return s.client, nil
}

func (s *stubClientsStore) ListClients(ctx context.Context, ownerID string, limit int) ([]domain.Client, error) {
	return []domain.Client{s.client}, nil
}

func (s *stubClientsStore) UpdateClient(ctx context.Context, ownerID string, c domain.Client) (domain.Client, error) {
	s.updated = &c
	return c, nil
}

type stubDocumentsStore struct {
	created *domain.DocumentRequest
}

func (s *stubDocumentsStore) CreateDocumentRequest(ctx context.Context, d domain.DocumentRequest) (domain.DocumentRequest, error) {
	d.ID = "doc-1"
	s.created = &d
	return d, nil
}

func (s *stubDocumentsStore) ListForClient(ctx context.Context, ownerID, clientID string) ([]domain.DocumentRequest, error) {
	return nil, nil
}

func (s *stubDocumentsStore) SetActive(ctx context.Context, ownerID, documentID string, active bool) error {
	return nil
}

func validClientParams() SaveClientParams {
	return SaveClientParams{
		Name:          "Acme GmbH",
		Email:         "finance@acme.test",
		Active:        true,
		PortalEnabled: true,
		DueDay:        25,
		DueTimezone:   "Europe/Berlin",
	}
}

func TestCreateClientValidation(t *testing.T) {
	store := &stubClientsStore{}
	svc := &ClientService{Clients: store, Documents: &stubDocumentsStore{}}

	cases := map[string]func(*SaveClientParams){
		"empty name":   func(p *SaveClientParams) { p.Name = "  " },
		"bad email":    func(p *SaveClientParams) { p.Email = "not-an-address" },
		"due day low":  func(p *SaveClientParams) { p.DueDay = 0 },
		"due day high": func(p *SaveClientParams) { p.DueDay = 32 },
		"bad timezone": func(p *SaveClientParams) { p.DueTimezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		p := validClientParams()
		mutate(&p)
		if _, err := svc.Create(context.Background(), "owner-1", p); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if store.created != nil {
		t.Fatal("no client should have been created")
	}
}

func TestCreateClientDefaultsTimezone(t *testing.T) {
	store := &stubClientsStore{}
	svc := &ClientService{Clients: store, Documents: &stubDocumentsStore{}}

	p := validClientParams()
	p.DueTimezone = ""
	c, err := svc.Create(context.Background(), "owner-1", p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.DueTimezone != "UTC" {
		t.Fatalf("timezone = %q, want UTC", c.DueTimezone)
	}
	if c.OwnerID != "owner-1" {
		t.Fatalf("owner = %q", c.OwnerID)
	}
}

func TestCreateDocumentNormalizesMIMETypes(t *testing.T) {
	store := &stubClientsStore{client: testClient()}
	docs := &stubDocumentsStore{}
	svc := &ClientService{Clients: store, Documents: docs}

	d, err := svc.CreateDocument(context.Background(), "owner-1", "client-1", SaveDocumentParams{
		Title:        "Bank statement",
		MaxFiles:     3,
		AllowedMIMEs: []string{" Application/PDF ", "", "image/png"},
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if len(d.AllowedMIMEs) != 2 || d.AllowedMIMEs[0] != "application/pdf" {
		t.Fatalf("mimes = %v", d.AllowedMIMEs)
	}
	if !d.Active {
		t.Fatal("new documents start active")
	}
}

func TestCreateDocumentRejectsBadMIME(t *testing.T) {
	svc := &ClientService{Clients: &stubClientsStore{client: testClient()}, Documents: &stubDocumentsStore{}}
	_, err := svc.CreateDocument(context.Background(), "owner-1", "client-1", SaveDocumentParams{
		Title:        "Bank statement",
		AllowedMIMEs: []string{"pdf"},
	})
	expectValidation(t, err)
}

func TestCreateDocumentForForeignClientIsNotFound(t *testing.T) {
	svc := &ClientService{Clients: &stubClientsStore{client: testClient()}, Documents: &stubDocumentsStore{}}
	_, err := svc.CreateDocument(context.Background(), "owner-2", "client-1", SaveDocumentParams{Title: "Bank statement"})
	if err == nil {
		t.Fatal("expected not found for foreign owner")
	}
}
