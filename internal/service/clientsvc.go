package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"docuvault/internal/domain"
)

type ClientsStore interface {
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
	GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error)
	ListClients(ctx context.Context, ownerID string, limit int) ([]domain.Client, error)
	UpdateClient(ctx context.Context, ownerID string, c domain.Client) (domain.Client, error)
}

type DocumentRequestsStore interface {
	CreateDocumentRequest(ctx context.Context, d domain.DocumentRequest) (domain.DocumentRequest, error)
	ListForClient(ctx context.Context, ownerID, clientID string) ([]domain.DocumentRequest, error)
	SetActive(ctx context.Context, ownerID, documentID string, active bool) error
}

// ClientService is the staff-facing CRUD surface for clients and their
// document request catalog.
type ClientService struct {
	Clients   ClientsStore
	Documents DocumentRequestsStore
	Now       func() time.Time
}

type SaveClientParams struct {
	Name          string
	Email         string
	Active        bool
	PortalEnabled bool
	DueDay        int
	DueTimezone   string
}

func (s *ClientService) Create(ctx context.Context, ownerID string, p SaveClientParams) (domain.Client, error) {
	if err := validateClient(&p); err != nil {
		return domain.Client{}, err
	}
	return s.Clients.CreateClient(ctx, domain.Client{
		OwnerID:       ownerID,
		Name:          p.Name,
		Email:         p.Email,
		Active:        p.Active,
		PortalEnabled: p.PortalEnabled,
		DueDay:        p.DueDay,
		DueTimezone:   p.DueTimezone,
	})
}

func (s *ClientService) Update(ctx context.Context, ownerID, clientID string, p SaveClientParams) (domain.Client, error) {
	if err := validateClient(&p); err != nil {
		return domain.Client{}, err
	}
	current, err := s.Clients.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	current.Name = p.Name
	current.Email = p.Email
	current.Active = p.Active
	current.PortalEnabled = p.PortalEnabled
	current.DueDay = p.DueDay
	current.DueTimezone = p.DueTimezone
	return s.Clients.UpdateClient(ctx, ownerID, current)
}

func (s *ClientService) Get(ctx context.Context, ownerID, clientID string) (domain.Client, error) {
	return s.Clients.GetClient(ctx, ownerID, clientID)
}

func (s *ClientService) List(ctx context.Context, ownerID string, limit int) ([]domain.Client, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.Clients.ListClients(ctx, ownerID, limit)
}

type SaveDocumentParams struct {
	Title        string
	Description  string
	Required     bool
	SortOrder    int
	MaxFiles     int
	AllowedMIMEs []string
}

func (s *ClientService) CreateDocument(ctx context.Context, ownerID, clientID string, p SaveDocumentParams) (domain.DocumentRequest, error) {
	client, err := s.Clients.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return domain.DocumentRequest{}, err
	}

	p.Title = strings.TrimSpace(p.Title)
	fields := map[string]string{}
	if p.Title == "" {
		fields["title"] = "required"
	}
	if p.MaxFiles < 0 {
		fields["max_files"] = "must not be negative"
	}
	mimes := make([]string, 0, len(p.AllowedMIMEs))
	for _, m := range p.AllowedMIMEs {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if !strings.Contains(m, "/") {
			fields["allowed_mime_types"] = "entries must look like type/subtype"
			break
		}
		mimes = append(mimes, m)
	}
	if len(fields) > 0 {
		return domain.DocumentRequest{}, domain.NewValidationError(fields)
	}

	return s.Documents.CreateDocumentRequest(ctx, domain.DocumentRequest{
		ClientID:     client.ID,
		Title:        p.Title,
		Description:  strings.TrimSpace(p.Description),
		Required:     p.Required,
		Active:       true,
		SortOrder:    p.SortOrder,
		MaxFiles:     p.MaxFiles,
		AllowedMIMEs: mimes,
	})
}

func (s *ClientService) ListDocuments(ctx context.Context, ownerID, clientID string) ([]domain.DocumentRequest, error) {
	return s.Documents.ListForClient(ctx, ownerID, clientID)
}

// SetDocumentActive archives or restores a document request. Archived
// documents stay attached to historical sessions but can no longer be added
// to new ones.
func (s *ClientService) SetDocumentActive(ctx context.Context, ownerID, documentID string, active bool) error {
	return s.Documents.SetActive(ctx, ownerID, documentID, active)
}

func validateClient(p *SaveClientParams) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.DueTimezone = strings.TrimSpace(p.DueTimezone)
	if p.DueTimezone == "" {
		p.DueTimezone = "UTC"
	}

	fields := map[string]string{}
	if p.Name == "" {
		fields["name"] = "required"
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			fields["email"] = "invalid email address"
		}
	}
	if p.DueDay < 1 || p.DueDay > 31 {
		fields["due_day"] = "must be between 1 and 31"
	}
	if _, err := time.LoadLocation(p.DueTimezone); err != nil {
		fields["due_timezone"] = "unknown timezone " + p.DueTimezone
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}
