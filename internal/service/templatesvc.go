package service

import (
	"context"
	"strings"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
	"docuvault/internal/email"
)

type TemplatesStore interface {
	CreateTemplate(ctx context.Context, t domain.RequestTemplate) (domain.RequestTemplate, error)
	UpdateTemplate(ctx context.Context, ownerID string, t domain.RequestTemplate) (domain.RequestTemplate, error)
	GetTemplateForOwner(ctx context.Context, ownerID, templateID string) (domain.RequestTemplate, error)
	TemplateDocumentIDs(ctx context.Context, templateID string) ([]string, error)
}

// TemplateService manages recurring request templates and the manual
// send-now action that opens a session from one outside the monthly cycle.
type TemplateService struct {
	Templates TemplatesStore
	Clients   SessionClientsStore
	Documents ActiveDocumentsStore
	Sessions  *SessionService
	Mail      Outbox
	PublicURL string
	Now       func() time.Time
}

type SaveTemplateParams struct {
	ClientID       string
	Name           string
	Enabled        bool
	SilentAutoSend bool
	StartNextMonth bool
	DueDay         *int
	DocumentIDs    []string
}

func (s *TemplateService) Create(ctx context.Context, ownerID string, p SaveTemplateParams) (domain.RequestTemplate, error) {
	client, err := s.Clients.GetClient(ctx, ownerID, p.ClientID)
	if err != nil {
		return domain.RequestTemplate{}, err
	}
	docIDs, err := s.validate(ctx, client.ID, &p)
	if err != nil {
		return domain.RequestTemplate{}, err
	}
	return s.Templates.CreateTemplate(ctx, domain.RequestTemplate{
		ClientID:       client.ID,
		Name:           p.Name,
		Enabled:        p.Enabled,
		Frequency:      domain.FrequencyMonthly,
		SilentAutoSend: p.SilentAutoSend,
		StartNextMonth: p.StartNextMonth,
		DueDay:         p.DueDay,
		DocumentIDs:    docIDs,
	})
}

func (s *TemplateService) Update(ctx context.Context, ownerID, templateID string, p SaveTemplateParams) (domain.RequestTemplate, error) {
	current, err := s.Templates.GetTemplateForOwner(ctx, ownerID, templateID)
	if err != nil {
		return domain.RequestTemplate{}, err
	}
	docIDs, err := s.validate(ctx, current.ClientID, &p)
	if err != nil {
		return domain.RequestTemplate{}, err
	}
	current.Name = p.Name
	current.Enabled = p.Enabled
	current.SilentAutoSend = p.SilentAutoSend
	current.StartNextMonth = p.StartNextMonth
	current.DueDay = p.DueDay
	current.DocumentIDs = docIDs
	return s.Templates.UpdateTemplate(ctx, ownerID, current)
}

func (s *TemplateService) Get(ctx context.Context, ownerID, templateID string) (domain.RequestTemplate, error) {
	return s.Templates.GetTemplateForOwner(ctx, ownerID, templateID)
}

// SendNow opens a session from the template immediately, outside the monthly
// cycle. Unlike the scheduler's silent mode, an explicit send always emails
// the link.
func (s *TemplateService) SendNow(ctx context.Context, ownerID, templateID string) (domain.SubmissionSession, error) {
	tmpl, err := s.Templates.GetTemplateForOwner(ctx, ownerID, templateID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	if !tmpl.Enabled {
		return domain.SubmissionSession{}, domain.ErrTemplateDisabled
	}
	client, err := s.Clients.GetClient(ctx, ownerID, tmpl.ClientID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	docIDs, err := s.Templates.TemplateDocumentIDs(ctx, tmpl.ID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}

	sess, err := s.Sessions.CreateForTemplate(ctx, client, tmpl, docIDs, domain.SentViaManual, duedate.Date{})
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	if _, err := enqueueRequestLink(ctx, s.Mail, s.PublicURL, client, sess, email.TemplateRequestLink+":"+sess.ID); err != nil {
		return domain.SubmissionSession{}, err
	}
	return sess, nil
}

func (s *TemplateService) validate(ctx context.Context, clientID string, p *SaveTemplateParams) ([]string, error) {
	p.Name = strings.TrimSpace(p.Name)
	fields := map[string]string{}
	if p.Name == "" {
		fields["name"] = "required"
	}
	if p.DueDay != nil && (*p.DueDay < 1 || *p.DueDay > 31) {
		fields["due_day"] = "must be between 1 and 31"
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	return validateDocumentIDs(ctx, s.Documents, clientID, p.DocumentIDs)
}
