package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
	"docuvault/internal/email"
)

type SchedulerTemplatesStore interface {
	ListEnabledTemplates(ctx context.Context, limit int) ([]domain.RequestTemplate, error)
	TemplateDocumentIDs(ctx context.Context, templateID string) ([]string, error)
}

type SchedulerClientsStore interface {
	GetClientByID(ctx context.Context, clientID string) (domain.Client, error)
}

// MonthlyService opens a session for every enabled monthly template on the
// first of the month. It runs under an at-least-once cron, so every step has
// to tolerate replay: the open-session guard absorbs duplicate session
// creation and the per-template-per-month outbox key absorbs duplicate mail.
type MonthlyService struct {
	Templates SchedulerTemplatesStore
	Clients   SchedulerClientsStore
	Sessions  *SessionService
	Mail      Outbox
	PublicURL string
	Logger    *slog.Logger
	Batch     int
}

type MonthlyResult struct {
	Created  int `json:"created"`
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Run processes all enabled templates for the given day. The second return
// reports whether the cycle ran at all; any day other than the first of the
// month is a no-op.
func (s *MonthlyService) Run(ctx context.Context, today duedate.Date) (MonthlyResult, bool, error) {
	if today.Day != 1 {
		return MonthlyResult{}, false, nil
	}

	templates, err := s.Templates.ListEnabledTemplates(ctx, s.batch())
	if err != nil {
		return MonthlyResult{}, true, fmt.Errorf("list enabled templates: %w", err)
	}

	var res MonthlyResult
	for _, tmpl := range templates {
		switch err := s.runTemplate(ctx, tmpl, today, &res); {
		case err == nil:
		case errors.Is(err, domain.ErrOpenSessionExists):
			// A session from a previous cycle (or a replayed run) is
			// still open for this template.
			res.Skipped++
		default:
			res.Failed++
			s.logger().Error("monthly session creation failed",
				"template_id", tmpl.ID, "client_id", tmpl.ClientID, "err", err)
		}
	}
	return res, true, nil
}

func (s *MonthlyService) runTemplate(ctx context.Context, tmpl domain.RequestTemplate, today duedate.Date, res *MonthlyResult) error {
	// Replayed runs can carry a today override that predates the
	// template; never fire for months before it existed.
	if createdAfter(tmpl.CreatedAt, today) {
		res.Skipped++
		return nil
	}
	if tmpl.StartNextMonth && sameMonth(tmpl.CreatedAt, today) {
		res.Skipped++
		return nil
	}

	client, err := s.Clients.GetClientByID(ctx, tmpl.ClientID)
	if err != nil {
		return err
	}
	if !client.Active || !client.PortalEnabled {
		res.Skipped++
		return nil
	}

	docIDs, err := s.Templates.TemplateDocumentIDs(ctx, tmpl.ID)
	if err != nil {
		return err
	}
	if len(docIDs) == 0 {
		res.Skipped++
		s.logger().Warn("enabled template has no documents", "template_id", tmpl.ID)
		return nil
	}

	sess, err := s.Sessions.CreateForTemplate(ctx, client, tmpl, docIDs, domain.SentViaAuto, today)
	if err != nil {
		return err
	}
	res.Created++

	if tmpl.SilentAutoSend {
		return nil
	}
	key := fmt.Sprintf("%s:%s:%04d-%02d", email.TemplateRequestLink, tmpl.ID, today.Year, today.Month)
	enqueued, err := enqueueRequestLink(ctx, s.Mail, s.PublicURL, client, sess, key)
	if err != nil {
		return err
	}
	if enqueued {
		res.Enqueued++
	}
	return nil
}

func (s *MonthlyService) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return 500
}

func (s *MonthlyService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func sameMonth(t time.Time, d duedate.Date) bool {
	return t.UTC().Year() == d.Year && t.UTC().Month() == d.Month
}

func createdAfter(t time.Time, d duedate.Date) bool {
	u := t.UTC()
	if u.Year() != d.Year {
		return u.Year() > d.Year
	}
	return u.Month() > d.Month
}
