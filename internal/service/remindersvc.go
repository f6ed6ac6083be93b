package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"
	"docuvault/internal/email"
)

type ReminderSessionsStore interface {
	ListOpenDueOn(ctx context.Context, due duedate.Date, limit int) ([]domain.SubmissionSession, error)
	MarkReminder14DSent(ctx context.Context, sessionID string, when time.Time) (bool, error)
	RequestedDocumentCount(ctx context.Context, sessionID string) (int, error)
}

type ReminderUploadsStore interface {
	DistinctSubmittedDocuments(ctx context.Context, sessionID string) (int, error)
}

// ReminderService sends the two-weeks-out nudge for open sessions. Sessions
// whose documents are all in, and sessions that never had fourteen days of
// lead time, are stamped without mail so the cron stops revisiting them.
type ReminderService struct {
	Sessions  ReminderSessionsStore
	Uploads   ReminderUploadsStore
	Clients   SchedulerClientsStore
	Mail      Outbox
	PublicURL string
	Logger    *slog.Logger
	Batch     int
	Now       func() time.Time
}

type ReminderResult struct {
	Processed   int    `json:"processed"`
	Enqueued    int    `json:"enqueued"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	Today       string `json:"today"`
	TargetDueOn string `json:"target_due_on"`
}

func (s *ReminderService) Run(ctx context.Context, today duedate.Date) (ReminderResult, error) {
	target := today.AddDays(14)
	res := ReminderResult{Today: today.String(), TargetDueOn: target.String()}

	sessions, err := s.Sessions.ListOpenDueOn(ctx, target, s.batch())
	if err != nil {
		return res, fmt.Errorf("list sessions due %s: %w", target, err)
	}

	for _, sess := range sessions {
		res.Processed++
		enqueued, err := s.remind(ctx, sess)
		if err != nil {
			res.Failed++
			s.logger().Error("reminder failed", "session_id", sess.ID, "err", err)
			continue
		}
		if enqueued {
			res.Enqueued++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

func (s *ReminderService) remind(ctx context.Context, sess domain.SubmissionSession) (bool, error) {
	// Due days 1-14 mean the link went out less than fourteen days before
	// the deadline. There was never a meaningful two-weeks-out moment, so
	// stamp and move on instead of nagging right after the request.
	if sess.DueOn.Day <= 14 {
		_, err := s.Sessions.MarkReminder14DSent(ctx, sess.ID, s.now())
		return false, err
	}

	done, err := s.allSubmitted(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	if done {
		_, err := s.Sessions.MarkReminder14DSent(ctx, sess.ID, s.now())
		return false, err
	}

	client, err := s.Clients.GetClientByID(ctx, sess.ClientID)
	if err != nil {
		return false, err
	}
	if client.Email == "" {
		_, err := s.Sessions.MarkReminder14DSent(ctx, sess.ID, s.now())
		return false, err
	}

	payload, err := json.Marshal(email.DueReminderPayload{
		ClientName: client.Name,
		PortalURL:  portalURL(s.PublicURL, sess.Token),
		DueOn:      sess.DueOn.String(),
	})
	if err != nil {
		return false, fmt.Errorf("encode reminder payload: %w", err)
	}
	enqueued, err := s.Mail.Enqueue(ctx, domain.OutboxEntry{
		Recipient:      client.Email,
		Template:       email.TemplateDueReminder14D,
		Payload:        payload,
		IdempotencyKey: email.TemplateDueReminder14D + ":" + sess.ID,
	})
	if err != nil {
		// Left unstamped so the next run retries.
		return false, err
	}
	if _, err := s.Sessions.MarkReminder14DSent(ctx, sess.ID, s.now()); err != nil {
		return false, err
	}
	return enqueued, nil
}

func (s *ReminderService) allSubmitted(ctx context.Context, sessionID string) (bool, error) {
	required, err := s.Sessions.RequestedDocumentCount(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if required == 0 {
		return false, nil
	}
	submitted, err := s.Uploads.DistinctSubmittedDocuments(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return submitted >= required, nil
}

func (s *ReminderService) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return 500
}

func (s *ReminderService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ReminderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
