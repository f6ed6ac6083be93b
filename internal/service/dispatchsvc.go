package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/email"
)

// maxDispatchAttempts parks an entry as failed once exhausted; parked rows
// need manual intervention rather than endless retries.
const maxDispatchAttempts = 8

type DispatchOutboxStore interface {
	ClaimPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEntry, error)
	MarkSent(ctx context.Context, entryID string, when time.Time) error
	MarkFailed(ctx context.Context, entryID, lastError string, nextRun time.Time, final bool) error
}

type MailSender interface {
	Send(to, subject, htmlBody string) error
}

// DispatchService drains the email outbox: claim a batch, render each entry
// and hand it to SMTP. Delivery failures reschedule the entry with
// exponential backoff until the attempt cap parks it.
type DispatchService struct {
	Outbox DispatchOutboxStore
	Sender MailSender
	Logger *slog.Logger
	Batch  int
	Now    func() time.Time
}

type DispatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Run claims up to limit pending entries and attempts delivery; limit <= 0
// uses the configured batch size.
func (s *DispatchService) Run(ctx context.Context, limit int) (DispatchResult, error) {
	if limit <= 0 {
		limit = s.batch()
	}
	now := s.now()
	entries, err := s.Outbox.ClaimPending(ctx, now, limit)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("claim pending outbox entries: %w", err)
	}

	var res DispatchResult
	for _, e := range entries {
		res.Processed++
		if err := s.dispatch(e); err != nil {
			res.Failed++
			if ferr := s.fail(ctx, e, err); ferr != nil {
				s.logger().Error("record outbox failure", "entry_id", e.ID, "err", ferr)
			}
			continue
		}
		if err := s.Outbox.MarkSent(ctx, e.ID, s.now()); err != nil {
			s.logger().Error("mark outbox entry sent", "entry_id", e.ID, "err", err)
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (s *DispatchService) dispatch(e domain.OutboxEntry) error {
	subject, body, err := email.Render(e.Template, e.Payload)
	if err != nil {
		return err
	}
	if err := s.Sender.Send(e.Recipient, subject, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", e.Template, e.Recipient, err)
	}
	return nil
}

func (s *DispatchService) fail(ctx context.Context, e domain.OutboxEntry, cause error) error {
	// AttemptCount was already bumped by the claim.
	final := e.AttemptCount >= maxDispatchAttempts
	nextRun := s.now().Add(dispatchBackoff(e.AttemptCount))
	s.logger().Warn("outbox dispatch failed",
		"entry_id", e.ID, "template", e.Template, "attempt", e.AttemptCount, "final", final, "err", cause)
	return s.Outbox.MarkFailed(ctx, e.ID, cause.Error(), nextRun, final)
}

// dispatchBackoff doubles per attempt, capped at just over an hour.
func dispatchBackoff(attempts int) time.Duration {
	if attempts > 6 {
		attempts = 6
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}

func (s *DispatchService) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return 100
}

func (s *DispatchService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *DispatchService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
