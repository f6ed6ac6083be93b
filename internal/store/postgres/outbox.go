package postgres

import (
	"context"
	"fmt"
	"time"

	"docuvault/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxStore struct {
	pool *pgxpool.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

const outboxColumns = `id, recipient, template, payload, idempotency_key, run_after, status, attempt_count, last_error, created_at, sent_at`

// Enqueue inserts a pending outbox entry. A duplicate idempotency key means
// the notification is already queued; that is reported as inserted=false,
// never as an error.
func (s *OutboxStore) Enqueue(ctx context.Context, e domain.OutboxEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	const q = `
		INSERT INTO email_outbox (id, recipient, template, payload, idempotency_key, run_after, status)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), 'pending')
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	var runAfter any
	if !e.RunAfter.IsZero() {
		runAfter = e.RunAfter
	}
	tag, err := s.pool.Exec(ctx, q, e.ID, e.Recipient, e.Template, payload, e.IdempotencyKey, runAfter)
	if err != nil {
		return false, fmt.Errorf("enqueue outbox entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimPending picks up to limit runnable entries and bumps their attempt
// count in the same statement, so overlapping dispatchers never grab the
// same row twice (SKIP LOCKED skips in-flight claims).
func (s *OutboxStore) ClaimPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const q = `
		UPDATE email_outbox
		SET attempt_count = attempt_count + 1
		WHERE id IN (
			SELECT id FROM email_outbox
			WHERE status = 'pending' AND run_after <= $1
			ORDER BY run_after ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := s.pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	return out, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, entryID string, when time.Time) error {
	const q = `UPDATE email_outbox SET status = 'sent', sent_at = $2, last_error = '' WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, entryID, when)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed reschedules the entry for a later retry, or parks it as failed
// once the dispatcher gives up.
func (s *OutboxStore) MarkFailed(ctx context.Context, entryID, lastError string, nextRun time.Time, final bool) error {
	status := domain.OutboxPending
	if final {
		status = domain.OutboxFailed
	}
	const q = `UPDATE email_outbox SET status = $2, run_after = $3, last_error = $4 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, entryID, status, nextRun, lastError)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanOutboxEntry(row pgx.Row) (domain.OutboxEntry, error) {
	var (
		e       domain.OutboxEntry
		idUUID  pgtype.UUID
		status  string
		sentAt  pgtype.Timestamptz
		payload []byte
	)
	if err := row.Scan(
		&idUUID,
		&e.Recipient,
		&e.Template,
		&payload,
		&e.IdempotencyKey,
		&e.RunAfter,
		&status,
		&e.AttemptCount,
		&e.LastError,
		&e.CreatedAt,
		&sentAt,
	); err != nil {
		return domain.OutboxEntry{}, err
	}
	e.ID = uuidOrEmpty(idUUID)
	e.Payload = payload
	e.Status = domain.OutboxStatus(status)
	e.SentAt = timestamptzPtr(sentAt)
	return e, nil
}
