package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuvault/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplatesStore struct {
	pool *pgxpool.Pool
}

func NewTemplatesStore(pool *pgxpool.Pool) *TemplatesStore {
	return &TemplatesStore{pool: pool}
}

const templateColumns = `id, client_id, name, enabled, frequency, silent_auto_send, start_next_month, due_day, created_at, updated_at`

func (s *TemplatesStore) CreateTemplate(ctx context.Context, t domain.RequestTemplate) (domain.RequestTemplate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO request_templates (client_id, name, enabled, frequency, silent_auto_send, start_next_month, due_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + templateColumns

	var dueDay any
	if t.DueDay != nil {
		dueDay = *t.DueDay
	}
	row := tx.QueryRow(ctx, q, t.ClientID, t.Name, t.Enabled, t.Frequency, t.SilentAutoSend, t.StartNextMonth, dueDay)
	out, err := scanTemplate(row)
	if err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("insert template: %w", err)
	}

	if err := insertTemplateDocuments(ctx, tx, out.ID, t.DocumentIDs); err != nil {
		return domain.RequestTemplate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("commit tx: %w", err)
	}
	out.DocumentIDs = append([]string(nil), t.DocumentIDs...)
	return out, nil
}

// UpdateTemplate persists template settings and replaces the document join
// set. Delete-then-insert inside one transaction: the monthly scheduler reads
// template documents only at session-creation time, never mid-edit.
func (s *TemplatesStore) UpdateTemplate(ctx context.Context, ownerID string, t domain.RequestTemplate) (domain.RequestTemplate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		UPDATE request_templates t
		SET name = $3, enabled = $4, silent_auto_send = $5, start_next_month = $6, due_day = $7, updated_at = now()
		FROM clients c
		WHERE t.id = $1 AND c.id = t.client_id AND c.owner_id = $2
		RETURNING ` + qualifiedTemplateColumns

	var dueDay any
	if t.DueDay != nil {
		dueDay = *t.DueDay
	}
	row := tx.QueryRow(ctx, q, t.ID, ownerID, t.Name, t.Enabled, t.SilentAutoSend, t.StartNextMonth, dueDay)
	out, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RequestTemplate{}, domain.ErrNotFound
		}
		return domain.RequestTemplate{}, fmt.Errorf("update template: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM request_template_documents WHERE template_id = $1`, out.ID); err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("clear template documents: %w", err)
	}
	if err := insertTemplateDocuments(ctx, tx, out.ID, t.DocumentIDs); err != nil {
		return domain.RequestTemplate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RequestTemplate{}, fmt.Errorf("commit tx: %w", err)
	}
	out.DocumentIDs = append([]string(nil), t.DocumentIDs...)
	return out, nil
}

const qualifiedTemplateColumns = `t.id, t.client_id, t.name, t.enabled, t.frequency, t.silent_auto_send, t.start_next_month, t.due_day, t.created_at, t.updated_at`

func insertTemplateDocuments(ctx context.Context, tx pgx.Tx, templateID string, documentIDs []string) error {
	const q = `INSERT INTO request_template_documents (template_id, document_request_id) VALUES ($1, $2)`
	for _, docID := range documentIDs {
		if _, err := tx.Exec(ctx, q, templateID, docID); err != nil {
			return fmt.Errorf("insert template document: %w", err)
		}
	}
	return nil
}

func (s *TemplatesStore) GetTemplateForOwner(ctx context.Context, ownerID, templateID string) (domain.RequestTemplate, error) {
	const q = `
		SELECT ` + qualifiedTemplateColumns + `
		FROM request_templates t
		JOIN clients c ON c.id = t.client_id
		WHERE t.id = $1 AND c.owner_id = $2
	`

	out, err := scanTemplate(s.pool.QueryRow(ctx, q, templateID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RequestTemplate{}, domain.ErrNotFound
		}
		return domain.RequestTemplate{}, fmt.Errorf("get template: %w", err)
	}

	out.DocumentIDs, err = s.TemplateDocumentIDs(ctx, out.ID)
	if err != nil {
		return domain.RequestTemplate{}, err
	}
	return out, nil
}

// ListEnabledTemplates returns enabled monthly templates across all owners,
// for the daily scheduler pass. Bounded so one cron invocation stays inside
// its time limit.
func (s *TemplatesStore) ListEnabledTemplates(ctx context.Context, limit int) ([]domain.RequestTemplate, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	const q = `
		SELECT ` + templateColumns + `
		FROM request_templates
		WHERE enabled AND frequency = 'monthly'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list enabled templates: %w", err)
	}
	defer rows.Close()

	var out []domain.RequestTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enabled templates: %w", err)
	}
	return out, nil
}

func (s *TemplatesStore) TemplateDocumentIDs(ctx context.Context, templateID string) ([]string, error) {
	const q = `
		SELECT document_request_id
		FROM request_template_documents
		WHERE template_id = $1
	`

	rows, err := s.pool.Query(ctx, q, templateID)
	if err != nil {
		return nil, fmt.Errorf("template document ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var idUUID pgtype.UUID
		if err := rows.Scan(&idUUID); err != nil {
			return nil, fmt.Errorf("scan template document id: %w", err)
		}
		out = append(out, uuidOrEmpty(idUUID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("template document ids: %w", err)
	}
	return out, nil
}

func scanTemplate(row pgx.Row) (domain.RequestTemplate, error) {
	var (
		t          domain.RequestTemplate
		idUUID     pgtype.UUID
		clientUUID pgtype.UUID
		dueDay     pgtype.Int4
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(
		&idUUID,
		&clientUUID,
		&t.Name,
		&t.Enabled,
		&t.Frequency,
		&t.SilentAutoSend,
		&t.StartNextMonth,
		&dueDay,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.RequestTemplate{}, err
	}
	t.ID = uuidOrEmpty(idUUID)
	t.ClientID = uuidOrEmpty(clientUUID)
	t.DueDay = int4Ptr(dueDay)
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
	return t, nil
}
