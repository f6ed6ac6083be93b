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

type DocumentRequestsStore struct {
	pool *pgxpool.Pool
}

func NewDocumentRequestsStore(pool *pgxpool.Pool) *DocumentRequestsStore {
	return &DocumentRequestsStore{pool: pool}
}

const documentRequestColumns = `id, client_id, title, description, required, active, sort_order, max_files, allowed_mime_types, created_at`

func (s *DocumentRequestsStore) CreateDocumentRequest(ctx context.Context, d domain.DocumentRequest) (domain.DocumentRequest, error) {
	const q = `
		INSERT INTO document_requests (client_id, title, description, required, active, sort_order, max_files, allowed_mime_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + documentRequestColumns

	var mimes any
	if len(d.AllowedMIMEs) > 0 {
		mimes = d.AllowedMIMEs
	}
	row := s.pool.QueryRow(ctx, q, d.ClientID, d.Title, d.Description, d.Required, d.Active, d.SortOrder, d.MaxFiles, mimes)
	out, err := scanDocumentRequest(row)
	if err != nil {
		return domain.DocumentRequest{}, fmt.Errorf("create document request: %w", err)
	}
	return out, nil
}

func (s *DocumentRequestsStore) GetDocumentRequest(ctx context.Context, documentID string) (domain.DocumentRequest, error) {
	const q = `SELECT ` + documentRequestColumns + ` FROM document_requests WHERE id = $1`

	out, err := scanDocumentRequest(s.pool.QueryRow(ctx, q, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DocumentRequest{}, domain.ErrNotFound
		}
		return domain.DocumentRequest{}, fmt.Errorf("get document request: %w", err)
	}
	return out, nil
}

func (s *DocumentRequestsStore) ListForClient(ctx context.Context, ownerID, clientID string) ([]domain.DocumentRequest, error) {
	const q = `
		SELECT ` + qualifiedDocumentRequestColumns + `
		FROM document_requests d
		JOIN clients c ON c.id = d.client_id
		WHERE d.client_id = $1 AND c.owner_id = $2
		ORDER BY d.sort_order ASC, d.title ASC
	`

	rows, err := s.pool.Query(ctx, q, clientID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentRequest
	for rows.Next() {
		d, err := scanDocumentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document request: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	return out, nil
}

const qualifiedDocumentRequestColumns = `d.id, d.client_id, d.title, d.description, d.required, d.active, d.sort_order, d.max_files, d.allowed_mime_types, d.created_at`

// ActiveDocumentIDs reports which of the given ids are active document
// requests belonging to the client. The caller diffs the result against its
// input to name invalid ids.
func (s *DocumentRequestsStore) ActiveDocumentIDs(ctx context.Context, clientID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	const q = `
		SELECT id FROM document_requests
		WHERE client_id = $1 AND active AND id = ANY($2::uuid[])
	`

	rows, err := s.pool.Query(ctx, q, clientID, ids)
	if err != nil {
		return nil, fmt.Errorf("check document ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(ids))
	for rows.Next() {
		var idUUID pgtype.UUID
		if err := rows.Scan(&idUUID); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		out[uuidOrEmpty(idUUID)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("check document ids: %w", err)
	}
	return out, nil
}

func (s *DocumentRequestsStore) SetActive(ctx context.Context, ownerID, documentID string, active bool) error {
	const q = `
		UPDATE document_requests d
		SET active = $3
		FROM clients c
		WHERE d.id = $1 AND c.id = d.client_id AND c.owner_id = $2
	`

	tag, err := s.pool.Exec(ctx, q, documentID, ownerID, active)
	if err != nil {
		return fmt.Errorf("set document request active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocumentRequest(row pgx.Row) (domain.DocumentRequest, error) {
	var (
		d          domain.DocumentRequest
		idUUID     pgtype.UUID
		clientUUID pgtype.UUID
		mimes      pgtype.FlatArray[string]
		createdAt  time.Time
	)
	if err := row.Scan(
		&idUUID,
		&clientUUID,
		&d.Title,
		&d.Description,
		&d.Required,
		&d.Active,
		&d.SortOrder,
		&d.MaxFiles,
		&mimes,
		&createdAt,
	); err != nil {
		return domain.DocumentRequest{}, err
	}
	d.ID = uuidOrEmpty(idUUID)
	d.ClientID = uuidOrEmpty(clientUUID)
	d.AllowedMIMEs = textArrayOrEmpty(mimes)
	d.CreatedAt = createdAt
	return d, nil
}
