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

type ClientsStore struct {
	pool *pgxpool.Pool
}

func NewClientsStore(pool *pgxpool.Pool) *ClientsStore {
	return &ClientsStore{pool: pool}
}

const clientColumns = `id, owner_id, name, email, active, portal_enabled, due_day, due_timezone, created_at, updated_at`

func (s *ClientsStore) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	const q = `
		INSERT INTO clients (owner_id, name, email, active, portal_enabled, due_day, due_timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + clientColumns

	row := s.pool.QueryRow(ctx, q, c.OwnerID, c.Name, c.Email, c.Active, c.PortalEnabled, c.DueDay, c.DueTimezone)
	out, err := scanClient(row)
	if err != nil {
		return domain.Client{}, fmt.Errorf("create client: %w", err)
	}
	return out, nil
}

func (s *ClientsStore) GetClient(ctx context.Context, ownerID, clientID string) (domain.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND owner_id = $2`

	out, err := scanClient(s.pool.QueryRow(ctx, q, clientID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, domain.ErrNotFound
		}
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return out, nil
}

// GetClientByID is the system-scoped read used by the schedulers and the
// notification path. Staff-facing code goes through GetClient.
func (s *ClientsStore) GetClientByID(ctx context.Context, clientID string) (domain.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	out, err := scanClient(s.pool.QueryRow(ctx, q, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, domain.ErrNotFound
		}
		return domain.Client{}, fmt.Errorf("get client by id: %w", err)
	}
	return out, nil
}

func (s *ClientsStore) ListClients(ctx context.Context, ownerID string, limit int) ([]domain.Client, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE owner_id = $1 ORDER BY name ASC LIMIT $2`

	rows, err := s.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return out, nil
}

func (s *ClientsStore) UpdateClient(ctx context.Context, ownerID string, c domain.Client) (domain.Client, error) {
	const q = `
		UPDATE clients
		SET name = $3, email = $4, active = $5, portal_enabled = $6, due_day = $7, due_timezone = $8, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + clientColumns

	row := s.pool.QueryRow(ctx, q, c.ID, ownerID, c.Name, c.Email, c.Active, c.PortalEnabled, c.DueDay, c.DueTimezone)
	out, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, domain.ErrNotFound
		}
		return domain.Client{}, fmt.Errorf("update client: %w", err)
	}
	return out, nil
}

func scanClient(row pgx.Row) (domain.Client, error) {
	var (
		c         domain.Client
		idUUID    pgtype.UUID
		ownerUUID pgtype.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&idUUID,
		&ownerUUID,
		&c.Name,
		&c.Email,
		&c.Active,
		&c.PortalEnabled,
		&c.DueDay,
		&c.DueTimezone,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Client{}, err
	}
	c.ID = uuidOrEmpty(idUUID)
	c.OwnerID = uuidOrEmpty(ownerUUID)
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	return c, nil
}
