package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuvault/internal/domain"
	"docuvault/internal/duedate"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

const sessionColumns = `id, client_id, template_id, status, token, sent_via, opened_at, due_on, finalized_at, expires_at, reminder_14d_sent_at, accepted_confirmation_sent_at`

// CreateSession inserts the session row and one join row per requested
// document in a single transaction, so a join-row failure leaves nothing
// behind. A concurrent open session for the same (client, template) trips
// the partial unique index and surfaces as ErrOpenSessionExists.
func (s *SessionsStore) CreateSession(ctx context.Context, clientID, templateID, token string, sentVia domain.SentVia, dueOn duedate.Date, documentIDs []string) (domain.SubmissionSession, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.SubmissionSession{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertSession = `
		INSERT INTO submission_sessions (client_id, template_id, status, token, sent_via, due_on)
		VALUES ($1, $2, 'open', $3, $4, $5)
		RETURNING ` + sessionColumns

	row := tx.QueryRow(ctx, insertSession, clientID, nullIfEmpty(templateID), token, sentVia, dueOn.Time())
	sess, err := scanSession(row)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.ConstraintName == "submission_sessions_open_template_uq" {
			return domain.SubmissionSession{}, domain.ErrOpenSessionExists
		}
		return domain.SubmissionSession{}, fmt.Errorf("insert session: %w", err)
	}

	const insertDoc = `INSERT INTO submission_session_documents (session_id, document_request_id) VALUES ($1, $2)`
	for _, docID := range documentIDs {
		if _, err := tx.Exec(ctx, insertDoc, sess.ID, docID); err != nil {
			return domain.SubmissionSession{}, fmt.Errorf("insert session document: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.ConstraintName == "submission_sessions_open_template_uq" {
			return domain.SubmissionSession{}, domain.ErrOpenSessionExists
		}
		return domain.SubmissionSession{}, fmt.Errorf("commit tx: %w", err)
	}
	sess.DocumentIDs = append([]string(nil), documentIDs...)
	return sess, nil
}

func (s *SessionsStore) OpenSessionExists(ctx context.Context, clientID, templateID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM submission_sessions
			WHERE client_id = $1 AND template_id = $2 AND status = 'open'
		)
	`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, clientID, templateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("open session exists: %w", err)
	}
	return exists, nil
}

func (s *SessionsStore) GetSessionForOwner(ctx context.Context, ownerID, sessionID string) (domain.SubmissionSession, error) {
	const q = `
		SELECT ` + qualifiedSessionColumns + `
		FROM submission_sessions s
		JOIN clients c ON c.id = s.client_id
		WHERE s.id = $1 AND c.owner_id = $2
	`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubmissionSession{}, domain.ErrNotFound
		}
		return domain.SubmissionSession{}, fmt.Errorf("get session: %w", err)
	}

	sess.DocumentIDs, err = s.SessionDocumentIDs(ctx, sess.ID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	return sess, nil
}

func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.SubmissionSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM submission_sessions WHERE id = $1`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubmissionSession{}, domain.ErrNotFound
		}
		return domain.SubmissionSession{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetOpenSessionByToken is the portal lookup. The token is the capability;
// a closed session or an unknown token both come back as ErrNotFound so the
// portal never discloses which it was.
func (s *SessionsStore) GetOpenSessionByToken(ctx context.Context, token string) (domain.SubmissionSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM submission_sessions WHERE token = $1 AND status = 'open'`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubmissionSession{}, domain.ErrNotFound
		}
		return domain.SubmissionSession{}, fmt.Errorf("get session by token: %w", err)
	}

	sess.DocumentIDs, err = s.SessionDocumentIDs(ctx, sess.ID)
	if err != nil {
		return domain.SubmissionSession{}, err
	}
	return sess, nil
}

func (s *SessionsStore) SessionDocumentIDs(ctx context.Context, sessionID string) ([]string, error) {
	const q = `SELECT document_request_id FROM submission_session_documents WHERE session_id = $1`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session document ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var idUUID pgtype.UUID
		if err := rows.Scan(&idUUID); err != nil {
			return nil, fmt.Errorf("scan session document id: %w", err)
		}
		out = append(out, uuidOrEmpty(idUUID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session document ids: %w", err)
	}
	return out, nil
}

func (s *SessionsStore) RequestedDocumentCount(ctx context.Context, sessionID string) (int, error) {
	const q = `SELECT COUNT(*)::int FROM submission_session_documents WHERE session_id = $1`

	var n int
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("requested document count: %w", err)
	}
	return n, nil
}

func (s *SessionsStore) SessionRequestsDocument(ctx context.Context, sessionID, documentID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM submission_session_documents
			WHERE session_id = $1 AND document_request_id = $2
		)
	`
	var ok bool
	if err := s.pool.QueryRow(ctx, q, sessionID, documentID).Scan(&ok); err != nil {
		return false, fmt.Errorf("session requests document: %w", err)
	}
	return ok, nil
}

// FinalizeIfOpen flips OPEN to FINALIZED. The client predicate scopes the
// update to the aggregate the caller was authorized against (owner lookup on
// the staff path, token lookup on the portal path). Zero rows updated means
// another caller finalized first (or the session is closed); that is not an
// error.
func (s *SessionsStore) FinalizeIfOpen(ctx context.Context, sessionID, clientID string, when time.Time) (bool, error) {
	const q = `
		UPDATE submission_sessions
		SET status = 'finalized', finalized_at = $3
		WHERE id = $1 AND client_id = $2 AND status = 'open'
	`

	tag, err := s.pool.Exec(ctx, q, sessionID, clientID, when)
	if err != nil {
		return false, fmt.Errorf("finalize session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SessionsStore) ExpireSession(ctx context.Context, ownerID, sessionID string, when time.Time) error {
	const q = `
		UPDATE submission_sessions s
		SET status = 'expired', expires_at = $3
		FROM clients c
		WHERE s.id = $1 AND s.status = 'open' AND c.id = s.client_id AND c.owner_id = $2
	`

	tag, err := s.pool.Exec(ctx, q, sessionID, ownerID, when)
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireOpenFreeform supersedes any open free-form sessions for a client
// when a new free-form request replaces them.
func (s *SessionsStore) ExpireOpenFreeform(ctx context.Context, clientID string, when time.Time) (int, error) {
	const q = `
		UPDATE submission_sessions
		SET status = 'expired', expires_at = $2
		WHERE client_id = $1 AND status = 'open' AND template_id IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, clientID, when)
	if err != nil {
		return 0, fmt.Errorf("expire freeform sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListOpenDueOn returns open sessions due on the given date that have not
// had their 14-day reminder handled yet.
func (s *SessionsStore) ListOpenDueOn(ctx context.Context, due duedate.Date, limit int) ([]domain.SubmissionSession, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	const q = `
		SELECT ` + sessionColumns + `
		FROM submission_sessions
		WHERE status = 'open' AND due_on = $1 AND reminder_14d_sent_at IS NULL
		ORDER BY opened_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, due.Time(), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions due on: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions due on: %w", err)
	}
	return out, nil
}

// MarkReminder14DSent stamps the reminder column only if it is still null.
// False means someone else already handled the session.
func (s *SessionsStore) MarkReminder14DSent(ctx context.Context, sessionID string, when time.Time) (bool, error) {
	const q = `
		UPDATE submission_sessions
		SET reminder_14d_sent_at = $2
		WHERE id = $1 AND reminder_14d_sent_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, sessionID, when)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAcceptedConfirmationSent is the one-shot gate for the "all documents
// accepted" notification.
func (s *SessionsStore) MarkAcceptedConfirmationSent(ctx context.Context, sessionID string, when time.Time) (bool, error) {
	const q = `
		UPDATE submission_sessions
		SET accepted_confirmation_sent_at = $2
		WHERE id = $1 AND accepted_confirmation_sent_at IS NULL
	`

	tag, err := s.pool.Exec(ctx, q, sessionID, when)
	if err != nil {
		return false, fmt.Errorf("mark confirmation sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const qualifiedSessionColumns = `s.id, s.client_id, s.template_id, s.status, s.token, s.sent_via, s.opened_at, s.due_on, s.finalized_at, s.expires_at, s.reminder_14d_sent_at, s.accepted_confirmation_sent_at`

func scanSession(row pgx.Row) (domain.SubmissionSession, error) {
	var (
		sess         domain.SubmissionSession
		idUUID       pgtype.UUID
		clientUUID   pgtype.UUID
		templateUUID pgtype.UUID
		status       string
		sentVia      string
		openedAt     time.Time
		dueOn        time.Time
		finalizedAt  pgtype.Timestamptz
		expiresAt    pgtype.Timestamptz
		reminderAt   pgtype.Timestamptz
		confirmedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&idUUID,
		&clientUUID,
		&templateUUID,
		&status,
		&sess.Token,
		&sentVia,
		&openedAt,
		&dueOn,
		&finalizedAt,
		&expiresAt,
		&reminderAt,
		&confirmedAt,
	); err != nil {
		return domain.SubmissionSession{}, err
	}
	sess.ID = uuidOrEmpty(idUUID)
	sess.ClientID = uuidOrEmpty(clientUUID)
	sess.TemplateID = uuidOrEmpty(templateUUID)
	sess.Status = domain.SessionStatus(status)
	sess.SentVia = domain.SentVia(sentVia)
	sess.OpenedAt = openedAt
	sess.DueOn = duedate.FromTime(dueOn)
	sess.FinalizedAt = timestamptzPtr(finalizedAt)
	sess.ExpiresAt = timestamptzPtr(expiresAt)
	sess.Reminder14DSentAt = timestamptzPtr(reminderAt)
	sess.AcceptedConfirmationSentAt = timestamptzPtr(confirmedAt)
	return sess, nil
}
