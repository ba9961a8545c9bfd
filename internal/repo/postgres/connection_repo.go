package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

const connectionColumns = `
	id,
	requester_id,
	receiver_id,
	status,
	is_deleted,
	deleted_at,
	closed_reason,
	deleted_with_account,
	partner_notified,
	partner_notice_expires_at,
	accepted_at,
	created_at,
	updated_at`

type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

// Create relies on the live-pair unique index: a concurrent duplicate request
// surfaces as ErrAlreadyConnected.
func (r *ConnectionRepo) Create(ctx context.Context, tx pgx.Tx, conn model.Connection) (model.Connection, error) {
	if tx == nil {
		return model.Connection{}, errTxRequired
	}
	if conn.RequesterID == uuid.Nil || conn.ReceiverID == uuid.Nil || conn.RequesterID == conn.ReceiverID {
		return model.Connection{}, fmt.Errorf("invalid connection payload")
	}
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}

	created, err := scanConnection(tx.QueryRow(ctx, `
INSERT INTO connections (
	id,
	requester_id,
	receiver_id,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, 'pending', $4, $4)
RETURNING `+connectionColumns, conn.ID, conn.RequesterID, conn.ReceiverID, conn.CreatedAt.UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Connection{}, errs.ErrAlreadyConnected
		}
		return model.Connection{}, fmt.Errorf("insert connection: %w", err)
	}
	return created, nil
}

func (r *ConnectionRepo) Get(ctx context.Context, id uuid.UUID) (model.Connection, error) {
	if r.pool == nil {
		return model.Connection{}, ErrNoDatabase
	}

	conn, err := scanConnection(r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Connection{}, errs.ErrNotFound
		}
		return model.Connection{}, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Connection, error) {
	if tx == nil {
		return model.Connection{}, errTxRequired
	}

	conn, err := scanConnection(tx.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Connection{}, errs.ErrNotFound
		}
		return model.Connection{}, fmt.Errorf("lock connection: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepo) FindLiveBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error) {
	return r.findBetween(ctx, tx, a, b, `AND NOT is_deleted AND status IN ('pending', 'accepted')`)
}

// FindLatestBetween returns the newest row for the pair whatever its state.
func (r *ConnectionRepo) FindLatestBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error) {
	return r.findBetween(ctx, tx, a, b, ``)
}

func (r *ConnectionRepo) findBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, filter string) (model.Connection, bool, error) {
	if tx == nil {
		return model.Connection{}, false, errTxRequired
	}

	conn, err := scanConnection(tx.QueryRow(ctx, `
SELECT `+connectionColumns+`
FROM connections
WHERE ((requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1))
`+filter+`
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Connection{}, false, nil
		}
		return model.Connection{}, false, fmt.Errorf("find connection between accounts: %w", err)
	}
	return conn, true, nil
}

func (r *ConnectionRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enums.ConnectionStatus, at time.Time) (model.Connection, error) {
	if tx == nil {
		return model.Connection{}, errTxRequired
	}

	conn, err := scanConnection(tx.QueryRow(ctx, `
UPDATE connections
SET
	status = $2,
	accepted_at = CASE WHEN $2 = 'accepted' THEN $3 ELSE accepted_at END,
	updated_at = $3
WHERE id = $1 AND status = 'pending' AND NOT is_deleted
RETURNING `+connectionColumns, id, string(status), at.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Connection{}, errs.ErrInvalidState
		}
		return model.Connection{}, fmt.Errorf("set connection status: %w", err)
	}
	return conn, nil
}

func (r *ConnectionRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason enums.ClosedReason, at time.Time) error {
	if tx == nil {
		return errTxRequired
	}

	if _, err := tx.Exec(ctx, `
UPDATE connections
SET
	is_deleted = TRUE,
	deleted_at = $3,
	closed_reason = $2,
	updated_at = $3
WHERE id = $1 AND NOT is_deleted
`, id, string(reason), at.UTC()); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (r *ConnectionRepo) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Connection, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+connectionColumns+`
FROM connections
WHERE (requester_id = $1 OR receiver_id = $1) AND NOT is_deleted
ORDER BY updated_at DESC
LIMIT $2
`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := make([]model.Connection, 0, limit)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}

// ListPendingNotices returns partners still to be told that the other side is
// leaving. Expired notices are dropped silently.
func (r *ConnectionRepo) ListPendingNotices(ctx context.Context, now time.Time, limit int) ([]model.PartnerNotice, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	id,
	CASE WHEN requester_id = deleted_with_account THEN receiver_id ELSE requester_id END,
	deleted_with_account,
	partner_notice_expires_at
FROM connections
WHERE NOT partner_notified
  AND deleted_with_account IS NOT NULL
  AND partner_notice_expires_at > $1
ORDER BY partner_notice_expires_at
LIMIT $2
`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list partner notices: %w", err)
	}
	defer rows.Close()

	out := make([]model.PartnerNotice, 0, limit)
	for rows.Next() {
		var n model.PartnerNotice
		if err := rows.Scan(&n.ConnectionID, &n.RecipientID, &n.DepartingID, &n.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan partner notice: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partner notices: %w", err)
	}
	return out, nil
}

// MarkPartnerNotified runs in the transaction that records the notice, so a
// committed notification always leaves the connection marked.
func (r *ConnectionRepo) MarkPartnerNotified(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}

	if _, err := tx.Exec(ctx, `
UPDATE connections SET partner_notified = TRUE WHERE id = $1
`, id); err != nil {
		return fmt.Errorf("mark partner notified: %w", err)
	}
	return nil
}

func scanConnection(row pgx.Row) (model.Connection, error) {
	var (
		conn   model.Connection
		status string
		closed *string
	)
	if err := row.Scan(
		&conn.ID,
		&conn.RequesterID,
		&conn.ReceiverID,
		&status,
		&conn.IsDeleted,
		&conn.DeletedAt,
		&closed,
		&conn.DeletedWithAccount,
		&conn.PartnerNotified,
		&conn.PartnerNoticeExpiresAt,
		&conn.AcceptedAt,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	); err != nil {
		return model.Connection{}, err
	}

	conn.Status = enums.ConnectionStatus(status)
	if closed != nil {
		reason := enums.ClosedReason(*closed)
		conn.ClosedReason = &reason
	}
	return conn, nil
}
