package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, tx pgx.Tx, n model.Notification) (model.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	payload, err := marshalAnyPayload(n.Payload)
	if err != nil {
		return model.Notification{}, err
	}

	const query = `
INSERT INTO notifications (id, recipient_id, kind, payload, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
`
	args := []any{n.ID, n.RecipientID, string(n.Kind), payload, n.CreatedAt.UTC()}

	// The partner-notice job writes outside any business transaction.
	if tx != nil {
		_, err = tx.Exec(ctx, query, args...)
	} else if r.pool != nil {
		_, err = r.pool.Exec(ctx, query, args...)
	} else {
		return model.Notification{}, ErrNoDatabase
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Notification, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, recipient_id, kind, payload, read_at, is_deleted, deleted_at, created_at
FROM notifications
WHERE recipient_id = $1 AND NOT is_deleted
ORDER BY created_at DESC
LIMIT $2
`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0, limit)
	for rows.Next() {
		var (
			n          model.Notification
			kind       string
			payloadRaw []byte
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &kind, &payloadRaw, &n.ReadAt, &n.IsDeleted, &n.DeletedAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = enums.NotificationKind(kind)
		n.Payload = decodeAnyPayload(payloadRaw)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) error {
	if r.pool == nil {
		return ErrNoDatabase
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE notifications
SET read_at = COALESCE(read_at, $3)
WHERE id = $1 AND recipient_id = $2 AND NOT is_deleted
`, id, recipientID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
