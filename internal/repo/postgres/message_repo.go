package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Insert(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error) {
	if tx == nil {
		return model.Message{}, errTxRequired
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO messages (id, connection_id, sender_id, receiver_id, kind, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, msg.ID, msg.ConnectionID, msg.SenderID, msg.ReceiverID, string(msg.Kind), msg.Content, msg.CreatedAt.UTC()); err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (r *MessageRepo) CountBySender(ctx context.Context, tx pgx.Tx, connectionID, senderID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}

	var count int
	if err := tx.QueryRow(ctx, `
SELECT COUNT(*) FROM messages WHERE connection_id = $1 AND sender_id = $2
`, connectionID, senderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sender messages: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) HasContactCard(ctx context.Context, tx pgx.Tx, connectionID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM messages WHERE connection_id = $1 AND kind = 'contact_card')
`, connectionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check contact card: %w", err)
	}
	return exists, nil
}

func (r *MessageRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]model.Message, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, connection_id, sender_id, receiver_id, kind, content, created_at
FROM messages
WHERE connection_id = $1
ORDER BY created_at
LIMIT $2
`, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var (
			msg  model.Message
			kind string
		)
		if err := rows.Scan(&msg.ID, &msg.ConnectionID, &msg.SenderID, &msg.ReceiverID, &kind, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = enums.MessageKind(kind)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
