package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Upsert(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, reason string, at time.Time) error {
	if actorID == uuid.Nil || targetID == uuid.Nil || actorID == targetID {
		return fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return errTxRequired
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO blocks (
	actor_id,
	target_id,
	reason,
	created_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (actor_id, target_id) DO UPDATE SET
	reason = EXCLUDED.reason
`, actorID, targetID, strings.TrimSpace(reason), at.UTC()); err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}

	return nil
}

// ExistsEither reports a block in either direction between the two accounts.
func (r *BlockRepo) ExistsEither(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM blocks
	WHERE (actor_id = $1 AND target_id = $2) OR (actor_id = $2 AND target_id = $1)
)
`, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}
