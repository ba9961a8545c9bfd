package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VouchRepo struct {
	pool *pgxpool.Pool
}

func NewVouchRepo(pool *pgxpool.Pool) *VouchRepo {
	return &VouchRepo{pool: pool}
}

// Insert reports false when the voucher already vouched for the target.
func (r *VouchRepo) Insert(ctx context.Context, tx pgx.Tx, voucherID, targetID uuid.UUID, at time.Time) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	if voucherID == targetID {
		return false, fmt.Errorf("invalid vouch payload")
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO vouches (voucher_id, target_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (voucher_id, target_id) DO NOTHING
`, voucherID, targetID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("insert vouch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VouchRepo) Exists(ctx context.Context, tx pgx.Tx, voucherID, targetID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM vouches WHERE voucher_id = $1 AND target_id = $2)
`, voucherID, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check vouch: %w", err)
	}
	return exists, nil
}
