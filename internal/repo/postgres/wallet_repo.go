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

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Debit moves coins out of the wallet and records the ledger row. The balance
// guard lives in the UPDATE so concurrent debits cannot overdraw.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE accounts
SET wallet_balance = wallet_balance - $2, updated_at = $3
WHERE id = $1 AND wallet_balance >= $2
RETURNING wallet_balance
`, accountID, amount, at.UTC()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("debit wallet: %w", err)
	}

	if err := insertLedger(ctx, tx, accountID, -amount, reason, refID, at); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE accounts
SET wallet_balance = wallet_balance + $2, updated_at = $3
WHERE id = $1
RETURNING wallet_balance
`, accountID, amount, at.UTC()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, fmt.Errorf("credit wallet: %w", err)
	}

	if err := insertLedger(ctx, tx, accountID, amount, reason, refID, at); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *WalletRepo) History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LedgerEvent, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, account_id, delta, reason, ref_id, created_at
FROM wallet_ledger
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet ledger: %w", err)
	}
	defer rows.Close()

	out := make([]model.LedgerEvent, 0, limit)
	for rows.Next() {
		var (
			ev     model.LedgerEvent
			reason string
		)
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.Delta, &reason, &ev.RefID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ev.Reason = enums.LedgerReason(reason)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return out, nil
}

func insertLedger(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, delta int64, reason enums.LedgerReason, refID string, at time.Time) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO wallet_ledger (account_id, delta, reason, ref_id, created_at)
VALUES ($1, $2, $3, $4, $5)
`, accountID, delta, string(reason), refID, at.UTC()); err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}
