package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/errs"
)

type IdentityRepo struct {
	pool *pgxpool.Pool
}

type IdentityRecord struct {
	AccountID    uuid.UUID
	Email        string
	PasswordHash string
	TelegramID   *int64
}

func NewIdentityRepo(pool *pgxpool.Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

func (r *IdentityRepo) Create(ctx context.Context, tx pgx.Tx, rec IdentityRecord) error {
	if tx == nil {
		return errTxRequired
	}
	email := normalizeEmail(rec.Email)
	if rec.AccountID == uuid.Nil || email == "" || rec.PasswordHash == "" {
		return fmt.Errorf("invalid identity payload")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO auth_identities (account_id, email, password_hash, telegram_id, created_at)
VALUES ($1, $2, $3, $4, NOW())
`, rec.AccountID, email, rec.PasswordHash, rec.TelegramID); err != nil {
		if isUniqueViolation(err) {
			return ErrIdentityTaken
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (IdentityRecord, error) {
	return r.findOne(ctx, `WHERE email = $1`, normalizeEmail(email))
}

func (r *IdentityRepo) FindByTelegramID(ctx context.Context, telegramID int64) (IdentityRecord, error) {
	if telegramID <= 0 {
		return IdentityRecord{}, errs.ErrNotFound
	}
	return r.findOne(ctx, `WHERE telegram_id = $1`, telegramID)
}

func (r *IdentityRepo) findOne(ctx context.Context, where string, arg any) (IdentityRecord, error) {
	if r.pool == nil {
		return IdentityRecord{}, ErrNoDatabase
	}

	var rec IdentityRecord
	err := r.pool.QueryRow(ctx, `
SELECT account_id, email, password_hash, telegram_id
FROM auth_identities
`+where, arg).Scan(&rec.AccountID, &rec.Email, &rec.PasswordHash, &rec.TelegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IdentityRecord{}, errs.ErrNotFound
		}
		return IdentityRecord{}, fmt.Errorf("find identity: %w", err)
	}
	return rec, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
