package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

const accountColumns = `
	id,
	display_name,
	gender,
	intent,
	bio,
	avatar_key,
	telegram_chat_id,
	role,
	status,
	deleted_at,
	deletion_grace_until,
	deleted_by,
	deleted_reason,
	banned_at,
	banned_by,
	ban_reason,
	is_gold,
	slots_limit,
	slots_used,
	wallet_balance,
	vouches_count,
	created_at,
	updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

// ProfilePatch carries optional profile edits. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName    *string
	Intent         *enums.Intent
	Bio            *string
	TelegramChatID *int64
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, acc model.Account) error {
	if tx == nil {
		return errTxRequired
	}
	if acc.ID == uuid.Nil || strings.TrimSpace(acc.DisplayName) == "" {
		return fmt.Errorf("invalid account payload")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO accounts (
	id,
	display_name,
	gender,
	intent,
	bio,
	role,
	status,
	slots_limit,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $8, $8)
`, acc.ID, acc.DisplayName, string(acc.Gender), string(acc.Intent), acc.Bio, string(acc.Role), acc.SlotsLimit, acc.CreatedAt); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *AccountRepo) Get(ctx context.Context, id uuid.UUID) (model.Account, error) {
	if r.pool == nil {
		return model.Account{}, ErrNoDatabase
	}

	acc, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, errs.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// GetForUpdate locks the account row for the rest of tx. Every lifecycle
// transition and every slot or wallet change goes through this lock.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Account, error) {
	if tx == nil {
		return model.Account{}, errTxRequired
	}

	acc, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, errs.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("lock account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (model.Account, error) {
	if r.pool == nil {
		return model.Account{}, ErrNoDatabase
	}

	var intent *string
	if patch.Intent != nil {
		v := string(*patch.Intent)
		intent = &v
	}

	acc, err := scanAccount(r.pool.QueryRow(ctx, `
UPDATE accounts
SET
	display_name = COALESCE($2, display_name),
	intent = COALESCE($3, intent),
	bio = COALESCE($4, bio),
	telegram_chat_id = COALESCE($5, telegram_chat_id),
	updated_at = NOW()
WHERE id = $1 AND status = 'active'
RETURNING `+accountColumns, id, patch.DisplayName, intent, patch.Bio, patch.TelegramChatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, errs.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return acc, nil
}

func (r *AccountRepo) SetAvatarKey(ctx context.Context, id uuid.UUID, key string) (string, error) {
	if r.pool == nil {
		return "", ErrNoDatabase
	}

	var previous string
	err := r.pool.QueryRow(ctx, `
UPDATE accounts AS a
SET avatar_key = $2, updated_at = NOW()
FROM (SELECT id, avatar_key FROM accounts WHERE id = $1) AS old
WHERE a.id = old.id AND a.status = 'active'
RETURNING old.avatar_key
`, id, key).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", fmt.Errorf("set avatar key: %w", err)
	}
	return previous, nil
}

func (r *AccountRepo) MarkSoftDeleted(
	ctx context.Context,
	tx pgx.Tx,
	id uuid.UUID,
	deletedAt, graceUntil time.Time,
	by enums.DeletedBy,
	reason string,
) error {
	if tx == nil {
		return errTxRequired
	}

	tag, err := tx.Exec(ctx, `
UPDATE accounts
SET
	status = 'soft_deleted',
	deleted_at = $2,
	deletion_grace_until = $3,
	deleted_by = $4,
	deleted_reason = $5,
	updated_at = NOW()
WHERE id = $1 AND status = 'active'
`, id, deletedAt.UTC(), graceUntil.UTC(), string(by), strings.TrimSpace(reason))
	if err != nil {
		return fmt.Errorf("mark account soft deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvalidState
	}
	return nil
}

func (r *AccountRepo) ClearDeletion(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}

	tag, err := tx.Exec(ctx, `
UPDATE accounts
SET
	status = 'active',
	deleted_at = NULL,
	deletion_grace_until = NULL,
	deleted_by = NULL,
	deleted_reason = '',
	updated_at = NOW()
WHERE id = $1 AND status = 'soft_deleted'
`, id)
	if err != nil {
		return fmt.Errorf("clear account deletion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvalidState
	}
	return nil
}

func (r *AccountRepo) MarkBanned(ctx context.Context, tx pgx.Tx, id, moderatorID uuid.UUID, reason string, at time.Time) error {
	if tx == nil {
		return errTxRequired
	}

	tag, err := tx.Exec(ctx, `
UPDATE accounts
SET
	status = 'banned',
	banned_at = $2,
	banned_by = $3,
	ban_reason = $4,
	updated_at = NOW()
WHERE id = $1 AND status = 'active'
`, id, at.UTC(), moderatorID, strings.TrimSpace(reason))
	if err != nil {
		return fmt.Errorf("mark account banned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvalidState
	}
	return nil
}

// ConsumeSlot is guarded in SQL so two racing requests at the boundary cannot
// both pass.
func (r *AccountRepo) ConsumeSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}

	var used int
	err := tx.QueryRow(ctx, `
UPDATE accounts
SET slots_used = slots_used + 1, updated_at = NOW()
WHERE id = $1 AND slots_used < slots_limit
RETURNING slots_used
`, id).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrSlotsFull
		}
		return 0, fmt.Errorf("consume slot: %w", err)
	}
	return used, nil
}

func (r *AccountRepo) RaiseSlotsLimit(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}

	var limit int
	err := tx.QueryRow(ctx, `
UPDATE accounts
SET slots_limit = slots_limit + 1, updated_at = NOW()
WHERE id = $1
RETURNING slots_limit
`, id).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, fmt.Errorf("raise slots limit: %w", err)
	}
	return limit, nil
}

func (r *AccountRepo) IncrementVouches(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}

	var count int
	err := tx.QueryRow(ctx, `
UPDATE accounts
SET vouches_count = vouches_count + 1, updated_at = NOW()
WHERE id = $1
RETURNING vouches_count
`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, fmt.Errorf("increment vouches: %w", err)
	}
	return count, nil
}

func (r *AccountRepo) SetGold(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}

	if _, err := tx.Exec(ctx, `
UPDATE accounts SET is_gold = TRUE, updated_at = NOW() WHERE id = $1
`, id); err != nil {
		return fmt.Errorf("set gold: %w", err)
	}
	return nil
}

// ListExpired returns soft-deleted accounts whose grace window has closed.
func (r *AccountRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM accounts
WHERE status = 'soft_deleted' AND deletion_grace_until <= $1
ORDER BY deletion_grace_until
LIMIT $2
`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired accounts: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired accounts: %w", err)
	}
	return ids, nil
}

// LockExpired re-checks expiry under a row lock. A row another sweeper holds
// is skipped rather than waited on; ok is false in that case and when the
// account is gone or no longer expired.
func (r *AccountRepo) LockExpired(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (model.Account, bool, error) {
	if tx == nil {
		return model.Account{}, false, errTxRequired
	}

	acc, err := scanAccount(tx.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE id = $1 AND status = 'soft_deleted' AND deletion_grace_until <= $2
FOR UPDATE SKIP LOCKED
`, id, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, false, nil
		}
		return model.Account{}, false, fmt.Errorf("lock expired account: %w", err)
	}
	return acc, true, nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		acc       model.Account
		gender    string
		intent    string
		role      string
		status    string
		deletedBy *string
	)
	if err := row.Scan(
		&acc.ID,
		&acc.DisplayName,
		&gender,
		&intent,
		&acc.Bio,
		&acc.AvatarKey,
		&acc.TelegramChatID,
		&role,
		&status,
		&acc.DeletedAt,
		&acc.DeletionGraceUntil,
		&deletedBy,
		&acc.DeletedReason,
		&acc.BannedAt,
		&acc.BannedBy,
		&acc.BanReason,
		&acc.IsGold,
		&acc.SlotsLimit,
		&acc.SlotsUsed,
		&acc.WalletBalance,
		&acc.VouchesCount,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	); err != nil {
		return model.Account{}, err
	}

	acc.Gender = enums.Gender(gender)
	acc.Intent = enums.Intent(intent)
	acc.Role = enums.Role(role)
	acc.Status = enums.AccountStatus(status)
	if deletedBy != nil {
		by := enums.DeletedBy(*deletedBy)
		acc.DeletedBy = &by
	}
	return acc, nil
}
