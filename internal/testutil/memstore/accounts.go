package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

type Accounts struct {
	s *Store
}

// Seed inserts acc as-is, filling only missing ids and timestamps.
func (r *Accounts) Seed(acc model.Account) model.Account {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.Status == "" {
		acc.Status = enums.AccountStatusActive
	}
	if acc.Role == "" {
		acc.Role = enums.RoleUser
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
		acc.UpdatedAt = acc.CreatedAt
	}
	r.s.st.accounts[acc.ID] = acc
	return acc
}

func (r *Accounts) Create(ctx context.Context, _ pgx.Tx, acc model.Account) error {
	defer r.s.lock(ctx)()

	if acc.ID == uuid.Nil || strings.TrimSpace(acc.DisplayName) == "" {
		return fmt.Errorf("invalid account payload")
	}
	if _, exists := r.s.st.accounts[acc.ID]; exists {
		return fmt.Errorf("account %s already exists", acc.ID)
	}
	acc.Status = enums.AccountStatusActive
	acc.UpdatedAt = acc.CreatedAt
	r.s.st.accounts[acc.ID] = acc
	return nil
}

func (r *Accounts) Get(ctx context.Context, id uuid.UUID) (model.Account, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok {
		return model.Account{}, errs.ErrNotFound
	}
	return acc, nil
}

func (r *Accounts) GetForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (model.Account, error) {
	if err := r.s.fail("accounts.get_for_update"); err != nil {
		return model.Account{}, err
	}
	return r.Get(ctx, id)
}

func (r *Accounts) UpdateProfile(ctx context.Context, id uuid.UUID, patch pgrepo.ProfilePatch) (model.Account, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusActive {
		return model.Account{}, errs.ErrNotFound
	}
	if patch.DisplayName != nil {
		acc.DisplayName = *patch.DisplayName
	}
	if patch.Intent != nil {
		acc.Intent = *patch.Intent
	}
	if patch.Bio != nil {
		acc.Bio = *patch.Bio
	}
	if patch.TelegramChatID != nil {
		v := *patch.TelegramChatID
		acc.TelegramChatID = &v
	}
	acc.UpdatedAt = time.Now().UTC()
	r.s.st.accounts[id] = acc
	return acc, nil
}

func (r *Accounts) SetAvatarKey(ctx context.Context, id uuid.UUID, key string) (string, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusActive {
		return "", errs.ErrNotFound
	}
	previous := acc.AvatarKey
	acc.AvatarKey = key
	r.s.st.accounts[id] = acc
	return previous, nil
}

func (r *Accounts) MarkSoftDeleted(ctx context.Context, _ pgx.Tx, id uuid.UUID, deletedAt, graceUntil time.Time, by enums.DeletedBy, reason string) error {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusActive {
		return errs.ErrInvalidState
	}
	deletedAt, graceUntil = deletedAt.UTC(), graceUntil.UTC()
	acc.Status = enums.AccountStatusSoftDeleted
	acc.DeletedAt = &deletedAt
	acc.DeletionGraceUntil = &graceUntil
	acc.DeletedBy = &by
	acc.DeletedReason = strings.TrimSpace(reason)
	acc.UpdatedAt = deletedAt
	r.s.st.accounts[id] = acc
	return nil
}

func (r *Accounts) ClearDeletion(ctx context.Context, _ pgx.Tx, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusSoftDeleted {
		return errs.ErrInvalidState
	}
	acc.Status = enums.AccountStatusActive
	acc.DeletedAt = nil
	acc.DeletionGraceUntil = nil
	acc.DeletedBy = nil
	acc.DeletedReason = ""
	r.s.st.accounts[id] = acc
	return nil
}

func (r *Accounts) MarkBanned(ctx context.Context, _ pgx.Tx, id, moderatorID uuid.UUID, reason string, at time.Time) error {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusActive {
		return errs.ErrInvalidState
	}
	at = at.UTC()
	acc.Status = enums.AccountStatusBanned
	acc.BannedAt = &at
	acc.BannedBy = &moderatorID
	acc.BanReason = strings.TrimSpace(reason)
	r.s.st.accounts[id] = acc
	return nil
}

func (r *Accounts) ConsumeSlot(ctx context.Context, _ pgx.Tx, id uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.SlotsUsed >= acc.SlotsLimit {
		return 0, errs.ErrSlotsFull
	}
	acc.SlotsUsed++
	r.s.st.accounts[id] = acc
	return acc.SlotsUsed, nil
}

func (r *Accounts) RaiseSlotsLimit(ctx context.Context, _ pgx.Tx, id uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	acc.SlotsLimit++
	r.s.st.accounts[id] = acc
	return acc.SlotsLimit, nil
}

func (r *Accounts) IncrementVouches(ctx context.Context, _ pgx.Tx, id uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	acc.VouchesCount++
	r.s.st.accounts[id] = acc
	return acc.VouchesCount, nil
}

func (r *Accounts) SetGold(ctx context.Context, _ pgx.Tx, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok {
		return nil
	}
	acc.IsGold = true
	r.s.st.accounts[id] = acc
	return nil
}

func (r *Accounts) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 {
		limit = 100
	}
	expired := make([]model.Account, 0)
	for _, acc := range r.s.st.accounts {
		if acc.Status == enums.AccountStatusSoftDeleted && acc.DeletionGraceUntil != nil && !acc.DeletionGraceUntil.After(now) {
			expired = append(expired, acc)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].DeletionGraceUntil.Before(*expired[j].DeletionGraceUntil)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, acc := range expired {
		ids = append(ids, acc.ID)
	}
	return ids, nil
}

func (r *Accounts) LockExpired(ctx context.Context, _ pgx.Tx, id uuid.UUID, now time.Time) (model.Account, bool, error) {
	defer r.s.lock(ctx)()

	acc, ok := r.s.st.accounts[id]
	if !ok || acc.Status != enums.AccountStatusSoftDeleted || acc.DeletionGraceUntil == nil || acc.DeletionGraceUntil.After(now) {
		return model.Account{}, false, nil
	}
	return acc, true, nil
}

type Identities struct {
	s *Store
}

func (r *Identities) Create(ctx context.Context, _ pgx.Tx, rec pgrepo.IdentityRecord) error {
	defer r.s.lock(ctx)()

	email := strings.ToLower(strings.TrimSpace(rec.Email))
	if _, exists := r.s.st.identities[email]; exists {
		return pgrepo.ErrIdentityTaken
	}
	if rec.TelegramID != nil {
		for _, existing := range r.s.st.identities {
			if existing.TelegramID != nil && *existing.TelegramID == *rec.TelegramID {
				return pgrepo.ErrIdentityTaken
			}
		}
	}
	rec.Email = email
	r.s.st.identities[email] = rec
	return nil
}

func (r *Identities) FindByEmail(ctx context.Context, email string) (pgrepo.IdentityRecord, error) {
	defer r.s.lock(ctx)()

	rec, ok := r.s.st.identities[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return pgrepo.IdentityRecord{}, errs.ErrNotFound
	}
	return rec, nil
}

func (r *Identities) FindByTelegramID(ctx context.Context, telegramID int64) (pgrepo.IdentityRecord, error) {
	defer r.s.lock(ctx)()

	for _, rec := range r.s.st.identities {
		if rec.TelegramID != nil && *rec.TelegramID == telegramID {
			return rec, nil
		}
	}
	return pgrepo.IdentityRecord{}, errs.ErrNotFound
}
