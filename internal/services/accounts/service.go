package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

const (
	maxDisplayNameLen = 64
	maxBioLen         = 500
)

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch pgrepo.ProfilePatch) (model.Account, error)
}

type AvatarURLs interface {
	URL(key string) string
}

type Service struct {
	store   AccountStore
	avatars AvatarURLs
	now     func() time.Time
}

type Slots struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type Lifecycle struct {
	Status         enums.AccountStatus `json:"status"`
	GraceUntil     *time.Time          `json:"grace_until,omitempty"`
	GraceRemaining int64               `json:"grace_remaining_sec,omitempty"`
}

// View is what the owner sees about their own account.
type View struct {
	ID           uuid.UUID    `json:"id"`
	DisplayName  string       `json:"display_name"`
	Gender       enums.Gender `json:"gender"`
	Intent       enums.Intent `json:"intent"`
	Bio          string       `json:"bio"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Role         enums.Role   `json:"role"`
	IsGold       bool         `json:"is_gold"`
	Slots        Slots        `json:"slots"`
	Balance      int64        `json:"wallet_balance"`
	VouchesCount int          `json:"vouches_count"`
	Lifecycle    Lifecycle    `json:"lifecycle"`
	CreatedAt    time.Time    `json:"created_at"`
}

type UpdateInput struct {
	DisplayName    *string
	Intent         *string
	Bio            *string
	TelegramChatID *int64
}

func NewService(store AccountStore, avatars AvatarURLs) *Service {
	return &Service{
		store:   store,
		avatars: avatars,
		now:     time.Now,
	}
}

// Me returns the owner's view. Soft-deleted accounts can still read it so the
// client can offer a restore.
func (s *Service) Me(ctx context.Context, accountID uuid.UUID) (View, error) {
	if accountID == uuid.Nil {
		return View{}, errs.ErrNotAuthenticated
	}
	if s.store == nil {
		return View{}, fmt.Errorf("account store is nil")
	}

	acc, err := s.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return View{}, errs.ErrNotAuthenticated
		}
		return View{}, err
	}
	return s.view(acc), nil
}

func (s *Service) Update(ctx context.Context, accountID uuid.UUID, in UpdateInput) (View, error) {
	if accountID == uuid.Nil {
		return View{}, errs.ErrNotAuthenticated
	}
	if s.store == nil {
		return View{}, fmt.Errorf("account store is nil")
	}

	patch, err := normalizeAndValidateInput(in)
	if err != nil {
		return View{}, err
	}

	acc, err := s.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return View{}, errs.ErrNotAuthenticated
		}
		return View{}, err
	}
	if err := rules.CheckActor(acc); err != nil {
		return View{}, err
	}

	updated, err := s.store.UpdateProfile(ctx, accountID, patch)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// lost a race with a deletion or ban
			return View{}, errs.ErrInvalidState
		}
		return View{}, fmt.Errorf("update profile: %w", err)
	}
	return s.view(updated), nil
}

func (s *Service) view(acc model.Account) View {
	v := View{
		ID:          acc.ID,
		DisplayName: acc.DisplayName,
		Gender:      acc.Gender,
		Intent:      acc.Intent,
		Bio:         acc.Bio,
		Role:        acc.Role,
		IsGold:      acc.IsGold,
		Slots: Slots{
			Used:      acc.SlotsUsed,
			Limit:     acc.SlotsLimit,
			Remaining: acc.SlotsRemaining(),
		},
		Balance:      acc.WalletBalance,
		VouchesCount: acc.VouchesCount,
		Lifecycle: Lifecycle{
			Status:     acc.Status,
			GraceUntil: acc.DeletionGraceUntil,
		},
		CreatedAt: acc.CreatedAt,
	}
	if acc.AvatarKey != "" && s.avatars != nil {
		v.AvatarURL = s.avatars.URL(acc.AvatarKey)
	}
	if left := rules.GraceRemaining(acc, s.now()); left > 0 {
		v.Lifecycle.GraceRemaining = int64(left / time.Second)
	}
	return v
}

func normalizeAndValidateInput(in UpdateInput) (pgrepo.ProfilePatch, error) {
	var patch pgrepo.ProfilePatch

	if in.DisplayName == nil && in.Intent == nil && in.Bio == nil && in.TelegramChatID == nil {
		return patch, fmt.Errorf("nothing to update: %w", errs.ErrValidation)
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
			return patch, fmt.Errorf("invalid display_name: %w", errs.ErrValidation)
		}
		patch.DisplayName = &name
	}
	if in.Intent != nil {
		intent := enums.Intent(strings.ToLower(strings.TrimSpace(*in.Intent)))
		if !intent.Valid() {
			return patch, fmt.Errorf("invalid intent: %w", errs.ErrValidation)
		}
		patch.Intent = &intent
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return patch, fmt.Errorf("bio is too long: %w", errs.ErrValidation)
		}
		patch.Bio = &bio
	}
	if in.TelegramChatID != nil {
		if *in.TelegramChatID == 0 {
			return patch, fmt.Errorf("invalid telegram_chat_id: %w", errs.ErrValidation)
		}
		chatID := *in.TelegramChatID
		patch.TelegramChatID = &chatID
	}

	return patch, nil
}
