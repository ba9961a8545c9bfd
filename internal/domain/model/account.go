package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

type Account struct {
	ID                 uuid.UUID           `json:"id"`
	DisplayName        string              `json:"display_name"`
	Gender             enums.Gender        `json:"gender"`
	Intent             enums.Intent        `json:"intent"`
	Bio                string              `json:"bio"`
	AvatarKey          string              `json:"avatar_key,omitempty"`
	TelegramChatID     *int64              `json:"telegram_chat_id,omitempty"`
	Role               enums.Role          `json:"role"`
	Status             enums.AccountStatus `json:"status"`
	DeletedAt          *time.Time          `json:"deleted_at,omitempty"`
	DeletionGraceUntil *time.Time          `json:"deletion_grace_until,omitempty"`
	DeletedBy          *enums.DeletedBy    `json:"deleted_by,omitempty"`
	DeletedReason      string              `json:"deleted_reason,omitempty"`
	BannedAt           *time.Time          `json:"banned_at,omitempty"`
	BannedBy           *uuid.UUID          `json:"banned_by,omitempty"`
	BanReason          string              `json:"ban_reason,omitempty"`
	IsGold             bool                `json:"is_gold"`
	SlotsLimit         int                 `json:"slots_limit"`
	SlotsUsed          int                 `json:"slots_used"`
	WalletBalance      int64               `json:"wallet_balance"`
	VouchesCount       int                 `json:"vouches_count"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (a Account) SlotsRemaining() int {
	if a.SlotsUsed >= a.SlotsLimit {
		return 0
	}
	return a.SlotsLimit - a.SlotsUsed
}

func (a Account) IsActive() bool {
	return a.Status == enums.AccountStatusActive
}
