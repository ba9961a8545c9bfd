package model

import (
	"time"

	"github.com/google/uuid"
)

type Vouch struct {
	VoucherID uuid.UUID `json:"voucher_id"`
	TargetID  uuid.UUID `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}
