package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

// LedgerEvent is one wallet movement. Debits carry a negative delta.
type LedgerEvent struct {
	ID        int64              `json:"id"`
	AccountID uuid.UUID          `json:"account_id"`
	Delta     int64              `json:"delta"`
	Reason    enums.LedgerReason `json:"reason"`
	RefID     string             `json:"ref_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
