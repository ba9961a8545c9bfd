package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

type Notification struct {
	ID          uuid.UUID              `json:"id"`
	RecipientID uuid.UUID              `json:"recipient_id"`
	Kind        enums.NotificationKind `json:"kind"`
	Payload     map[string]any         `json:"payload,omitempty"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
	IsDeleted   bool                   `json:"is_deleted"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
