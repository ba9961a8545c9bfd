package dto

import (
	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/model"
)

type ConnectionRequest struct {
	TargetID   uuid.UUID `json:"target_id"`
	PayForSlot bool      `json:"pay_for_slot"`
}

type TargetRequest struct {
	TargetID uuid.UUID `json:"target_id"`
	Reason   string    `json:"reason,omitempty"`
}

type ConnectionsResponse struct {
	Items []model.Connection `json:"items"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

type ContactCardRequest struct {
	Contact string `json:"contact"`
}

type MessagesResponse struct {
	Items []model.Message `json:"items"`
}
