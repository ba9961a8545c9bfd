package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

type Message struct {
	ID           uuid.UUID         `json:"id"`
	ConnectionID uuid.UUID         `json:"connection_id"`
	SenderID     uuid.UUID         `json:"sender_id"`
	ReceiverID   uuid.UUID         `json:"receiver_id"`
	Kind         enums.MessageKind `json:"kind"`
	Content      string            `json:"content"`
	CreatedAt    time.Time         `json:"created_at"`
}
