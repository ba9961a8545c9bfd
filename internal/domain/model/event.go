package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent records a lifecycle or gate transition next to the change it
// describes.
type AuditEvent struct {
	AccountID  uuid.UUID      `json:"account_id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Name       string         `json:"name"`
	Props      map[string]any `json:"props,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
