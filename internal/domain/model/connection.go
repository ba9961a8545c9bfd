package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

type Connection struct {
	ID                     uuid.UUID              `json:"id"`
	RequesterID            uuid.UUID              `json:"requester_id"`
	ReceiverID             uuid.UUID              `json:"receiver_id"`
	Status                 enums.ConnectionStatus `json:"status"`
	IsDeleted              bool                   `json:"is_deleted"`
	DeletedAt              *time.Time             `json:"deleted_at,omitempty"`
	ClosedReason           *enums.ClosedReason    `json:"closed_reason,omitempty"`
	DeletedWithAccount     *uuid.UUID             `json:"-"`
	PartnerNotified        bool                   `json:"partner_notified"`
	PartnerNoticeExpiresAt *time.Time             `json:"partner_notice_expires_at,omitempty"`
	AcceptedAt             *time.Time             `json:"accepted_at,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

func (c Connection) Involves(accountID uuid.UUID) bool {
	return c.RequesterID == accountID || c.ReceiverID == accountID
}

// Partner returns the other endpoint. The result is uuid.Nil when accountID
// is not part of the connection.
func (c Connection) Partner(accountID uuid.UUID) uuid.UUID {
	switch accountID {
	case c.RequesterID:
		return c.ReceiverID
	case c.ReceiverID:
		return c.RequesterID
	default:
		return uuid.Nil
	}
}

// Live reports whether the row still occupies the pair.
func (c Connection) Live() bool {
	if c.IsDeleted {
		return false
	}
	return c.Status == enums.ConnectionStatusPending || c.Status == enums.ConnectionStatusAccepted
}

// PartnerNotice is an outstanding "your partner is leaving" notice for one
// side of a connection flagged by an account deletion.
type PartnerNotice struct {
	ConnectionID uuid.UUID
	RecipientID  uuid.UUID
	DepartingID  uuid.UUID
	ExpiresAt    time.Time
}
