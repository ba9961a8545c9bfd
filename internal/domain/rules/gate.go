package rules

import (
	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

type Verdict string

const (
	VerdictAllow           Verdict = "allow"
	VerdictDeny            Verdict = "deny"
	VerdictRequiresPayment Verdict = "requires_payment"
)

// Decision is the gate's answer for one action. On allow, Cost is the number
// of coins the effect debits (zero for free actions). On requires_payment,
// Cost is the price the actor must cover first.
type Decision struct {
	Verdict Verdict
	Reason  error
	Cost    int64
}

func Allow(cost int64) Decision {
	return Decision{Verdict: VerdictAllow, Cost: cost}
}

func Deny(reason error) Decision {
	return Decision{Verdict: VerdictDeny, Reason: reason}
}

func RequirePayment(reason error, cost int64) Decision {
	return Decision{Verdict: VerdictRequiresPayment, Reason: reason, Cost: cost}
}

func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

// Err converts a refusal into the error returned to callers.
func (d Decision) Err(balance int64) error {
	switch d.Verdict {
	case VerdictAllow:
		return nil
	case VerdictRequiresPayment:
		return errs.PaymentError{Err: d.Reason, Cost: d.Cost, Balance: balance}
	default:
		if d.Reason == nil {
			return errs.ErrInvalidState
		}
		return d.Reason
	}
}

type Policy struct {
	FreeMessagesPerThread int
	FreeCommentsPerDay    int
	ContactShareCost      int64
	CommentCost           int64
	SlotUnlockCost        int64
}

func DefaultPolicy() Policy {
	return Policy{
		FreeMessagesPerThread: 10,
		FreeCommentsPerDay:    1,
		ContactShareCost:      199,
		CommentCost:           9,
		SlotUnlockCost:        99,
	}
}

// Thread is the conversation state the message and contact rules look at.
type Thread struct {
	Connection    model.Connection
	Partner       model.Account
	SentByActor   int
	ContactShared bool
}

func (p Policy) RequestConnection(actor model.Account, targetAvailable bool, existing *model.Connection, payForSlot bool) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if !targetAvailable {
		return Deny(errs.ErrNotFound)
	}
	if existing != nil && existing.Live() {
		return Deny(errs.ErrAlreadyConnected)
	}
	if actor.SlotsUsed < actor.SlotsLimit {
		return Allow(0)
	}
	if !payForSlot {
		return RequirePayment(errs.ErrSlotsFull, p.SlotUnlockCost)
	}
	return p.charge(actor, p.SlotUnlockCost)
}

func (p Policy) UnlockSlot(actor model.Account) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	return p.charge(actor, p.SlotUnlockCost)
}

// RespondToRequest covers both accept and reject: only the receiver of a
// pending request may answer it.
func (p Policy) RespondToRequest(actor model.Account, conn model.Connection) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if !conn.Involves(actor.ID) || conn.IsDeleted {
		return Deny(errs.ErrNotFound)
	}
	if conn.ReceiverID != actor.ID || conn.Status != enums.ConnectionStatusPending {
		return Deny(errs.ErrInvalidState)
	}
	return Allow(0)
}

func (p Policy) SendMessage(actor model.Account, th Thread) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if err := checkOpenThread(actor, th); err != nil {
		return Deny(err)
	}
	if actor.IsGold || th.ContactShared {
		return Allow(0)
	}
	if th.SentByActor >= p.FreeMessagesPerThread {
		return RequirePayment(errs.ErrMessageCapReached, p.ContactShareCost)
	}
	return Allow(0)
}

func (p Policy) ShareContact(actor model.Account, th Thread) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if err := checkOpenThread(actor, th); err != nil {
		return Deny(err)
	}
	return p.charge(actor, p.ContactShareCost)
}

// Comment spends the daily allowance first and coins only once it is gone.
func (p Policy) Comment(actor model.Account, allowanceUsed int) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if allowanceUsed < p.FreeCommentsPerDay {
		return Allow(0)
	}
	return p.charge(actor, p.CommentCost)
}

func (p Policy) Vouch(actor model.Account, targetID uuid.UUID, targetAvailable, alreadyVouched bool) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if actor.ID == targetID {
		return Deny(errs.ErrValidation)
	}
	if !targetAvailable {
		return Deny(errs.ErrNotFound)
	}
	if alreadyVouched {
		return Deny(errs.ErrAlreadyVouched)
	}
	return Allow(0)
}

// Disconnect needs a live connection. Block only needs some connection
// history with the target, so a receiver can block after rejecting.
func (p Policy) Disconnect(actor model.Account, conn *model.Connection) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if conn == nil || !conn.Involves(actor.ID) || conn.IsDeleted {
		return Deny(errs.ErrNotFound)
	}
	if !conn.Live() {
		return Deny(errs.ErrInvalidState)
	}
	return Allow(0)
}

func (p Policy) Block(actor model.Account, conn *model.Connection) Decision {
	if err := CheckActor(actor); err != nil {
		return Deny(err)
	}
	if conn == nil || !conn.Involves(actor.ID) {
		return Deny(errs.ErrNotFound)
	}
	return Allow(0)
}

func (p Policy) charge(actor model.Account, cost int64) Decision {
	if actor.WalletBalance < cost {
		return RequirePayment(errs.ErrInsufficientFunds, cost)
	}
	return Allow(cost)
}

func checkOpenThread(actor model.Account, th Thread) error {
	if !th.Connection.Involves(actor.ID) || th.Connection.IsDeleted {
		return errs.ErrNotFound
	}
	if th.Connection.Status != enums.ConnectionStatusAccepted {
		return errs.ErrInvalidState
	}
	if th.Partner.Status != enums.AccountStatusActive {
		return errs.ErrInvalidState
	}
	return nil
}
