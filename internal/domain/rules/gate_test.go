package rules

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

func activeAccount(slotsLimit, slotsUsed int, balance int64) model.Account {
	return model.Account{
		ID:            uuid.New(),
		Status:        enums.AccountStatusActive,
		SlotsLimit:    slotsLimit,
		SlotsUsed:     slotsUsed,
		WalletBalance: balance,
	}
}

func acceptedThread(actor, partner model.Account, sent int) Thread {
	return Thread{
		Connection: model.Connection{
			ID:          uuid.New(),
			RequesterID: actor.ID,
			ReceiverID:  partner.ID,
			Status:      enums.ConnectionStatusAccepted,
		},
		Partner:     partner,
		SentByActor: sent,
	}
}

func TestRequestConnectionSlots(t *testing.T) {
	p := DefaultPolicy()

	if d := p.RequestConnection(activeAccount(3, 2, 0), true, nil, false); !d.Allowed() || d.Cost != 0 {
		t.Fatalf("free slot should allow at no cost, got %+v", d)
	}

	full := activeAccount(3, 3, 0)
	d := p.RequestConnection(full, true, nil, false)
	if d.Verdict != VerdictRequiresPayment || !errors.Is(d.Reason, errs.ErrSlotsFull) {
		t.Fatalf("full slots should require payment with SlotsFull, got %+v", d)
	}
	if d.Cost != p.SlotUnlockCost {
		t.Fatalf("unexpected unlock price: %d", d.Cost)
	}

	d = p.RequestConnection(full, true, nil, true)
	if d.Verdict != VerdictRequiresPayment || !errors.Is(d.Reason, errs.ErrInsufficientFunds) {
		t.Fatalf("paying without funds should report InsufficientFunds, got %+v", d)
	}

	rich := activeAccount(3, 3, 500)
	if d := p.RequestConnection(rich, true, nil, true); !d.Allowed() || d.Cost != p.SlotUnlockCost {
		t.Fatalf("paid unlock should allow and charge, got %+v", d)
	}
}

func TestRequestConnectionRejectsLivePair(t *testing.T) {
	p := DefaultPolicy()
	actor := activeAccount(3, 0, 0)

	pending := &model.Connection{Status: enums.ConnectionStatusPending}
	if d := p.RequestConnection(actor, true, pending, false); !errors.Is(d.Reason, errs.ErrAlreadyConnected) {
		t.Fatalf("expected AlreadyConnected, got %+v", d)
	}

	rejected := &model.Connection{Status: enums.ConnectionStatusRejected}
	if d := p.RequestConnection(actor, true, rejected, false); !d.Allowed() {
		t.Fatalf("rejected row should not block a fresh request, got %+v", d)
	}

	if d := p.RequestConnection(actor, false, nil, false); !errors.Is(d.Reason, errs.ErrNotFound) {
		t.Fatalf("unavailable target should be NotFound, got %+v", d)
	}
}

func TestRespondToRequestOnlyReceiverOfPending(t *testing.T) {
	p := DefaultPolicy()
	requester := activeAccount(3, 1, 0)
	receiver := activeAccount(3, 0, 0)
	conn := model.Connection{
		RequesterID: requester.ID,
		ReceiverID:  receiver.ID,
		Status:      enums.ConnectionStatusPending,
	}

	if d := p.RespondToRequest(receiver, conn); !d.Allowed() {
		t.Fatalf("receiver should be able to accept, got %+v", d)
	}
	if d := p.RespondToRequest(requester, conn); !errors.Is(d.Reason, errs.ErrInvalidState) {
		t.Fatalf("requester cannot accept own request, got %+v", d)
	}

	conn.Status = enums.ConnectionStatusRejected
	if d := p.RespondToRequest(receiver, conn); !errors.Is(d.Reason, errs.ErrInvalidState) {
		t.Fatalf("rejected request cannot be accepted, got %+v", d)
	}

	stranger := activeAccount(3, 0, 0)
	if d := p.RespondToRequest(stranger, conn); !errors.Is(d.Reason, errs.ErrNotFound) {
		t.Fatalf("stranger should see NotFound, got %+v", d)
	}
}

func TestSendMessageCap(t *testing.T) {
	p := DefaultPolicy()
	actor := activeAccount(3, 1, 0)
	partner := activeAccount(3, 0, 0)

	if d := p.SendMessage(actor, acceptedThread(actor, partner, 9)); !d.Allowed() {
		t.Fatalf("10th message should be allowed, got %+v", d)
	}

	d := p.SendMessage(actor, acceptedThread(actor, partner, 10))
	if d.Verdict != VerdictRequiresPayment || !errors.Is(d.Reason, errs.ErrMessageCapReached) {
		t.Fatalf("11th message should hit the cap, got %+v", d)
	}

	shared := acceptedThread(actor, partner, 10)
	shared.ContactShared = true
	if d := p.SendMessage(actor, shared); !d.Allowed() {
		t.Fatalf("contact card should lift the cap, got %+v", d)
	}

	gold := actor
	gold.IsGold = true
	if d := p.SendMessage(gold, acceptedThread(gold, partner, 50)); !d.Allowed() {
		t.Fatalf("gold should not be capped, got %+v", d)
	}
}

func TestSendMessageRequiresOpenThread(t *testing.T) {
	p := DefaultPolicy()
	actor := activeAccount(3, 1, 0)
	partner := activeAccount(3, 0, 0)

	pending := acceptedThread(actor, partner, 0)
	pending.Connection.Status = enums.ConnectionStatusPending
	if d := p.SendMessage(actor, pending); !errors.Is(d.Reason, errs.ErrInvalidState) {
		t.Fatalf("pending thread should be InvalidState, got %+v", d)
	}

	gone := acceptedThread(actor, partner, 0)
	gone.Connection.IsDeleted = true
	if d := p.SendMessage(actor, gone); !errors.Is(d.Reason, errs.ErrNotFound) {
		t.Fatalf("soft-deleted thread should be NotFound, got %+v", d)
	}

	bannedPartner := partner
	bannedPartner.Status = enums.AccountStatusBanned
	if d := p.SendMessage(actor, acceptedThread(actor, bannedPartner, 0)); !errors.Is(d.Reason, errs.ErrInvalidState) {
		t.Fatalf("banned partner should block messaging, got %+v", d)
	}
}

func TestShareContactCharges(t *testing.T) {
	p := DefaultPolicy()
	partner := activeAccount(3, 0, 0)

	poor := activeAccount(3, 1, 198)
	d := p.ShareContact(poor, acceptedThread(poor, partner, 0))
	if !errors.Is(d.Reason, errs.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %+v", d)
	}
	var pe errs.PaymentError
	if !errors.As(d.Err(poor.WalletBalance), &pe) || pe.Balance != 198 || pe.Cost != 199 {
		t.Fatalf("unexpected payment error: %+v", d.Err(poor.WalletBalance))
	}

	exact := activeAccount(3, 1, 199)
	if d := p.ShareContact(exact, acceptedThread(exact, partner, 0)); !d.Allowed() || d.Cost != 199 {
		t.Fatalf("exact balance should allow, got %+v", d)
	}
}

func TestCommentUsesAllowanceBeforeCoins(t *testing.T) {
	p := DefaultPolicy()

	if d := p.Comment(activeAccount(3, 0, 0), 0); !d.Allowed() || d.Cost != 0 {
		t.Fatalf("first comment should use allowance, got %+v", d)
	}
	if d := p.Comment(activeAccount(3, 0, 100), 1); !d.Allowed() || d.Cost != p.CommentCost {
		t.Fatalf("second comment should cost coins, got %+v", d)
	}
	if d := p.Comment(activeAccount(3, 0, 5), 1); !errors.Is(d.Reason, errs.ErrInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %+v", d)
	}
}

func TestVouchRules(t *testing.T) {
	p := DefaultPolicy()
	actor := activeAccount(3, 0, 0)
	target := uuid.New()

	if d := p.Vouch(actor, target, true, false); !d.Allowed() {
		t.Fatalf("first vouch should be allowed, got %+v", d)
	}
	if d := p.Vouch(actor, target, true, true); !errors.Is(d.Reason, errs.ErrAlreadyVouched) {
		t.Fatalf("second vouch should be AlreadyVouched, got %+v", d)
	}
	if d := p.Vouch(actor, actor.ID, true, false); !errors.Is(d.Reason, errs.ErrValidation) {
		t.Fatalf("self vouch should be rejected, got %+v", d)
	}
}

func TestDisconnectAndBlock(t *testing.T) {
	p := DefaultPolicy()
	actor := activeAccount(3, 0, 0)
	other := uuid.New()
	rejected := &model.Connection{RequesterID: other, ReceiverID: actor.ID, Status: enums.ConnectionStatusRejected}

	if d := p.Disconnect(actor, nil); !errors.Is(d.Reason, errs.ErrNotFound) {
		t.Fatalf("disconnect without connection should be NotFound, got %+v", d)
	}
	if d := p.Disconnect(actor, rejected); !errors.Is(d.Reason, errs.ErrInvalidState) {
		t.Fatalf("disconnect on rejected should be InvalidState, got %+v", d)
	}
	if d := p.Block(actor, rejected); !d.Allowed() {
		t.Fatalf("block after rejection should be allowed, got %+v", d)
	}
	if d := p.Block(actor, nil); !errors.Is(d.Reason, errs.ErrNotFound) {
		t.Fatalf("block without history should be NotFound, got %+v", d)
	}
}

func TestInactiveActorIsDeniedEverywhere(t *testing.T) {
	p := DefaultPolicy()
	deleted := activeAccount(3, 0, 1000)
	deleted.Status = enums.AccountStatusSoftDeleted

	decisions := []Decision{
		p.RequestConnection(deleted, true, nil, false),
		p.UnlockSlot(deleted),
		p.Comment(deleted, 0),
		p.Vouch(deleted, uuid.New(), true, false),
	}
	for i, d := range decisions {
		if !errors.Is(d.Reason, errs.ErrAlreadyDeleted) {
			t.Fatalf("decision #%d: expected AlreadyDeleted, got %+v", i, d)
		}
	}
}
