package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
)

// ThreadState is what the client needs to render the composer: how many free
// messages the actor has sent, the cap, and whether the cap applies at all.
type ThreadState struct {
	ConnectionID  uuid.UUID `json:"connection_id"`
	SentCount     int       `json:"sent_count"`
	Limit         int       `json:"limit"`
	Unlimited     bool      `json:"unlimited"`
	Locked        bool      `json:"locked"`
	ContactShared bool      `json:"contact_shared"`
	UnlockCost    int64     `json:"unlock_cost"`
}

type SendResult struct {
	Message model.Message `json:"message"`
	Thread  ThreadState   `json:"thread"`
}

type ContactResult struct {
	Message model.Message `json:"message"`
	Charged int64         `json:"charged"`
	Balance int64         `json:"balance"`
}

func (s *Service) SendMessage(ctx context.Context, actorID, connectionID uuid.UUID, content string) (SendResult, error) {
	text, err := normalizeText(content, maxMessageLen)
	if err != nil {
		return SendResult{}, err
	}

	var result SendResult
	err = s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		th, err := s.loadThread(txCtx, tx, actor, connectionID)
		if err != nil {
			return err
		}
		if decision := s.policy.SendMessage(actor, th); !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		msg, err := s.messages.Insert(txCtx, tx, model.Message{
			ID:           uuid.New(),
			ConnectionID: connectionID,
			SenderID:     actorID,
			ReceiverID:   th.Partner.ID,
			Kind:         enums.MessageKindText,
			Content:      text,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		th.SentByActor++
		result = SendResult{Message: msg, Thread: s.threadState(actor, th)}
		return nil
	})
	if err != nil {
		return SendResult{}, err
	}
	return result, nil
}

// ShareVerifiedContact debits the share price and posts the contact card in
// one transaction. A shared card lifts the message cap for both sides.
func (s *Service) ShareVerifiedContact(ctx context.Context, actorID, connectionID uuid.UUID, contact string) (ContactResult, error) {
	card, err := normalizeText(contact, maxContactLen)
	if err != nil {
		return ContactResult{}, err
	}

	var result ContactResult
	err = s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		th, err := s.loadThread(txCtx, tx, actor, connectionID)
		if err != nil {
			return err
		}
		decision := s.policy.ShareContact(actor, th)
		if !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		balance, err := s.wallet.Debit(txCtx, tx, actorID, decision.Cost, enums.LedgerReasonContactShare, connectionID.String(), now)
		if err != nil {
			return err
		}
		msg, err := s.messages.Insert(txCtx, tx, model.Message{
			ID:           uuid.New(),
			ConnectionID: connectionID,
			SenderID:     actorID,
			ReceiverID:   th.Partner.ID,
			Kind:         enums.MessageKindContactCard,
			Content:      card,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert contact card: %w", err)
		}

		result = ContactResult{Message: msg, Charged: decision.Cost, Balance: balance}
		return s.record(txCtx, tx, actorID, EventContactShared, map[string]any{
			"connection_id": connectionID.String(),
			"charged":       decision.Cost,
		}, now)
	})
	if err != nil {
		return ContactResult{}, err
	}
	return result, nil
}

func (s *Service) ThreadState(ctx context.Context, actorID, connectionID uuid.UUID) (ThreadState, error) {
	var state ThreadState
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, _ time.Time) error {
		th, err := s.loadThread(txCtx, tx, actor, connectionID)
		if err != nil {
			return err
		}
		state = s.threadState(actor, th)
		return nil
	})
	if err != nil {
		return ThreadState{}, err
	}
	return state, nil
}

// ListMessages is readable by both participants while the connection is
// visible.
func (s *Service) ListMessages(ctx context.Context, actorID, connectionID uuid.UUID, limit int) ([]model.Message, error) {
	if actorID == uuid.Nil {
		return nil, errs.ErrNotAuthenticated
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Involves(actorID) || conn.IsDeleted {
		return nil, errs.ErrNotFound
	}
	return s.messages.ListByConnection(ctx, connectionID, normalizeLimit(limit))
}

func (s *Service) loadThread(ctx context.Context, tx pgx.Tx, actor model.Account, connectionID uuid.UUID) (rules.Thread, error) {
	conn, err := s.connections.GetForUpdate(ctx, tx, connectionID)
	if err != nil {
		return rules.Thread{}, err
	}
	if !conn.Involves(actor.ID) {
		return rules.Thread{}, errs.ErrNotFound
	}

	partner, err := s.accounts.Get(ctx, conn.Partner(actor.ID))
	if err != nil {
		return rules.Thread{}, err
	}
	sent, err := s.messages.CountBySender(ctx, tx, connectionID, actor.ID)
	if err != nil {
		return rules.Thread{}, fmt.Errorf("count sent messages: %w", err)
	}
	shared, err := s.messages.HasContactCard(ctx, tx, connectionID)
	if err != nil {
		return rules.Thread{}, fmt.Errorf("check contact card: %w", err)
	}

	return rules.Thread{
		Connection:    conn,
		Partner:       partner,
		SentByActor:   sent,
		ContactShared: shared,
	}, nil
}

func (s *Service) threadState(actor model.Account, th rules.Thread) ThreadState {
	unlimited := actor.IsGold || th.ContactShared
	return ThreadState{
		ConnectionID:  th.Connection.ID,
		SentCount:     th.SentByActor,
		Limit:         s.policy.FreeMessagesPerThread,
		Unlimited:     unlimited,
		Locked:        !unlimited && th.SentByActor >= s.policy.FreeMessagesPerThread,
		ContactShared: th.ContactShared,
		UnlockCost:    s.policy.ContactShareCost,
	}
}
