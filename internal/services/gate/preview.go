package gate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
)

type PreviewInput struct {
	Action       enums.GateAction
	TargetID     uuid.UUID
	ConnectionID uuid.UUID
	PayForSlot   bool
}

// PreviewResult is a decision without its effect, used for lock icons and
// paywall prices.
type PreviewResult struct {
	Action  enums.GateAction `json:"action"`
	Verdict rules.Verdict    `json:"verdict"`
	Reason  errs.Kind        `json:"reason,omitempty"`
	Cost    int64            `json:"cost"`
	Balance int64            `json:"balance"`
}

// errPreviewDone unwinds the read-only transaction Preview runs in.
var errPreviewDone = errors.New("preview done")

func (s *Service) Preview(ctx context.Context, actorID uuid.UUID, in PreviewInput) (PreviewResult, error) {
	if _, ok := enums.ParseGateAction(string(in.Action)); !ok {
		return PreviewResult{}, errs.ErrValidation
	}

	var result PreviewResult
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		decision, err := s.decide(txCtx, tx, actor, in, now)
		if err != nil {
			return err
		}
		result = PreviewResult{
			Action:  in.Action,
			Verdict: decision.Verdict,
			Reason:  errs.KindOf(decision.Reason),
			Cost:    decision.Cost,
			Balance: actor.WalletBalance,
		}
		return errPreviewDone
	})
	if err != nil && !errors.Is(err, errPreviewDone) {
		return PreviewResult{}, err
	}
	return result, nil
}

func (s *Service) decide(ctx context.Context, tx pgx.Tx, actor model.Account, in PreviewInput, now time.Time) (rules.Decision, error) {
	switch in.Action {
	case enums.GateActionRequestConnection:
		if in.TargetID == uuid.Nil || in.TargetID == actor.ID {
			return rules.Deny(errs.ErrValidation), nil
		}
		_, available, err := s.targetAvailable(ctx, tx, actor.ID, in.TargetID)
		if err != nil {
			return rules.Decision{}, err
		}
		existing, found, err := s.connections.FindLiveBetween(ctx, tx, actor.ID, in.TargetID)
		if err != nil {
			return rules.Decision{}, err
		}
		var live *model.Connection
		if found {
			live = &existing
		}
		return s.policy.RequestConnection(actor, available, live, in.PayForSlot), nil

	case enums.GateActionAcceptConnection:
		conn, err := s.lookupConnection(ctx, tx, in.ConnectionID)
		if err != nil {
			return rules.Decision{}, err
		}
		if conn == nil {
			return rules.Deny(errs.ErrNotFound), nil
		}
		return s.policy.RespondToRequest(actor, *conn), nil

	case enums.GateActionSendMessage, enums.GateActionShareContact:
		th, err := s.loadThread(ctx, tx, actor, in.ConnectionID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return rules.Deny(errs.ErrNotFound), nil
			}
			return rules.Decision{}, err
		}
		if in.Action == enums.GateActionSendMessage {
			return s.policy.SendMessage(actor, th), nil
		}
		return s.policy.ShareContact(actor, th), nil

	case enums.GateActionComment:
		used, err := s.comments.AllowanceUsed(ctx, tx, actor.ID, now)
		if err != nil {
			return rules.Decision{}, err
		}
		return s.policy.Comment(actor, used), nil

	case enums.GateActionVouch:
		_, available, err := s.targetAvailable(ctx, tx, actor.ID, in.TargetID)
		if err != nil {
			return rules.Decision{}, err
		}
		already, err := s.vouches.Exists(ctx, tx, actor.ID, in.TargetID)
		if err != nil {
			return rules.Decision{}, err
		}
		return s.policy.Vouch(actor, in.TargetID, available, already), nil

	case enums.GateActionBlock:
		latest, found, err := s.connections.FindLatestBetween(ctx, tx, actor.ID, in.TargetID)
		if err != nil {
			return rules.Decision{}, err
		}
		if !found {
			return s.policy.Block(actor, nil), nil
		}
		return s.policy.Block(actor, &latest), nil

	case enums.GateActionDisconnect:
		conn, err := s.lookupConnection(ctx, tx, in.ConnectionID)
		if err != nil {
			return rules.Decision{}, err
		}
		return s.policy.Disconnect(actor, conn), nil

	case enums.GateActionUnlockSlot:
		return s.policy.UnlockSlot(actor), nil
	}
	return rules.Deny(errs.ErrValidation), nil
}
