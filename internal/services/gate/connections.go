package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

const requestScope = "connection_request"

type RequestInput struct {
	TargetID       uuid.UUID
	PayForSlot     bool
	IdempotencyKey string
}

type RequestResult struct {
	Connection model.Connection `json:"connection"`
	SlotsUsed  int              `json:"slots_used"`
	SlotsLimit int              `json:"slots_limit"`
	Charged    int64            `json:"charged"`
	Balance    int64            `json:"balance"`
	Replayed   bool             `json:"replayed"`
}

type SlotResult struct {
	SlotsUsed  int   `json:"slots_used"`
	SlotsLimit int   `json:"slots_limit"`
	Charged    int64 `json:"charged"`
	Balance    int64 `json:"balance"`
}

// RequestConnection spends one slot and opens a pending connection. With
// PayForSlot set, a full account buys one more slot in the same transaction.
func (s *Service) RequestConnection(ctx context.Context, actorID uuid.UUID, in RequestInput) (RequestResult, error) {
	if actorID == uuid.Nil {
		return RequestResult{}, errs.ErrNotAuthenticated
	}
	if in.TargetID == uuid.Nil || in.TargetID == actorID {
		return RequestResult{}, errs.ErrValidation
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	// A key replays only for the same actor and target.
	scope := requestScope + ":" + actorID.String() + ":" + in.TargetID.String()
	if replay, ok := s.replayRequest(ctx, scope, key); ok {
		return replay, nil
	}

	var result RequestResult
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		_, available, err := s.targetAvailable(txCtx, tx, actorID, in.TargetID)
		if err != nil {
			return err
		}
		existing, found, err := s.connections.FindLiveBetween(txCtx, tx, actorID, in.TargetID)
		if err != nil {
			return err
		}
		var live *model.Connection
		if found {
			live = &existing
		}

		decision := s.policy.RequestConnection(actor, available, live, in.PayForSlot)
		if !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		result.Balance = actor.WalletBalance
		result.SlotsLimit = actor.SlotsLimit
		if decision.Cost > 0 {
			balance, err := s.wallet.Debit(txCtx, tx, actorID, decision.Cost, enums.LedgerReasonSlotUnlock, in.TargetID.String(), now)
			if err != nil {
				return err
			}
			limit, err := s.accounts.RaiseSlotsLimit(txCtx, tx, actorID)
			if err != nil {
				return err
			}
			result.Balance = balance
			result.SlotsLimit = limit
			result.Charged = decision.Cost
		}

		used, err := s.accounts.ConsumeSlot(txCtx, tx, actorID)
		if err != nil {
			return err
		}
		result.SlotsUsed = used

		conn, err := s.connections.Create(txCtx, tx, model.Connection{
			ID:          uuid.New(),
			RequesterID: actorID,
			ReceiverID:  in.TargetID,
			Status:      enums.ConnectionStatusPending,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		result.Connection = conn

		if err := s.notify(txCtx, tx, in.TargetID, enums.NotificationConnectionRequested, map[string]any{
			"connection_id": conn.ID.String(),
			"from":          actorID.String(),
			"display_name":  actor.DisplayName,
		}, now); err != nil {
			return err
		}
		return s.record(txCtx, tx, actorID, EventConnectionRequested, map[string]any{
			"connection_id": conn.ID.String(),
			"target_id":     in.TargetID.String(),
			"charged":       result.Charged,
		}, now)
	})
	if err != nil {
		return RequestResult{}, err
	}

	s.rememberRequest(ctx, scope, key, result)
	return result, nil
}

func (s *Service) replayRequest(ctx context.Context, scope, key string) (RequestResult, bool) {
	if key == "" || s.idempotency == nil {
		return RequestResult{}, false
	}

	raw, ok, err := s.idempotency.Load(ctx, scope, key)
	if err != nil {
		s.logger.Warn("idempotency lookup failed", zap.String("scope", scope), zap.Error(err))
		return RequestResult{}, false
	}
	if !ok {
		return RequestResult{}, false
	}

	var result RequestResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		s.logger.Warn("idempotency payload is corrupt", zap.String("scope", scope), zap.Error(err))
		return RequestResult{}, false
	}
	result.Replayed = true
	return result, true
}

func (s *Service) rememberRequest(ctx context.Context, scope, key string, result RequestResult) {
	if key == "" || s.idempotency == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encode idempotency payload", zap.Error(err))
		return
	}
	if err := s.idempotency.Save(ctx, scope, key, string(raw), s.idemTTL); err != nil {
		s.logger.Warn("idempotency save failed", zap.String("scope", scope), zap.Error(err))
	}
}

func (s *Service) AcceptConnection(ctx context.Context, actorID, connectionID uuid.UUID) (model.Connection, error) {
	return s.respond(ctx, actorID, connectionID, enums.ConnectionStatusAccepted)
}

// RejectConnection closes a pending request. The requester's slot stays spent.
func (s *Service) RejectConnection(ctx context.Context, actorID, connectionID uuid.UUID) (model.Connection, error) {
	return s.respond(ctx, actorID, connectionID, enums.ConnectionStatusRejected)
}

func (s *Service) respond(ctx context.Context, actorID, connectionID uuid.UUID, status enums.ConnectionStatus) (model.Connection, error) {
	var updated model.Connection
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		conn, err := s.connections.GetForUpdate(txCtx, tx, connectionID)
		if err != nil {
			return err
		}
		if decision := s.policy.RespondToRequest(actor, conn); !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		updated, err = s.connections.SetStatus(txCtx, tx, connectionID, status, now)
		if err != nil {
			return err
		}

		event := EventConnectionRejected
		if status == enums.ConnectionStatusAccepted {
			event = EventConnectionAccepted
			if err := s.notify(txCtx, tx, conn.RequesterID, enums.NotificationConnectionAccepted, map[string]any{
				"connection_id": conn.ID.String(),
				"by":            actorID.String(),
				"display_name":  actor.DisplayName,
			}, now); err != nil {
				return err
			}
		}
		return s.record(txCtx, tx, actorID, event, map[string]any{"connection_id": conn.ID.String()}, now)
	})
	if err != nil {
		return model.Connection{}, err
	}
	return updated, nil
}

// Disconnect hides a live connection for both sides.
func (s *Service) Disconnect(ctx context.Context, actorID, connectionID uuid.UUID) error {
	return s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		conn, err := s.lookupConnection(txCtx, tx, connectionID)
		if err != nil {
			return err
		}
		if decision := s.policy.Disconnect(actor, conn); !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}
		if err := s.connections.Close(txCtx, tx, conn.ID, enums.ClosedReasonDisconnect, now); err != nil {
			return err
		}
		return s.record(txCtx, tx, actorID, EventDisconnected, map[string]any{"connection_id": conn.ID.String()}, now)
	})
}

// Block needs some connection history with the target. It closes the
// connection if it is still open and keeps the target from requesting again.
func (s *Service) Block(ctx context.Context, actorID, targetID uuid.UUID, reason string) error {
	if targetID == uuid.Nil || targetID == actorID {
		return errs.ErrValidation
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxBlockReason {
		return errs.ErrValidation
	}

	return s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		latest, found, err := s.connections.FindLatestBetween(txCtx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		var conn *model.Connection
		if found {
			conn = &latest
		}
		if decision := s.policy.Block(actor, conn); !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		if err := s.blocks.Upsert(txCtx, tx, actorID, targetID, reason, now); err != nil {
			return err
		}
		if !conn.IsDeleted {
			if err := s.connections.Close(txCtx, tx, conn.ID, enums.ClosedReasonBlock, now); err != nil {
				return err
			}
		}
		return s.record(txCtx, tx, actorID, EventBlocked, map[string]any{
			"target_id":     targetID.String(),
			"connection_id": conn.ID.String(),
		}, now)
	})
}

// UnlockSlot buys one permanent slot.
func (s *Service) UnlockSlot(ctx context.Context, actorID uuid.UUID) (SlotResult, error) {
	var result SlotResult
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		decision := s.policy.UnlockSlot(actor)
		if !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		balance, err := s.wallet.Debit(txCtx, tx, actorID, decision.Cost, enums.LedgerReasonSlotUnlock, "", now)
		if err != nil {
			return err
		}
		limit, err := s.accounts.RaiseSlotsLimit(txCtx, tx, actorID)
		if err != nil {
			return err
		}

		result = SlotResult{SlotsUsed: actor.SlotsUsed, SlotsLimit: limit, Charged: decision.Cost, Balance: balance}
		return s.record(txCtx, tx, actorID, EventSlotUnlocked, map[string]any{"slots_limit": limit, "charged": decision.Cost}, now)
	})
	if err != nil {
		return SlotResult{}, err
	}
	return result, nil
}

// ListConnections returns the visible connections of the account, newest
// first.
func (s *Service) ListConnections(ctx context.Context, actorID uuid.UUID, limit int) ([]model.Connection, error) {
	if actorID == uuid.Nil {
		return nil, errs.ErrNotAuthenticated
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s.connections.ListForAccount(ctx, actorID, normalizeLimit(limit))
}

// lookupConnection returns nil for a missing row so the policy reports it.
func (s *Service) lookupConnection(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Connection, error) {
	conn, err := s.connections.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	return &conn, nil
}
