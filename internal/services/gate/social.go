package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

type CommentResult struct {
	Comment        model.Comment `json:"comment"`
	Charged        int64         `json:"charged"`
	Balance        int64         `json:"balance"`
	AllowanceLeft  int           `json:"allowance_left"`
	AllowanceReset time.Time     `json:"allowance_reset_at"`
}

type VouchResult struct {
	TargetID     uuid.UUID `json:"target_id"`
	VouchesCount int       `json:"vouches_count"`
}

// Comment spends today's free allowance when there is one left and coins
// otherwise, never both.
func (s *Service) Comment(ctx context.Context, actorID, postID uuid.UUID, body string) (CommentResult, error) {
	text, err := normalizeText(body, maxCommentLen)
	if err != nil {
		return CommentResult{}, err
	}

	var result CommentResult
	err = s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		if _, err := s.posts.GetLive(txCtx, tx, postID); err != nil {
			return err
		}

		used, err := s.comments.AllowanceUsed(txCtx, tx, actorID, now)
		if err != nil {
			return fmt.Errorf("load comment allowance: %w", err)
		}
		decision := s.policy.Comment(actor, used)
		if !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		paidWith := enums.CommentPaymentAllowance
		balance := actor.WalletBalance
		if decision.Cost == 0 {
			if err := s.comments.ConsumeAllowance(txCtx, tx, actorID, now, s.policy.FreeCommentsPerDay); err != nil {
				if errors.Is(err, pgrepo.ErrAllowanceExhausted) {
					return errs.ErrInvalidState
				}
				return err
			}
			used++
		} else {
			paidWith = enums.CommentPaymentCoins
			balance, err = s.wallet.Debit(txCtx, tx, actorID, decision.Cost, enums.LedgerReasonComment, postID.String(), now)
			if err != nil {
				return err
			}
		}

		comment, err := s.comments.Insert(txCtx, tx, model.Comment{
			ID:        uuid.New(),
			PostID:    postID,
			AuthorID:  actorID,
			Body:      text,
			PaidWith:  paidWith,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		result = CommentResult{
			Comment:        comment,
			Charged:        decision.Cost,
			Balance:        balance,
			AllowanceLeft:  rules.AllowanceLeft(s.policy.FreeCommentsPerDay, used),
			AllowanceReset: rules.AllowanceResetAt(now),
		}
		return s.record(txCtx, tx, actorID, EventCommented, map[string]any{
			"post_id":   postID.String(),
			"paid_with": string(paidWith),
		}, now)
	})
	if err != nil {
		return CommentResult{}, err
	}
	return result, nil
}

// Vouch is one-shot per ordered pair. The count on the target only grows.
func (s *Service) Vouch(ctx context.Context, actorID, targetID uuid.UUID) (VouchResult, error) {
	if targetID == uuid.Nil {
		return VouchResult{}, errs.ErrValidation
	}

	var result VouchResult
	err := s.begin(ctx, actorID, func(txCtx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error {
		_, available, err := s.targetAvailable(txCtx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		already, err := s.vouches.Exists(txCtx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		if decision := s.policy.Vouch(actor, targetID, available, already); !decision.Allowed() {
			return decision.Err(actor.WalletBalance)
		}

		inserted, err := s.vouches.Insert(txCtx, tx, actorID, targetID, now)
		if err != nil {
			return err
		}
		if !inserted {
			return errs.ErrAlreadyVouched
		}
		count, err := s.accounts.IncrementVouches(txCtx, tx, targetID)
		if err != nil {
			return err
		}
		result = VouchResult{TargetID: targetID, VouchesCount: count}

		if err := s.notify(txCtx, tx, targetID, enums.NotificationVouchReceived, map[string]any{
			"from":         actorID.String(),
			"display_name": actor.DisplayName,
		}, now); err != nil {
			return err
		}
		return s.record(txCtx, tx, actorID, EventVouched, map[string]any{"target_id": targetID.String()}, now)
	})
	if err != nil {
		return VouchResult{}, err
	}
	return result, nil
}
