package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

const (
	EventDeletionInitiated = "account.deletion_initiated"
	EventDeletedByAdmin    = "account.deleted_by_admin"
	EventRestored          = "account.restored"
	EventPurged            = "account.purged"
	EventRecoveryDeclined  = "account.recovery_declined"
	EventBanned            = "account.banned"

	defaultNoticeTTL  = 14 * 24 * time.Hour
	defaultSweepBatch = 100
	maxReasonLen      = 500
)

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Account, error)
	MarkSoftDeleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, deletedAt, graceUntil time.Time, by enums.DeletedBy, reason string) error
	ClearDeletion(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkBanned(ctx context.Context, tx pgx.Tx, id, moderatorID uuid.UUID, reason string, at time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	LockExpired(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (model.Account, bool, error)
}

type DependentStore interface {
	Flag(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at, noticeUntil time.Time) (pgrepo.FlagSummary, error)
	Unflag(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at time.Time) (pgrepo.FlagSummary, error)
	Purge(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error
}

type AuditStore interface {
	Append(ctx context.Context, tx pgx.Tx, events ...model.AuditEvent) error
}

type SessionInvalidator interface {
	LogoutAll(ctx context.Context, accountID uuid.UUID) error
}

type ObjectRemover interface {
	Delete(ctx context.Context, objectKey string) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Config struct {
	NoticeTTL  time.Duration
	SweepBatch int
}

type Dependencies struct {
	Accounts   AccountStore
	Dependents DependentStore
	Audit      AuditStore
	Sessions   SessionInvalidator
	Avatars    ObjectRemover
	Tx         Transactor
	Logger     *zap.Logger
}

// StatusView is what the restore screen needs.
type StatusView struct {
	AccountID          uuid.UUID           `json:"account_id"`
	Status             enums.AccountStatus `json:"status"`
	DeletedAt          *time.Time          `json:"deleted_at,omitempty"`
	DeletionGraceUntil *time.Time          `json:"deletion_grace_until,omitempty"`
	DeletedBy          *enums.DeletedBy    `json:"deleted_by,omitempty"`
	GraceRemaining     time.Duration       `json:"-"`
	GraceRemainingSec  int64               `json:"grace_remaining_sec"`
	CanRestore         bool                `json:"can_restore"`
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

type Service struct {
	accounts   AccountStore
	dependents DependentStore
	audit      AuditStore
	sessions   SessionInvalidator
	avatars    ObjectRemover
	tx         Transactor
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = defaultNoticeTTL
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		accounts:   deps.Accounts,
		dependents: deps.Dependents,
		audit:      deps.Audit,
		sessions:   deps.Sessions,
		avatars:    deps.Avatars,
		tx:         deps.Tx,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// InitiateDeletion starts the self-service grace period.
func (s *Service) InitiateDeletion(ctx context.Context, accountID uuid.UUID, reason string) (StatusView, error) {
	if accountID == uuid.Nil {
		return StatusView{}, errs.ErrNotAuthenticated
	}
	return s.softDelete(ctx, accountID, nil, enums.DeletedBySelf, reason, EventDeletionInitiated)
}

// AdminDelete is the moderator variant of InitiateDeletion. The owner can
// still restore within the grace period.
func (s *Service) AdminDelete(ctx context.Context, moderatorID, accountID uuid.UUID, reason string) (StatusView, error) {
	if moderatorID == uuid.Nil {
		return StatusView{}, errs.ErrNotAuthenticated
	}
	if accountID == uuid.Nil {
		return StatusView{}, errs.ErrNotFound
	}
	return s.softDelete(ctx, accountID, &moderatorID, enums.DeletedByAdmin, reason, EventDeletedByAdmin)
}

func (s *Service) softDelete(ctx context.Context, accountID uuid.UUID, actorID *uuid.UUID, by enums.DeletedBy, reason, event string) (StatusView, error) {
	if err := s.validate(); err != nil {
		return StatusView{}, err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return StatusView{}, err
	}

	now := s.now().UTC()
	graceUntil := rules.GraceUntil(now)
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acc, err := s.accounts.GetForUpdate(txCtx, tx, accountID)
		if err != nil {
			return err
		}
		if err := rules.CheckInitiateDeletion(acc); err != nil {
			return err
		}
		if err := s.accounts.MarkSoftDeleted(txCtx, tx, accountID, now, graceUntil, by, reason); err != nil {
			return err
		}
		flagged, err := s.dependents.Flag(txCtx, tx, accountID, now, now.Add(s.cfg.NoticeTTL))
		if err != nil {
			return fmt.Errorf("flag dependents: %w", err)
		}
		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID:  accountID,
			ActorID:    actorID,
			Name:       event,
			Props:      map[string]any{"reason": reason, "grace_until": graceUntil, "flagged": flagged},
			OccurredAt: now,
		})
	})
	if err != nil {
		return StatusView{}, err
	}

	s.invalidateSessions(ctx, accountID)
	return s.Status(ctx, accountID)
}

func (s *Service) Restore(ctx context.Context, accountID uuid.UUID) (StatusView, error) {
	if accountID == uuid.Nil {
		return StatusView{}, errs.ErrNotAuthenticated
	}
	if err := s.validate(); err != nil {
		return StatusView{}, err
	}

	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acc, err := s.accounts.GetForUpdate(txCtx, tx, accountID)
		if err != nil {
			return err
		}
		if err := rules.CheckRestore(acc, now); err != nil {
			return err
		}
		if err := s.accounts.ClearDeletion(txCtx, tx, accountID); err != nil {
			return err
		}
		restored, err := s.dependents.Unflag(txCtx, tx, accountID, now)
		if err != nil {
			return fmt.Errorf("unflag dependents: %w", err)
		}
		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID:  accountID,
			Name:       EventRestored,
			Props:      map[string]any{"restored": restored},
			OccurredAt: now,
		})
	})
	if err != nil {
		return StatusView{}, err
	}

	return s.Status(ctx, accountID)
}

// DeclineRecovery removes a soft-deleted account immediately instead of
// waiting for the sweep.
func (s *Service) DeclineRecovery(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errs.ErrNotAuthenticated
	}
	if err := s.validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	var avatarKey string
	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acc, err := s.accounts.GetForUpdate(txCtx, tx, accountID)
		if err != nil {
			return err
		}
		if err := rules.CheckDeclineRecovery(acc); err != nil {
			return err
		}
		avatarKey = acc.AvatarKey
		if err := s.dependents.Purge(txCtx, tx, accountID); err != nil {
			return err
		}
		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID:  accountID,
			Name:       EventRecoveryDeclined,
			OccurredAt: now,
		})
	})
	if err != nil {
		return err
	}

	s.invalidateSessions(ctx, accountID)
	s.removeAvatar(ctx, accountID, avatarKey)
	return nil
}

func (s *Service) Ban(ctx context.Context, moderatorID, accountID uuid.UUID, reason string) (StatusView, error) {
	if moderatorID == uuid.Nil {
		return StatusView{}, errs.ErrNotAuthenticated
	}
	if accountID == uuid.Nil || accountID == moderatorID {
		return StatusView{}, fmt.Errorf("moderator cannot ban this account: %w", errs.ErrValidation)
	}
	if err := s.validate(); err != nil {
		return StatusView{}, err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return StatusView{}, err
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acc, err := s.accounts.GetForUpdate(txCtx, tx, accountID)
		if err != nil {
			return err
		}
		if err := rules.CheckBan(acc); err != nil {
			return err
		}
		if err := s.accounts.MarkBanned(txCtx, tx, accountID, moderatorID, reason, now); err != nil {
			return err
		}
		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID:  accountID,
			ActorID:    &moderatorID,
			Name:       EventBanned,
			Props:      map[string]any{"reason": reason},
			OccurredAt: now,
		})
	})
	if err != nil {
		return StatusView{}, err
	}

	s.invalidateSessions(ctx, accountID)
	return s.Status(ctx, accountID)
}

// ExpireGracePeriod permanently removes every account whose grace window has
// closed, one transaction per account. Rows another sweeper holds are
// skipped and picked up on the next run.
func (s *Service) ExpireGracePeriod(ctx context.Context) (SweepResult, error) {
	if err := s.validate(); err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		now := s.now().UTC()
		ids, err := s.accounts.ListExpired(ctx, now, s.cfg.SweepBatch)
		if err != nil {
			return result, fmt.Errorf("list expired accounts: %w", err)
		}
		result.Scanned += len(ids)

		removedInBatch := 0
		for _, id := range ids {
			removed, err := s.expireOne(ctx, id, now)
			if err != nil {
				return result, fmt.Errorf("expire account %s: %w", id, err)
			}
			if removed {
				result.Removed++
				removedInBatch++
			} else {
				result.Skipped++
			}
		}

		if len(ids) < s.cfg.SweepBatch || removedInBatch == 0 {
			return result, nil
		}
	}
}

func (s *Service) expireOne(ctx context.Context, accountID uuid.UUID, now time.Time) (bool, error) {
	removed := false
	var avatarKey string
	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		acc, ok, err := s.accounts.LockExpired(txCtx, tx, accountID, now)
		if err != nil || !ok {
			return err
		}
		if err := rules.CheckExpire(acc, now); err != nil {
			return nil
		}
		avatarKey = acc.AvatarKey
		if err := s.dependents.Purge(txCtx, tx, accountID); err != nil {
			return err
		}
		if err := s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID:  accountID,
			Name:       EventPurged,
			Props:      map[string]any{"grace_until": acc.DeletionGraceUntil},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.removeAvatar(ctx, accountID, avatarKey)
	}
	return removed, nil
}

func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (StatusView, error) {
	if accountID == uuid.Nil {
		return StatusView{}, errs.ErrNotAuthenticated
	}
	if s.accounts == nil {
		return StatusView{}, fmt.Errorf("lifecycle dependencies are not configured")
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return StatusView{}, err
	}

	now := s.now().UTC()
	remaining := rules.GraceRemaining(acc, now)
	return StatusView{
		AccountID:          acc.ID,
		Status:             acc.Status,
		DeletedAt:          acc.DeletedAt,
		DeletionGraceUntil: acc.DeletionGraceUntil,
		DeletedBy:          acc.DeletedBy,
		GraceRemaining:     remaining,
		GraceRemainingSec:  int64(remaining / time.Second),
		CanRestore:         rules.CheckRestore(acc, now) == nil,
	}, nil
}

// invalidateSessions runs after commit. A failure is logged: the account is
// already soft-deleted and the gate refuses every action it attempts.
func (s *Service) invalidateSessions(ctx context.Context, accountID uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.LogoutAll(ctx, accountID); err != nil {
		s.logger.Warn("failed to invalidate sessions", zap.Error(err), zap.String("account_id", accountID.String()))
	}
}

func (s *Service) removeAvatar(ctx context.Context, accountID uuid.UUID, key string) {
	if s.avatars == nil || strings.TrimSpace(key) == "" {
		return
	}
	if err := s.avatars.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete avatar object", zap.Error(err), zap.String("account_id", accountID.String()), zap.String("object_key", key))
	}
}

func (s *Service) validate() error {
	if s.accounts == nil || s.dependents == nil || s.audit == nil || s.tx == nil {
		return fmt.Errorf("lifecycle dependencies are not configured")
	}
	return nil
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxReasonLen {
		return "", fmt.Errorf("reason is too long: %w", errs.ErrValidation)
	}
	return reason, nil
}
