package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
)

const (
	EventConnectionRequested = "gate.connection_requested"
	EventConnectionAccepted  = "gate.connection_accepted"
	EventConnectionRejected  = "gate.connection_rejected"
	EventDisconnected        = "gate.disconnected"
	EventBlocked             = "gate.blocked"
	EventSlotUnlocked        = "gate.slot_unlocked"
	EventContactShared       = "gate.contact_shared"
	EventCommented           = "gate.commented"
	EventVouched             = "gate.vouched"

	maxMessageLen  = 2000
	maxCommentLen  = 1000
	maxContactLen  = 200
	maxBlockReason = 500

	defaultIdempotencyTTL = 10 * time.Minute
	defaultListLimit      = 50
)

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Account, error)
	ConsumeSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	RaiseSlotsLimit(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	IncrementVouches(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
}

type ConnectionStore interface {
	Create(ctx context.Context, tx pgx.Tx, conn model.Connection) (model.Connection, error)
	Get(ctx context.Context, id uuid.UUID) (model.Connection, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Connection, error)
	FindLiveBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error)
	FindLatestBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (model.Connection, bool, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enums.ConnectionStatus, at time.Time) (model.Connection, error)
	Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason enums.ClosedReason, at time.Time) error
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Connection, error)
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error)
	CountBySender(ctx context.Context, tx pgx.Tx, connectionID, senderID uuid.UUID) (int, error)
	HasContactCard(ctx context.Context, tx pgx.Tx, connectionID uuid.UUID) (bool, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]model.Message, error)
}

type WalletStore interface {
	Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error)
}

type VouchStore interface {
	Insert(ctx context.Context, tx pgx.Tx, voucherID, targetID uuid.UUID, at time.Time) (bool, error)
	Exists(ctx context.Context, tx pgx.Tx, voucherID, targetID uuid.UUID) (bool, error)
}

type BlockStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, reason string, at time.Time) error
	ExistsEither(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (bool, error)
}

type CommentStore interface {
	AllowanceUsed(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, day time.Time) (int, error)
	ConsumeAllowance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, day time.Time, limit int) error
	Insert(ctx context.Context, tx pgx.Tx, c model.Comment) (model.Comment, error)
}

type PostStore interface {
	GetLive(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Post, error)
}

type NotificationStore interface {
	Create(ctx context.Context, tx pgx.Tx, n model.Notification) (model.Notification, error)
}

type AuditStore interface {
	Append(ctx context.Context, tx pgx.Tx, events ...model.AuditEvent) error
}

// IdempotencyStore replays the first answer to a client-keyed request.
type IdempotencyStore interface {
	Load(ctx context.Context, scope, key string) (string, bool, error)
	Save(ctx context.Context, scope, key, value string, ttl time.Duration) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Config struct {
	Policy         rules.Policy
	IdempotencyTTL time.Duration
}

type Dependencies struct {
	Accounts      AccountStore
	Connections   ConnectionStore
	Messages      MessageStore
	Wallet        WalletStore
	Vouches       VouchStore
	Blocks        BlockStore
	Comments      CommentStore
	Posts         PostStore
	Notifications NotificationStore
	Audit         AuditStore
	Idempotency   IdempotencyStore
	Tx            Transactor
	Logger        *zap.Logger
}

type Service struct {
	accounts      AccountStore
	connections   ConnectionStore
	messages      MessageStore
	wallet        WalletStore
	vouches       VouchStore
	blocks        BlockStore
	comments      CommentStore
	posts         PostStore
	notifications NotificationStore
	audit         AuditStore
	idempotency   IdempotencyStore
	tx            Transactor
	policy        rules.Policy
	idemTTL       time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	policy := withPolicyDefaults(cfg.Policy)
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		accounts:      deps.Accounts,
		connections:   deps.Connections,
		messages:      deps.Messages,
		wallet:        deps.Wallet,
		vouches:       deps.Vouches,
		blocks:        deps.Blocks,
		comments:      deps.Comments,
		posts:         deps.Posts,
		notifications: deps.Notifications,
		audit:         deps.Audit,
		idempotency:   deps.Idempotency,
		tx:            deps.Tx,
		policy:        policy,
		idemTTL:       cfg.IdempotencyTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// withPolicyDefaults fills each unset field on its own so a partial config
// keeps the values it does set.
func withPolicyDefaults(p rules.Policy) rules.Policy {
	def := rules.DefaultPolicy()
	if p == (rules.Policy{}) {
		return def
	}
	if p.FreeMessagesPerThread <= 0 {
		p.FreeMessagesPerThread = def.FreeMessagesPerThread
	}
	if p.FreeCommentsPerDay < 0 {
		p.FreeCommentsPerDay = def.FreeCommentsPerDay
	}
	if p.ContactShareCost <= 0 {
		p.ContactShareCost = def.ContactShareCost
	}
	if p.CommentCost <= 0 {
		p.CommentCost = def.CommentCost
	}
	if p.SlotUnlockCost <= 0 {
		p.SlotUnlockCost = def.SlotUnlockCost
	}
	return p
}

func (s *Service) Policy() rules.Policy {
	return s.policy
}

func (s *Service) validate() error {
	if s.accounts == nil || s.connections == nil || s.messages == nil || s.wallet == nil ||
		s.vouches == nil || s.blocks == nil || s.comments == nil || s.posts == nil ||
		s.notifications == nil || s.audit == nil || s.tx == nil {
		return fmt.Errorf("gate dependencies are not configured")
	}
	return nil
}

// begin runs fn in one transaction with the actor row locked. Every gate
// effect goes through here so a debit never outlives its effect.
func (s *Service) begin(ctx context.Context, actorID uuid.UUID, fn func(ctx context.Context, tx pgx.Tx, actor model.Account, now time.Time) error) error {
	if actorID == uuid.Nil {
		return errs.ErrNotAuthenticated
	}
	if err := s.validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	return s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		actor, err := s.accounts.GetForUpdate(txCtx, tx, actorID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrNotAuthenticated
			}
			return err
		}
		return fn(txCtx, tx, actor, now)
	})
}

// targetAvailable hides missing, deactivated and blocking targets behind the
// same answer.
func (s *Service) targetAvailable(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID) (model.Account, bool, error) {
	target, err := s.accounts.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Account{}, false, nil
		}
		return model.Account{}, false, err
	}
	if !target.IsActive() {
		return target, false, nil
	}
	blocked, err := s.blocks.ExistsEither(ctx, tx, actorID, targetID)
	if err != nil {
		return model.Account{}, false, err
	}
	return target, !blocked, nil
}

func (s *Service) notify(ctx context.Context, tx pgx.Tx, recipientID uuid.UUID, kind enums.NotificationKind, payload map[string]any, at time.Time) error {
	if _, err := s.notifications.Create(ctx, tx, model.Notification{
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     payload,
		CreatedAt:   at,
	}); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, name string, props map[string]any, at time.Time) error {
	return s.audit.Append(ctx, tx, model.AuditEvent{
		AccountID:  actorID,
		ActorID:    &actorID,
		Name:       name,
		Props:      props,
		OccurredAt: at,
	})
}

func normalizeText(raw string, maxLen int) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" || utf8.RuneCountInString(text) > maxLen {
		return "", errs.ErrValidation
	}
	return text, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultListLimit
	}
	return limit
}
