package notices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	tginfra "github.com/ivankudzin/kinship/internal/infra/telegram"
)

const defaultBatch = 100

type NoticeStore interface {
	ListPendingNotices(ctx context.Context, now time.Time, limit int) ([]model.PartnerNotice, error)
	MarkPartnerNotified(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
}

type NotificationStore interface {
	Create(ctx context.Context, tx pgx.Tx, n model.Notification) (model.Notification, error)
}

type Pusher interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Dependencies struct {
	Notices       NoticeStore
	Accounts      AccountStore
	Notifications NotificationStore
	Pusher        Pusher
	Tx            Transactor
	Logger        *zap.Logger
}

// Job tells the remaining partner of a connection that the other side is
// leaving. Each notice becomes an in-app notification and, when the partner
// linked a Telegram chat, a push message.
type Job struct {
	notices       NoticeStore
	accounts      AccountStore
	notifications NotificationStore
	pusher        Pusher
	tx            Transactor
	batch         int
	logger        *zap.Logger
	now           func() time.Time
}

type Result struct {
	Delivered int `json:"delivered"`
	Pushed    int `json:"pushed"`
	Dropped   int `json:"dropped"`
}

func New(deps Dependencies, batch int) *Job {
	if batch <= 0 {
		batch = defaultBatch
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		notices:       deps.Notices,
		accounts:      deps.Accounts,
		notifications: deps.Notifications,
		pusher:        deps.Pusher,
		tx:            deps.Tx,
		batch:         batch,
		logger:        logger,
		now:           time.Now,
	}
}

func (j *Job) Run(ctx context.Context) (Result, error) {
	if j.notices == nil || j.accounts == nil || j.notifications == nil || j.tx == nil {
		return Result{}, fmt.Errorf("notices dependencies are not configured")
	}

	pending, err := j.notices.ListPendingNotices(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return Result{}, fmt.Errorf("list partner notices: %w", err)
	}

	var res Result
	for _, notice := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		delivered, pushed, err := j.deliver(ctx, notice)
		if err != nil {
			return res, fmt.Errorf("deliver notice for connection %s: %w", notice.ConnectionID, err)
		}
		switch {
		case delivered:
			res.Delivered++
		default:
			res.Dropped++
		}
		if pushed {
			res.Pushed++
		}
	}

	if len(pending) > 0 {
		j.logger.Info("partner notices processed",
			zap.Int("delivered", res.Delivered),
			zap.Int("pushed", res.Pushed),
			zap.Int("dropped", res.Dropped),
		)
	}
	return res, nil
}

func (j *Job) deliver(ctx context.Context, notice model.PartnerNotice) (delivered, pushed bool, err error) {
	recipient, err := j.accounts.Get(ctx, notice.RecipientID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return false, false, err
	}
	if err != nil || !recipient.IsActive() {
		// nobody left to tell
		return false, false, j.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
			return j.notices.MarkPartnerNotified(txCtx, tx, notice.ConnectionID)
		})
	}

	departingName := ""
	if departing, err := j.accounts.Get(ctx, notice.DepartingID); err == nil {
		departingName = departing.DisplayName
	}

	err = j.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		_, err := j.notifications.Create(txCtx, tx, model.Notification{
			ID:          uuid.New(),
			RecipientID: recipient.ID,
			Kind:        enums.NotificationPartnerLeaving,
			Payload: map[string]any{
				"connection_id": notice.ConnectionID.String(),
				"partner_id":    notice.DepartingID.String(),
				"partner_name":  departingName,
				"expires_at":    notice.ExpiresAt.UTC(),
			},
			CreatedAt: j.now().UTC(),
		})
		if err != nil {
			return err
		}
		return j.notices.MarkPartnerNotified(txCtx, tx, notice.ConnectionID)
	})
	if err != nil {
		return false, false, err
	}

	if j.pusher != nil && recipient.TelegramChatID != nil {
		err := j.pusher.SendText(ctx, *recipient.TelegramChatID, pushText(departingName))
		switch {
		case err == nil:
			pushed = true
		case errors.Is(err, tginfra.ErrChatUnreachable):
			j.logger.Info("partner notice push skipped, chat unreachable",
				zap.String("account_id", recipient.ID.String()),
			)
		default:
			j.logger.Warn("partner notice push failed",
				zap.String("account_id", recipient.ID.String()),
				zap.Error(err),
			)
		}
	}
	return true, pushed, nil
}

func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("partner notices failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("partner notices failed", zap.Error(err))
			}
		}
	}
}

func pushText(partnerName string) string {
	if partnerName == "" {
		return "A connection of yours is leaving the community. Open the app to say goodbye."
	}
	return partnerName + " is leaving the community. Open the app to say goodbye."
}
