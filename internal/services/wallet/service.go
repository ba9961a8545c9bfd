package wallet

import (
	"context"
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
	"github.com/ivankudzin/kinship/internal/domain/rules"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

const (
	EventPurchaseBegun     = "wallet.purchase_begun"
	EventPurchaseSucceeded = "wallet.purchase_succeeded"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxIdempotencyKey   = 128
)

var supportedProviders = map[string]struct{}{
	"dev":            {},
	"telegram_stars": {},
}

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
	SetGold(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type LedgerStore interface {
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LedgerEvent, error)
}

type PaymentStore interface {
	BeginPurchase(ctx context.Context, tx pgx.Tx, p pgrepo.BeginPurchaseParams) (pgrepo.PaymentTransactionRecord, bool, error)
	LockForConfirm(ctx context.Context, tx pgx.Tx, provider, providerEventID, idempotencyKey string) (pgrepo.PaymentTransactionRecord, error)
	MarkSucceeded(ctx context.Context, tx pgx.Tx, transactionID string, payload map[string]any) (pgrepo.PaymentTransactionRecord, error)
}

type AuditStore interface {
	Append(ctx context.Context, tx pgx.Tx, events ...model.AuditEvent) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// Pack is one purchasable item of the catalog. A pack grants coins, gold or
// both.
type Pack struct {
	SKU        string `json:"sku"`
	Coins      int64  `json:"coins"`
	PriceCents int64  `json:"price_cents"`
	Gold       bool   `json:"gold"`
}

type Config struct {
	Packs    []Pack
	Currency string
}

type Dependencies struct {
	Accounts AccountStore
	Ledger   LedgerStore
	Payments PaymentStore
	Audit    AuditStore
	Tx       Transactor
	Logger   *zap.Logger
}

type Service struct {
	accounts AccountStore
	ledger   LedgerStore
	payments PaymentStore
	audit    AuditStore
	tx       Transactor
	packs    map[string]Pack
	catalog  []Pack
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

type Summary struct {
	Balance int64               `json:"balance"`
	IsGold  bool                `json:"is_gold"`
	History []model.LedgerEvent `json:"history"`
	Packs   []Pack              `json:"packs"`
}

type BeginInput struct {
	SKU            string
	Provider       string
	IdempotencyKey string
}

type BeginResult struct {
	TransactionID string `json:"transaction_id"`
	SKU           string `json:"sku"`
	Provider      string `json:"provider"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Idempotent    bool   `json:"idempotent"`
}

type ConfirmInput struct {
	Provider        string
	ProviderEventID string
	IdempotencyKey  string
	Payload         map[string]any
}

type ConfirmResult struct {
	TransactionID   string    `json:"transaction_id"`
	AccountID       uuid.UUID `json:"account_id"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id"`
	SKU             string    `json:"sku"`
	Status          string    `json:"status"`
	CoinsCredited   int64     `json:"coins_credited"`
	Balance         int64     `json:"balance"`
	Gold            bool      `json:"gold"`
	Idempotent      bool      `json:"idempotent"`
}

func NewService(deps Dependencies, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}

	packs := make(map[string]Pack, len(cfg.Packs))
	catalog := make([]Pack, 0, len(cfg.Packs))
	for _, p := range cfg.Packs {
		p.SKU = normalizeSKU(p.SKU)
		if p.SKU == "" {
			continue
		}
		packs[p.SKU] = p
		catalog = append(catalog, p)
	}

	return &Service{
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		payments: deps.Payments,
		audit:    deps.Audit,
		tx:       deps.Tx,
		packs:    packs,
		catalog:  catalog,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Packs() []Pack {
	return append([]Pack(nil), s.catalog...)
}

func (s *Service) Summary(ctx context.Context, accountID uuid.UUID, limit int) (Summary, error) {
	if accountID == uuid.Nil {
		return Summary{}, errs.ErrNotAuthenticated
	}
	if s.accounts == nil || s.ledger == nil {
		return Summary{}, fmt.Errorf("wallet dependencies are not configured")
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Summary{}, errs.ErrNotAuthenticated
		}
		return Summary{}, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	history, err := s.ledger.History(ctx, accountID, limit)
	if err != nil {
		return Summary{}, err
	}
	if history == nil {
		history = []model.LedgerEvent{}
	}

	return Summary{
		Balance: acc.WalletBalance,
		IsGold:  acc.IsGold,
		History: history,
		Packs:   s.Packs(),
	}, nil
}

// BeginPurchase records a pending payment for a catalog pack. Replaying the
// same idempotency key returns the stored transaction.
func (s *Service) BeginPurchase(ctx context.Context, accountID uuid.UUID, in BeginInput) (BeginResult, error) {
	if accountID == uuid.Nil {
		return BeginResult{}, errs.ErrNotAuthenticated
	}
	if err := s.ready(); err != nil {
		return BeginResult{}, err
	}

	provider, err := normalizeProvider(in.Provider)
	if err != nil {
		return BeginResult{}, err
	}
	pack, ok := s.packs[normalizeSKU(in.SKU)]
	if !ok {
		return BeginResult{}, errs.ErrValidation
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > maxIdempotencyKey {
		return BeginResult{}, errs.ErrValidation
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return BeginResult{}, errs.ErrNotAuthenticated
		}
		return BeginResult{}, err
	}
	if err := rules.CheckActor(acc); err != nil {
		return BeginResult{}, err
	}

	var (
		record  pgrepo.PaymentTransactionRecord
		created bool
	)
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		record, created, err = s.payments.BeginPurchase(txCtx, tx, pgrepo.BeginPurchaseParams{
			AccountID:      accountID,
			Provider:       provider,
			ProductSKU:     pack.SKU,
			AmountCents:    pack.PriceCents,
			Currency:       s.currency,
			IdempotencyKey: key,
		})
		if err != nil {
			return err
		}
		if record.AccountID != accountID {
			return errs.ErrValidation
		}
		if !created {
			return nil
		}
		actor := accountID
		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID: accountID,
			ActorID:   &actor,
			Name:      EventPurchaseBegun,
			Props: map[string]any{
				"transaction_id": record.ID,
				"sku":            record.ProductSKU,
				"amount_cents":   record.AmountCents,
			},
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		return BeginResult{}, err
	}

	return BeginResult{
		TransactionID: record.ID,
		SKU:           record.ProductSKU,
		Provider:      record.Provider,
		AmountCents:   record.AmountCents,
		Currency:      record.Currency,
		Status:        record.Status,
		Idempotent:    !created,
	}, nil
}

// ConfirmPayment applies a provider confirmation. The pack grant, the status
// change and the audit row commit together, and a repeated confirmation for
// the same event returns the settled transaction without granting again.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	if err := s.ready(); err != nil {
		return ConfirmResult{}, err
	}

	provider, err := normalizeProvider(in.Provider)
	if err != nil {
		return ConfirmResult{}, err
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		return ConfirmResult{}, errs.ErrValidation
	}

	var out ConfirmResult
	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		record, err := s.payments.LockForConfirm(txCtx, tx, provider, eventID, in.IdempotencyKey)
		if err != nil {
			switch {
			case errors.Is(err, pgrepo.ErrPaymentTransactionNotFound):
				return errs.ErrNotFound
			case errors.Is(err, pgrepo.ErrProviderTxConflict):
				return errs.ErrInvalidState
			}
			return err
		}

		out = ConfirmResult{
			TransactionID:   record.ID,
			AccountID:       record.AccountID,
			Provider:        record.Provider,
			ProviderEventID: eventID,
			SKU:             record.ProductSKU,
			Status:          record.Status,
		}
		if record.Status == pgrepo.PaymentStatusSucceeded {
			out.Idempotent = true
			return nil
		}

		pack, ok := s.packs[record.ProductSKU]
		if !ok {
			return fmt.Errorf("pack %q is no longer in the catalog", record.ProductSKU)
		}

		now := s.now().UTC()
		if pack.Coins > 0 {
			balance, err := s.ledger.Credit(txCtx, tx, record.AccountID, pack.Coins, enums.LedgerReasonPurchase, record.ID, now)
			if err != nil {
				return err
			}
			out.CoinsCredited = pack.Coins
			out.Balance = balance
		}
		if pack.Gold {
			if err := s.accounts.SetGold(txCtx, tx, record.AccountID); err != nil {
				return err
			}
			out.Gold = true
		}

		payload := map[string]any{
			"coins": pack.Coins,
			"gold":  pack.Gold,
		}
		for k, v := range in.Payload {
			if _, taken := payload[k]; !taken {
				payload[k] = v
			}
		}
		updated, err := s.payments.MarkSucceeded(txCtx, tx, record.ID, payload)
		if err != nil {
			return err
		}
		out.Status = updated.Status

		return s.audit.Append(txCtx, tx, model.AuditEvent{
			AccountID: record.AccountID,
			Name:      EventPurchaseSucceeded,
			Props: map[string]any{
				"transaction_id":    record.ID,
				"provider_event_id": eventID,
				"sku":               record.ProductSKU,
				"coins":             pack.Coins,
				"gold":              pack.Gold,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	if out.Idempotent {
		s.logger.Info("payment confirmation replayed",
			zap.String("transaction_id", out.TransactionID),
			zap.String("provider_event_id", eventID),
		)
	}
	return out, nil
}

func (s *Service) ready() error {
	if s.accounts == nil || s.ledger == nil || s.payments == nil || s.audit == nil || s.tx == nil {
		return fmt.Errorf("wallet dependencies are not configured")
	}
	return nil
}

func normalizeProvider(raw string) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(raw))
	if provider == "" {
		provider = "dev"
	}
	if _, ok := supportedProviders[provider]; !ok {
		return "", errs.ErrValidation
	}
	return provider, nil
}

func normalizeSKU(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
