package memstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

type Wallet struct {
	s *Store
}

func (r *Wallet) Debit(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive")
	}
	acc, ok := r.s.st.accounts[accountID]
	if !ok || acc.WalletBalance < amount {
		return 0, errs.ErrInsufficientFunds
	}
	acc.WalletBalance -= amount
	r.s.st.accounts[accountID] = acc
	r.append(accountID, -amount, reason, refID, at)
	return acc.WalletBalance, nil
}

func (r *Wallet) Credit(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, amount int64, reason enums.LedgerReason, refID string, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive")
	}
	acc, ok := r.s.st.accounts[accountID]
	if !ok {
		return 0, errs.ErrNotFound
	}
	acc.WalletBalance += amount
	r.s.st.accounts[accountID] = acc
	r.append(accountID, amount, reason, refID, at)
	return acc.WalletBalance, nil
}

func (r *Wallet) History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LedgerEvent, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]model.LedgerEvent, 0)
	for i := len(r.s.st.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if ev := r.s.st.ledger[i]; ev.AccountID == accountID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *Wallet) append(accountID uuid.UUID, delta int64, reason enums.LedgerReason, refID string, at time.Time) {
	r.s.st.ledger = append(r.s.st.ledger, model.LedgerEvent{
		ID:        r.s.st.nextSeq(),
		AccountID: accountID,
		Delta:     delta,
		Reason:    reason,
		RefID:     refID,
		CreatedAt: at.UTC(),
	})
}

type Payments struct {
	s *Store
}

func (r *Payments) BeginPurchase(ctx context.Context, _ pgx.Tx, p pgrepo.BeginPurchaseParams) (pgrepo.PaymentTransactionRecord, bool, error) {
	defer r.s.lock(ctx)()

	key := strings.TrimSpace(p.IdempotencyKey)
	if p.AccountID == uuid.Nil || p.AmountCents <= 0 || key == "" {
		return pgrepo.PaymentTransactionRecord{}, false, fmt.Errorf("invalid begin purchase payload")
	}
	for _, rec := range r.s.st.payments {
		if rec.IdempotencyKey == key {
			return rec, false, nil
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	rec := pgrepo.PaymentTransactionRecord{
		ID:             uuid.NewString(),
		AccountID:      p.AccountID,
		Provider:       strings.ToLower(strings.TrimSpace(p.Provider)),
		IdempotencyKey: key,
		AmountCents:    p.AmountCents,
		Currency:       currency,
		ProductSKU:     strings.ToLower(strings.TrimSpace(p.ProductSKU)),
		Status:         pgrepo.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.st.payments[rec.ID] = rec
	return rec, true, nil
}

func (r *Payments) LockForConfirm(ctx context.Context, _ pgx.Tx, provider, providerEventID, idempotencyKey string) (pgrepo.PaymentTransactionRecord, error) {
	defer r.s.lock(ctx)()

	provider = strings.ToLower(strings.TrimSpace(provider))
	for _, rec := range r.s.st.payments {
		if rec.Provider == provider && rec.ProviderEventID != nil && *rec.ProviderEventID == providerEventID {
			return rec, nil
		}
	}
	for id, rec := range r.s.st.payments {
		if rec.Provider != provider || idempotencyKey == "" || rec.IdempotencyKey != idempotencyKey {
			continue
		}
		if rec.ProviderEventID != nil {
			return pgrepo.PaymentTransactionRecord{}, pgrepo.ErrProviderTxConflict
		}
		event := providerEventID
		rec.ProviderEventID = &event
		r.s.st.payments[id] = rec
		return rec, nil
	}
	return pgrepo.PaymentTransactionRecord{}, pgrepo.ErrPaymentTransactionNotFound
}

func (r *Payments) MarkSucceeded(ctx context.Context, _ pgx.Tx, transactionID string, payload map[string]any) (pgrepo.PaymentTransactionRecord, error) {
	defer r.s.lock(ctx)()

	rec, ok := r.s.st.payments[transactionID]
	if !ok {
		return pgrepo.PaymentTransactionRecord{}, pgrepo.ErrPaymentTransactionNotFound
	}
	rec.Status = pgrepo.PaymentStatusSucceeded
	rec.ResultPayload = payload
	rec.UpdatedAt = time.Now().UTC()
	r.s.st.payments[transactionID] = rec
	return rec, nil
}

type Audit struct {
	s *Store
}

func (r *Audit) Append(ctx context.Context, _ pgx.Tx, events ...model.AuditEvent) error {
	defer r.s.lock(ctx)()

	if err := r.s.fail("audit.append"); err != nil {
		return err
	}
	r.s.st.audit = append(r.s.st.audit, events...)
	return nil
}
