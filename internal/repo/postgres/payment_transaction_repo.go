package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSucceeded = "SUCCEEDED"
)

const paymentColumns = `
	id,
	account_id,
	provider,
	provider_event_id,
	idempotency_key,
	amount_cents,
	currency,
	product_sku,
	status,
	result_payload,
	created_at,
	updated_at`

type PaymentTransactionRepo struct {
	pool *pgxpool.Pool
}

type PaymentTransactionRecord struct {
	ID              string
	AccountID       uuid.UUID
	Provider        string
	ProviderEventID *string
	IdempotencyKey  string
	AmountCents     int64
	Currency        string
	ProductSKU      string
	Status          string
	ResultPayload   map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type BeginPurchaseParams struct {
	AccountID      uuid.UUID
	Provider       string
	ProductSKU     string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

func NewPaymentTransactionRepo(pool *pgxpool.Pool) *PaymentTransactionRepo {
	return &PaymentTransactionRepo{pool: pool}
}

// BeginPurchase is idempotent on the client key: a replay returns the stored
// row with created=false.
func (r *PaymentTransactionRepo) BeginPurchase(ctx context.Context, tx pgx.Tx, p BeginPurchaseParams) (PaymentTransactionRecord, bool, error) {
	if tx == nil {
		return PaymentTransactionRecord{}, false, errTxRequired
	}
	if p.AccountID == uuid.Nil || p.AmountCents <= 0 {
		return PaymentTransactionRecord{}, false, fmt.Errorf("invalid begin purchase payload")
	}

	provider := strings.ToLower(strings.TrimSpace(p.Provider))
	productSKU := strings.ToLower(strings.TrimSpace(p.ProductSKU))
	idempotencyKey := strings.TrimSpace(p.IdempotencyKey)
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "USD"
	}
	if provider == "" || productSKU == "" || idempotencyKey == "" {
		return PaymentTransactionRecord{}, false, fmt.Errorf("invalid begin purchase payload")
	}

	txID := uuid.NewString()
	record, err := collectPayment(tx.Query(ctx, `
INSERT INTO payment_transactions (
	id,
	account_id,
	provider,
	idempotency_key,
	amount_cents,
	currency,
	product_sku,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', NOW(), NOW())
ON CONFLICT (idempotency_key) DO UPDATE
SET updated_at = payment_transactions.updated_at
RETURNING `+paymentColumns, txID, p.AccountID, provider, idempotencyKey, p.AmountCents, currency, productSKU))
	if err != nil {
		return PaymentTransactionRecord{}, false, fmt.Errorf("begin purchase transaction: %w", err)
	}

	created := strings.EqualFold(record.ID, txID)
	return record, created, nil
}

// LockForConfirm finds the transaction by provider event first and falls back
// to the client idempotency key, binding the event id on first sight.
func (r *PaymentTransactionRepo) LockForConfirm(ctx context.Context, tx pgx.Tx, provider, providerEventID, idempotencyKey string) (PaymentTransactionRecord, error) {
	if tx == nil {
		return PaymentTransactionRecord{}, errTxRequired
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerEventID = strings.TrimSpace(providerEventID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if provider == "" || providerEventID == "" {
		return PaymentTransactionRecord{}, fmt.Errorf("invalid confirm payload")
	}

	rec, err := collectPayment(tx.Query(ctx, `
SELECT `+paymentColumns+`
FROM payment_transactions
WHERE provider = $1
  AND provider_event_id = $2
FOR UPDATE
`, provider, providerEventID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PaymentTransactionRecord{}, fmt.Errorf("lock payment transaction by provider_event_id: %w", err)
	}
	if idempotencyKey == "" {
		return PaymentTransactionRecord{}, ErrPaymentTransactionNotFound
	}

	rec, err = collectPayment(tx.Query(ctx, `
SELECT `+paymentColumns+`
FROM payment_transactions
WHERE provider = $1
  AND idempotency_key = $2
FOR UPDATE
`, provider, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentTransactionRecord{}, ErrPaymentTransactionNotFound
		}
		return PaymentTransactionRecord{}, fmt.Errorf("lock payment transaction by idempotency_key: %w", err)
	}

	if rec.ProviderEventID != nil && strings.TrimSpace(*rec.ProviderEventID) != "" {
		if *rec.ProviderEventID != providerEventID {
			return PaymentTransactionRecord{}, ErrProviderTxConflict
		}
		return rec, nil
	}

	if _, err := tx.Exec(ctx, `
UPDATE payment_transactions
SET
	provider_event_id = $2,
	updated_at = NOW()
WHERE id = $1
`, rec.ID, providerEventID); err != nil {
		if isUniqueViolation(err) {
			return PaymentTransactionRecord{}, ErrProviderTxConflict
		}
		return PaymentTransactionRecord{}, fmt.Errorf("bind provider event id: %w", err)
	}

	rec.ProviderEventID = &providerEventID
	return rec, nil
}

func (r *PaymentTransactionRepo) MarkSucceeded(ctx context.Context, tx pgx.Tx, transactionID string, payload map[string]any) (PaymentTransactionRecord, error) {
	if tx == nil {
		return PaymentTransactionRecord{}, errTxRequired
	}

	payloadJSON, err := marshalAnyPayload(payload)
	if err != nil {
		return PaymentTransactionRecord{}, err
	}

	rec, err := collectPayment(tx.Query(ctx, `
UPDATE payment_transactions
SET
	status = 'SUCCEEDED',
	result_payload = $2::jsonb,
	updated_at = NOW()
WHERE id = $1
RETURNING `+paymentColumns, transactionID, payloadJSON))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentTransactionRecord{}, ErrPaymentTransactionNotFound
		}
		return PaymentTransactionRecord{}, fmt.Errorf("mark payment transaction succeeded: %w", err)
	}
	return rec, nil
}

// paymentRow mirrors paymentColumns for pgx.RowToStructByName.
type paymentRow struct {
	ID              string    `db:"id"`
	AccountID       uuid.UUID `db:"account_id"`
	Provider        string    `db:"provider"`
	ProviderEventID *string   `db:"provider_event_id"`
	IdempotencyKey  string    `db:"idempotency_key"`
	AmountCents     int64     `db:"amount_cents"`
	Currency        string    `db:"currency"`
	ProductSKU      string    `db:"product_sku"`
	Status          string    `db:"status"`
	ResultPayload   []byte    `db:"result_payload"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func collectPayment(rows pgx.Rows, err error) (PaymentTransactionRecord, error) {
	if err != nil {
		return PaymentTransactionRecord{}, err
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[paymentRow])
	if err != nil {
		return PaymentTransactionRecord{}, err
	}
	return PaymentTransactionRecord{
		ID:              row.ID,
		AccountID:       row.AccountID,
		Provider:        row.Provider,
		ProviderEventID: row.ProviderEventID,
		IdempotencyKey:  row.IdempotencyKey,
		AmountCents:     row.AmountCents,
		Currency:        row.Currency,
		ProductSKU:      row.ProductSKU,
		Status:          row.Status,
		ResultPayload:   decodeAnyPayload(row.ResultPayload),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}
