package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrIdentityTaken              = errors.New("email or telegram account already registered")
	ErrPaymentTransactionNotFound = errors.New("payment transaction not found")
	ErrProviderTxConflict         = errors.New("provider event already attached to another transaction")
	ErrAllowanceExhausted         = errors.New("daily comment allowance exhausted")

	errTxRequired = errors.New("transaction is required")
)

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

// isRetryableTxError covers serialization_failure and deadlock_detected.
func isRetryableTxError(err error) bool {
	switch pgErrorCode(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
