// Package errs holds the error taxonomy shared by the account lifecycle and
// the interaction gate. Callers branch on Kind rather than on message text.
package errs

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidState       = errors.New("invalid state for requested transition")
	ErrAlreadyDeleted     = errors.New("account already deleted")
	ErrGracePeriodExpired = errors.New("grace period expired")
	ErrTerminalState      = errors.New("account is in a terminal state")
	ErrSlotsFull          = errors.New("connection slots are full")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyVouched     = errors.New("already vouched")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrNotFound           = errors.New("not found")
	ErrMessageCapReached  = errors.New("message cap reached")
	ErrValidation         = errors.New("validation error")
	ErrUnavailable        = errors.New("temporarily unavailable")
)

type Kind string

const (
	KindNone               Kind = ""
	KindNotAuthenticated   Kind = "NOT_AUTHENTICATED"
	KindInvalidState       Kind = "INVALID_STATE"
	KindAlreadyDeleted     Kind = "ALREADY_DELETED"
	KindGracePeriodExpired Kind = "GRACE_PERIOD_EXPIRED"
	KindTerminalState      Kind = "TERMINAL_STATE"
	KindSlotsFull          Kind = "SLOTS_FULL"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindAlreadyVouched     Kind = "ALREADY_VOUCHED"
	KindAlreadyConnected   Kind = "ALREADY_CONNECTED"
	KindNotFound           Kind = "NOT_FOUND"
	KindMessageCapReached  Kind = "MESSAGE_CAP_REACHED"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindUnavailable        Kind = "UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotAuthenticated, KindNotAuthenticated},
	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyDeleted, KindAlreadyDeleted},
	{ErrGracePeriodExpired, KindGracePeriodExpired},
	{ErrTerminalState, KindTerminalState},
	{ErrSlotsFull, KindSlotsFull},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrAlreadyVouched, KindAlreadyVouched},
	{ErrAlreadyConnected, KindAlreadyConnected},
	{ErrNotFound, KindNotFound},
	{ErrMessageCapReached, KindMessageCapReached},
	{ErrValidation, KindValidation},
	{ErrUnavailable, KindUnavailable},
}

// KindOf classifies err. Unknown non-nil errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// PaymentError carries the price attached to a gate refusal, so the caller can
// render a paywall or a top-up prompt.
type PaymentError struct {
	Err     error
	Cost    int64
	Balance int64
}

func (e PaymentError) Error() string {
	if e.Err == nil {
		return "payment required"
	}
	return e.Err.Error()
}

func (e PaymentError) Unwrap() error {
	return e.Err
}

func IsPayment(err error) (*PaymentError, bool) {
	var pe PaymentError
	if errors.As(err, &pe) {
		return &pe, true
	}
	return nil, false
}
