package errors

import (
	"encoding/json"
	"net/http"

	"github.com/ivankudzin/kinship/internal/domain/errs"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentRequiredError is the paywall body: what the action costs and what
// the caller has.
type PaymentRequiredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cost    int64  `json:"cost"`
	Balance int64  `json:"balance"`
}

type UnavailableError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Fallback      string `json:"fallback,omitempty"`
	RetryAfterSec int64  `json:"retry_after_sec,omitempty"`
}

var kindStatus = map[errs.Kind]int{
	errs.KindNotAuthenticated:   http.StatusUnauthorized,
	errs.KindNotFound:           http.StatusNotFound,
	errs.KindInvalidState:       http.StatusConflict,
	errs.KindAlreadyDeleted:     http.StatusConflict,
	errs.KindAlreadyConnected:   http.StatusConflict,
	errs.KindAlreadyVouched:     http.StatusConflict,
	errs.KindTerminalState:      http.StatusForbidden,
	errs.KindGracePeriodExpired: http.StatusGone,
	errs.KindSlotsFull:          http.StatusPaymentRequired,
	errs.KindInsufficientFunds:  http.StatusPaymentRequired,
	errs.KindMessageCapReached:  http.StatusPaymentRequired,
	errs.KindValidation:         http.StatusBadRequest,
	errs.KindUnavailable:        http.StatusServiceUnavailable,
}

var kindMessage = map[errs.Kind]string{
	errs.KindNotAuthenticated:   "authentication required",
	errs.KindNotFound:           "resource not found",
	errs.KindInvalidState:       "action is not allowed in the current state",
	errs.KindAlreadyDeleted:     "account is already deleted",
	errs.KindAlreadyConnected:   "a connection already exists",
	errs.KindAlreadyVouched:     "already vouched for this account",
	errs.KindTerminalState:      "account is banned",
	errs.KindGracePeriodExpired: "recovery window has closed",
	errs.KindSlotsFull:          "connection slots are full",
	errs.KindInsufficientFunds:  "not enough coins",
	errs.KindMessageCapReached:  "free messages for this thread are used up",
	errs.KindValidation:         "request validation failed",
	errs.KindUnavailable:        "service temporarily unavailable",
}

// StatusFor maps an error kind to its HTTP status. Unknown kinds are 500.
func StatusFor(kind errs.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func MessageFor(kind errs.Kind) string {
	if msg, ok := kindMessage[kind]; ok {
		return msg
	}
	return "internal server error"
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
