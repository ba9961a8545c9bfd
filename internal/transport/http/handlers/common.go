package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/errs"
	assistantsvc "github.com/ivankudzin/kinship/internal/services/assistant"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

const idempotencyHeader = "Idempotency-Key"

// writeError renders any service error. Payment refusals carry the price and
// the caller's balance; an assistant outage carries the fallback text.
func writeError(w http.ResponseWriter, err error) {
	if busy, ok := assistantsvc.IsBusy(err); ok {
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.UnavailableError{
			Code:          string(errs.KindUnavailable),
			Message:       "assistant is busy",
			Fallback:      busy.Fallback,
			RetryAfterSec: busy.RetryAfter,
		})
		return
	}

	kind := errs.KindOf(err)
	status := httperrors.StatusFor(kind)
	if pe, ok := errs.IsPayment(err); ok && status == http.StatusPaymentRequired {
		httperrors.Write(w, status, httperrors.PaymentRequiredError{
			Code:    string(kind),
			Message: httperrors.MessageFor(kind),
			Cost:    pe.Cost,
			Balance: pe.Balance,
		})
		return
	}

	httperrors.Write(w, status, httperrors.APIError{
		Code:    string(kind),
		Message: httperrors.MessageFor(kind),
	})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || identity.AccountID == uuid.Nil {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

// queryLimit reads ?limit=. Missing or malformed values fall back to 0 so
// the service applies its own default.
func queryLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
