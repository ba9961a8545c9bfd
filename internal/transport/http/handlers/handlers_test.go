package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/errs"
	assistantsvc "github.com/ivankudzin/kinship/internal/services/assistant"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
)

func withURLParam(ctx context.Context, key, value string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func authedRequest(t *testing.T, method, target string, accountID uuid.UUID, body any) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		AccountID: accountID,
		SID:       "sid-" + accountID.String(),
		Role:      "USER",
	}))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errs.ErrNotAuthenticated, http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{fmt.Errorf("restore: %w", errs.ErrGracePeriodExpired), http.StatusGone, "GRACE_PERIOD_EXPIRED"},
		{errs.ErrTerminalState, http.StatusForbidden, "TERMINAL_STATE"},
		{errs.ErrAlreadyDeleted, http.StatusConflict, "ALREADY_DELETED"},
		{errs.ErrAlreadyVouched, http.StatusConflict, "ALREADY_VOUCHED"},
		{errs.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errs.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{errs.ErrMessageCapReached, http.StatusPaymentRequired, "MESSAGE_CAP_REACHED"},
		{errors.New("pool closed"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: unexpected status: got %d want %d", tc.err, rr.Code, tc.status)
		}
		var payload struct {
			Code string `json:"code"`
		}
		decodeBody(t, rr, &payload)
		if payload.Code != tc.code {
			t.Fatalf("%v: unexpected code: got %q want %q", tc.err, payload.Code, tc.code)
		}
	}
}

func TestWriteErrorCarriesPaywallPrice(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, fmt.Errorf("share contact: %w", errs.PaymentError{Err: errs.ErrInsufficientFunds, Cost: 199, Balance: 40}))

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusPaymentRequired)
	}
	var payload struct {
		Code    string `json:"code"`
		Cost    int64  `json:"cost"`
		Balance int64  `json:"balance"`
	}
	decodeBody(t, rr, &payload)
	if payload.Code != "INSUFFICIENT_FUNDS" || payload.Cost != 199 || payload.Balance != 40 {
		t.Fatalf("unexpected paywall payload: %+v", payload)
	}
}

func TestWriteErrorCarriesAssistantFallback(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, &assistantsvc.BusyError{Fallback: "try later", RetryAfter: 12})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var payload struct {
		Fallback      string `json:"fallback"`
		RetryAfterSec int64  `json:"retry_after_sec"`
	}
	decodeBody(t, rr, &payload)
	if payload.Fallback != "try later" || payload.RetryAfterSec != 12 {
		t.Fatalf("unexpected busy payload: %+v", payload)
	}
}

func TestHandlersRequireIdentity(t *testing.T) {
	h := NewGateHandler(nil)
	rr := httptest.NewRecorder()
	h.ListConnections(rr, httptest.NewRequest(http.MethodGet, "/v1/connections", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAssistantSuggestReturnsFallbackWhenUnavailable(t *testing.T) {
	h := NewAssistantHandler(assistantsvc.NewService(nil, nil, "Assistant is resting.", nil))

	rr := httptest.NewRecorder()
	h.Suggest(rr, authedRequest(t, http.MethodPost, "/v1/assistant/suggest", uuid.New(), map[string]string{
		"kind": "bio",
	}))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var payload struct {
		Fallback string `json:"fallback"`
	}
	decodeBody(t, rr, &payload)
	if payload.Fallback != "Assistant is resting." {
		t.Fatalf("unexpected fallback: %q", payload.Fallback)
	}
}
