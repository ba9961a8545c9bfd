package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ivankudzin/kinship/internal/domain/model"
	walletsvc "github.com/ivankudzin/kinship/internal/services/wallet"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

func newWalletHandlerForTest(secret string) (*WalletHandler, *memstore.Store) {
	store := memstore.New()
	svc := walletsvc.NewService(walletsvc.Dependencies{
		Accounts: store.Accounts(),
		Ledger:   store.Wallet(),
		Payments: store.Payments(),
		Audit:    store.Audit(),
		Tx:       store,
	}, walletsvc.Config{
		Currency: "USD",
		Packs:    []walletsvc.Pack{{SKU: "coins_200", Coins: 200, PriceCents: 199}},
	})
	return NewWalletHandler(svc, secret), store
}

func webhookRequest(t *testing.T, secret string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/purchases/webhook", bytes.NewReader(raw))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	return req
}

func TestPurchaseBeginAndWebhookCreditOnce(t *testing.T) {
	h, store := newWalletHandlerForTest("hook-secret")
	acc := store.Accounts().Seed(model.Account{DisplayName: "Ira", WalletBalance: 10})

	req := authedRequest(t, http.MethodPost, "/v1/purchases", acc.ID, map[string]string{"sku": "coins_200"})
	req.Header.Set("Idempotency-Key", "buy-1")
	rr := httptest.NewRecorder()
	h.BeginPurchase(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("begin: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	body := map[string]any{
		"provider":          "dev",
		"provider_event_id": "evt-1",
		"idempotency_key":   "buy-1",
	}
	for i := 0; i < 2; i++ {
		rr = httptest.NewRecorder()
		h.Webhook(rr, webhookRequest(t, "hook-secret", body))
		if rr.Code != http.StatusOK {
			t.Fatalf("webhook %d: unexpected status %d body=%s", i, rr.Code, rr.Body.String())
		}
	}

	var res walletsvc.ConfirmResult
	decodeBody(t, rr, &res)
	if !res.Idempotent {
		t.Fatalf("second webhook should be idempotent: %+v", res)
	}

	got, err := store.Accounts().Get(req.Context(), acc.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.WalletBalance != 210 {
		t.Fatalf("expected one credit, balance=%d", got.WalletBalance)
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	h, _ := newWalletHandlerForTest("hook-secret")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(t, "guess", map[string]any{"provider": "dev", "provider_event_id": "evt-1"}))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestWebhookUnknownTransactionIsNotFound(t *testing.T) {
	h, _ := newWalletHandlerForTest("")

	rr := httptest.NewRecorder()
	h.Webhook(rr, webhookRequest(t, "", map[string]any{
		"provider":          "dev",
		"provider_event_id": "evt-404",
		"idempotency_key":   "never-begun",
	}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}
