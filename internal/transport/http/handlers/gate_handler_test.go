package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	gatesvc "github.com/ivankudzin/kinship/internal/services/gate"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

func newGateHandlerForTest(t *testing.T) (*GateHandler, *memstore.Store) {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memstore.New()
	svc := gatesvc.NewService(gatesvc.Dependencies{
		Accounts:      store.Accounts(),
		Connections:   store.Connections(),
		Messages:      store.Messages(),
		Wallet:        store.Wallet(),
		Vouches:       store.Vouches(),
		Blocks:        store.Blocks(),
		Comments:      store.Comments(),
		Posts:         store.Posts(),
		Notifications: store.Notifications(),
		Audit:         store.Audit(),
		Idempotency:   redrepo.NewIdempotencyRepo(client),
		Tx:            store,
	}, gatesvc.Config{Policy: rules.DefaultPolicy()})

	return NewGateHandler(svc), store
}

func TestRequestConnectionReplaysIdempotencyKey(t *testing.T) {
	h, store := newGateHandlerForTest(t)
	alice := store.Accounts().Seed(model.Account{DisplayName: "Alice", SlotsLimit: 3})
	bob := store.Accounts().Seed(model.Account{DisplayName: "Bob", SlotsLimit: 3})

	send := func() *httptest.ResponseRecorder {
		req := authedRequest(t, http.MethodPost, "/v1/connections", alice.ID, map[string]any{"target_id": bob.ID})
		req.Header.Set("Idempotency-Key", "req-1")
		rr := httptest.NewRecorder()
		h.RequestConnection(rr, req)
		return rr
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d body=%s", first.Code, http.StatusCreated, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("replay should answer 200, got %d", second.Code)
	}

	var payload gatesvc.RequestResult
	decodeBody(t, second, &payload)
	if !payload.Replayed || payload.SlotsUsed != 1 {
		t.Fatalf("unexpected replay payload: %+v", payload)
	}
}

func TestRequestConnectionSlotsFullIsPaymentRequired(t *testing.T) {
	h, store := newGateHandlerForTest(t)
	alice := store.Accounts().Seed(model.Account{DisplayName: "Alice", SlotsLimit: 1, SlotsUsed: 1, WalletBalance: 5})
	bob := store.Accounts().Seed(model.Account{DisplayName: "Bob", SlotsLimit: 3})

	rr := httptest.NewRecorder()
	h.RequestConnection(rr, authedRequest(t, http.MethodPost, "/v1/connections", alice.ID, map[string]any{"target_id": bob.ID}))

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusPaymentRequired)
	}
	var payload struct {
		Code    string `json:"code"`
		Cost    int64  `json:"cost"`
		Balance int64  `json:"balance"`
	}
	decodeBody(t, rr, &payload)
	if payload.Code != "SLOTS_FULL" || payload.Cost != 99 {
		t.Fatalf("unexpected paywall payload: %+v", payload)
	}
}

func TestAcceptRejectsMalformedConnectionID(t *testing.T) {
	h, store := newGateHandlerForTest(t)
	bob := store.Accounts().Seed(model.Account{DisplayName: "Bob"})

	req := authedRequest(t, http.MethodPost, "/v1/connections/nope/accept", bob.ID, nil)
	req = req.WithContext(withURLParam(req.Context(), "id", "nope"))
	rr := httptest.NewRecorder()
	h.Accept(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMessageFlowThroughHandlers(t *testing.T) {
	h, store := newGateHandlerForTest(t)
	alice := store.Accounts().Seed(model.Account{DisplayName: "Alice", SlotsLimit: 3})
	bob := store.Accounts().Seed(model.Account{DisplayName: "Bob", SlotsLimit: 3})

	rr := httptest.NewRecorder()
	h.RequestConnection(rr, authedRequest(t, http.MethodPost, "/v1/connections", alice.ID, map[string]any{"target_id": bob.ID}))
	var created gatesvc.RequestResult
	decodeBody(t, rr, &created)
	connID := created.Connection.ID.String()

	req := authedRequest(t, http.MethodPost, "/v1/connections/"+connID+"/accept", bob.ID, nil)
	rr = httptest.NewRecorder()
	h.Accept(rr, req.WithContext(withURLParam(req.Context(), "id", connID)))
	if rr.Code != http.StatusOK {
		t.Fatalf("accept: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	req = authedRequest(t, http.MethodPost, "/v1/connections/"+connID+"/messages", alice.ID, map[string]string{"content": "hi Bob"})
	rr = httptest.NewRecorder()
	h.SendMessage(rr, req.WithContext(withURLParam(req.Context(), "id", connID)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("send: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	req = authedRequest(t, http.MethodGet, "/v1/connections/"+connID+"/thread", alice.ID, nil)
	rr = httptest.NewRecorder()
	h.Thread(rr, req.WithContext(withURLParam(req.Context(), "id", connID)))
	var state gatesvc.ThreadState
	decodeBody(t, rr, &state)
	if state.SentCount != 1 || state.Limit != 10 || state.Locked {
		t.Fatalf("unexpected thread state: %+v", state)
	}
}

func TestPreviewValidatesAction(t *testing.T) {
	h, store := newGateHandlerForTest(t)
	alice := store.Accounts().Seed(model.Account{DisplayName: "Alice"})

	rr := httptest.NewRecorder()
	h.Preview(rr, authedRequest(t, http.MethodGet, "/v1/gate/preview?action=teleport", alice.ID, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}

	rr = httptest.NewRecorder()
	h.Preview(rr, authedRequest(t, http.MethodGet, "/v1/gate/preview?action="+string(enums.GateActionUnlockSlot), alice.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload gatesvc.PreviewResult
	decodeBody(t, rr, &payload)
	if payload.Cost != 99 {
		t.Fatalf("unexpected preview: %+v", payload)
	}
}
