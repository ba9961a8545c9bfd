package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/model"
	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

func newLifecycleHandlerForTest() (*LifecycleHandler, *memstore.Store) {
	store := memstore.New()
	svc := lifecyclesvc.NewService(lifecyclesvc.Dependencies{
		Accounts:   store.Accounts(),
		Dependents: store.Dependents(),
		Audit:      store.Audit(),
		Tx:         store,
	}, lifecyclesvc.Config{NoticeTTL: 7 * 24 * time.Hour, SweepBatch: 10})
	return NewLifecycleHandler(svc), store
}

func TestDeleteThenRestoreThroughHandlers(t *testing.T) {
	h, store := newLifecycleHandlerForTest()
	acc := store.Accounts().Seed(model.Account{DisplayName: "Nadia"})

	rr := httptest.NewRecorder()
	h.Delete(rr, authedRequest(t, http.MethodPost, "/v1/account/delete", acc.ID, map[string]string{"reason": "met someone"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var deleted lifecyclesvc.StatusView
	decodeBody(t, rr, &deleted)
	if deleted.Status != enums.AccountStatusSoftDeleted || !deleted.CanRestore || deleted.GraceRemainingSec <= 0 {
		t.Fatalf("unexpected delete view: %+v", deleted)
	}

	rr = httptest.NewRecorder()
	h.Status(rr, authedRequest(t, http.MethodGet, "/v1/account/lifecycle", acc.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: unexpected status %d", rr.Code)
	}
	var current lifecyclesvc.StatusView
	decodeBody(t, rr, &current)
	if current.Status != enums.AccountStatusSoftDeleted || !current.CanRestore {
		t.Fatalf("status view does not show pending deletion: %+v", current)
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, authedRequest(t, http.MethodPost, "/v1/account/delete", acc.ID, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("second delete: unexpected status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Restore(rr, authedRequest(t, http.MethodPost, "/v1/account/restore", acc.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var restored lifecyclesvc.StatusView
	decodeBody(t, rr, &restored)
	if restored.Status != enums.AccountStatusActive {
		t.Fatalf("unexpected restore view: %+v", restored)
	}
}

func TestRestoreAfterGraceIsGone(t *testing.T) {
	h, store := newLifecycleHandlerForTest()
	deletedAt := time.Now().UTC().Add(-31 * 24 * time.Hour)
	graceUntil := deletedAt.Add(30 * 24 * time.Hour)
	acc := store.Accounts().Seed(model.Account{
		Status:             enums.AccountStatusSoftDeleted,
		DeletedAt:          &deletedAt,
		DeletionGraceUntil: &graceUntil,
	})

	rr := httptest.NewRecorder()
	h.Restore(rr, authedRequest(t, http.MethodPost, "/v1/account/restore", acc.ID, nil))
	if rr.Code != http.StatusGone {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusGone)
	}
}

func TestDeleteRejectsOverlongReason(t *testing.T) {
	h, store := newLifecycleHandlerForTest()
	acc := store.Accounts().Seed(model.Account{})

	rr := httptest.NewRecorder()
	h.Delete(rr, authedRequest(t, http.MethodPost, "/v1/account/delete", acc.ID, map[string]string{"reason": strings.Repeat("x", 2000)}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAdminBanIsTerminal(t *testing.T) {
	h, store := newLifecycleHandlerForTest()
	moderator := store.Accounts().Seed(model.Account{Role: enums.RoleModerator})
	target := store.Accounts().Seed(model.Account{DisplayName: "Spammer"})

	req := authedRequest(t, http.MethodPost, "/admin/accounts/"+target.ID.String()+"/ban", moderator.ID, map[string]string{"reason": "spam"})
	rr := httptest.NewRecorder()
	h.AdminBan(rr, req.WithContext(withURLParam(req.Context(), "id", target.ID.String())))
	if rr.Code != http.StatusOK {
		t.Fatalf("ban: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, authedRequest(t, http.MethodPost, "/v1/account/delete", target.ID, nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("banned delete: unexpected status %d", rr.Code)
	}
}
