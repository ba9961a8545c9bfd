package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
)

func newAuthHandlerForTest(t *testing.T) *AuthHandler {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memstore.New()
	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:        authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Sessions:   redrepo.NewSessionRepo(client),
		Accounts:   store.Accounts(),
		Identities: store.Identities(),
		Tx:         store,
	}, authsvc.Config{RefreshTTL: 30 * 24 * time.Hour, DefaultSlotsLimit: 3})
	return NewAuthHandler(svc)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw)))
	return rr
}

func TestSignupLoginRefresh(t *testing.T) {
	h := newAuthHandlerForTest(t)

	signup := dto.SignupRequest{
		Email:       "lena@example.com",
		Password:    "correct horse",
		DisplayName: "Lena",
		Gender:      "female",
		Intent:      "dating_for_marriage",
	}
	rr := postJSON(t, h.Signup, "/v1/auth/signup", signup)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var created dto.AuthTokensResponse
	decodeBody(t, rr, &created)
	if created.AccessToken == "" || created.Me.Status != "active" || created.ExpiresInSec <= 0 {
		t.Fatalf("unexpected signup response: %+v", created)
	}

	rr = postJSON(t, h.Signup, "/v1/auth/signup", signup)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: unexpected status %d", rr.Code)
	}

	rr = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Email: "lena@example.com", Password: "wrong password"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: unexpected status %d", rr.Code)
	}

	rr = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Email: "lena@example.com", Password: "correct horse"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var loggedIn dto.AuthTokensResponse
	decodeBody(t, rr, &loggedIn)
	if loggedIn.Me.ID != created.Me.ID {
		t.Fatalf("login returned another account: %s vs %s", loggedIn.Me.ID, created.Me.ID)
	}

	rr = postJSON(t, h.Refresh, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: loggedIn.RefreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: unexpected status %d", rr.Code)
	}
	rr = postJSON(t, h.Refresh, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: loggedIn.RefreshToken})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("rotated refresh token must not work twice, got %d", rr.Code)
	}
}

func TestSignupRejectsUnknownFields(t *testing.T) {
	h := newAuthHandlerForTest(t)

	rr := postJSON(t, h.Signup, "/v1/auth/signup", map[string]string{"email": "a@b.c", "role": "ADMIN"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	h := newAuthHandlerForTest(t)

	rr := postJSON(t, h.Signup, "/v1/auth/signup", dto.SignupRequest{
		Email:       "ada@example.com",
		Password:    "correct horse",
		DisplayName: "Ada",
		Gender:      "female",
		Intent:      "dating_for_marriage",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: unexpected status %d body=%s", rr.Code, rr.Body.String())
	}
	var first dto.AuthTokensResponse
	decodeBody(t, rr, &first)

	rr = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
	var second dto.AuthTokensResponse
	decodeBody(t, rr, &second)

	claims, err := h.service.ValidateAccessToken(context.Background(), second.AccessToken)
	if err != nil {
		t.Fatalf("validate second session: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout-all", nil)
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		AccountID: claims.AccountID,
		SID:       claims.SID,
		Role:      claims.Role,
	}))
	rr = httptest.NewRecorder()
	h.LogoutAll(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout-all: unexpected status %d", rr.Code)
	}

	for name, tokens := range map[string]dto.AuthTokensResponse{"first": first, "second": second} {
		if _, err := h.service.ValidateAccessToken(context.Background(), tokens.AccessToken); err == nil {
			t.Fatalf("%s access token still valid after logout-all", name)
		}
		rr = postJSON(t, h.Refresh, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tokens.RefreshToken})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s refresh after logout-all: got %d", name, rr.Code)
		}
	}
}

func TestTelegramLoginWithoutBotToken(t *testing.T) {
	h := newAuthHandlerForTest(t)

	rr := postJSON(t, h.LoginTelegram, "/v1/auth/telegram", dto.TelegramLoginRequest{InitData: "user=%7B%7D&hash=abc"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}
