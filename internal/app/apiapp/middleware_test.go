package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

func TestRequireRoleAllowsCaseInsensitiveMatch(t *testing.T) {
	mw := RequireRole("MODERATOR", "ADMIN")

	req := httptest.NewRequest(http.MethodPost, "/admin/accounts/x/ban", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		AccountID: uuid.New(),
		SID:       "sid-1",
		Role:      "moderator",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequireRoleRejectsForbiddenRole(t *testing.T) {
	mw := RequireRole("MODERATOR", "ADMIN")

	req := httptest.NewRequest(http.MethodPost, "/admin/accounts/x/ban", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		AccountID: uuid.New(),
		SID:       "sid-2",
		Role:      "user",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called for forbidden role")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole("ADMIN")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without identity")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware(t *testing.T) {
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
	}, authsvc.Config{RefreshTTL: time.Hour, DefaultSlotsLimit: 3})

	res, err := svc.Signup(context.Background(), authsvc.SignupInput{
		Email:       "mira@example.com",
		Password:    "long enough",
		DisplayName: "Mira",
		Gender:      enums.GenderFemale,
		Intent:      enums.IntentExploring,
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	mw := AuthMiddleware(svc, zap.NewNop())
	var seen authsvc.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authsvc.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + res.AccessToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		mw(next).ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s: unexpected status: got %d want %d", tc.name, rr.Code, tc.status)
		}
	}

	if seen.AccountID != res.Me.ID {
		t.Fatalf("identity not propagated: got %s want %s", seen.AccountID, res.Me.ID)
	}
}
