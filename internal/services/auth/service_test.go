package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

const testBotToken = "123456:test-bot-token"

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	signup, err := svc.Signup(ctx, validSignup("ann@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if signup.Me.Status != string(enums.AccountStatusActive) {
		t.Fatalf("unexpected status: %s", signup.Me.Status)
	}

	login, err := svc.Login(ctx, "ANN@example.com ", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Me.ID != signup.Me.ID {
		t.Fatalf("login returned another account")
	}

	if _, err := svc.Login(ctx, "ann@example.com", "wrong password"); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}
	if _, err := svc.Signup(ctx, validSignup("ann@example.com")); !errors.Is(err, pgrepo.ErrIdentityTaken) {
		t.Fatalf("expected identity taken, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	in := validSignup("bob@example.com")
	in.Password = "short"
	if _, err := svc.Signup(context.Background(), in); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	in = validSignup("not-an-email")
	if _, err := svc.Signup(context.Background(), in); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("expected invalid input for email, got %v", err)
	}
}

func TestAdminEmailGetsAdminRole(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)

	res, err := svc.Signup(context.Background(), validSignup("root@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Me.Role != string(enums.RoleAdmin) {
		t.Fatalf("expected admin role, got %s", res.Me.Role)
	}
}

func TestLoginStatusRules(t *testing.T) {
	svc, store := newAuthServiceForTest(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, validSignup("carol@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	now := time.Now().UTC()
	if err := store.Accounts().MarkSoftDeleted(ctx, nil, res.Me.ID, now, now.Add(time.Hour), enums.DeletedBySelf, ""); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	login, err := svc.Login(ctx, "carol@example.com", "correct horse")
	if err != nil {
		t.Fatalf("soft-deleted account must be able to log in: %v", err)
	}
	if login.Me.Status != string(enums.AccountStatusSoftDeleted) {
		t.Fatalf("unexpected status: %s", login.Me.Status)
	}

	banned := store.Accounts().Seed(model.Account{DisplayName: "Dan", Status: enums.AccountStatusBanned})
	if err := store.Identities().Create(ctx, nil, pgrepo.IdentityRecord{AccountID: banned.ID, Email: "dan@example.com", PasswordHash: mustHash(t)}); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	if _, err := svc.Login(ctx, "dan@example.com", "correct horse"); !errors.Is(err, errs.ErrTerminalState) {
		t.Fatalf("expected terminal state for banned login, got %v", err)
	}
}

func TestTelegramLinkAndLogin(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	initData := signedInitData(1001, time.Now())
	in := validSignup("erin@example.com")
	in.TelegramInitData = initData
	signup, err := svc.Signup(ctx, in)
	if err != nil {
		t.Fatalf("signup with telegram: %v", err)
	}

	login, err := svc.LoginTelegram(ctx, signedInitData(1001, time.Now()))
	if err != nil {
		t.Fatalf("telegram login: %v", err)
	}
	if login.Me.ID != signup.Me.ID {
		t.Fatalf("telegram login returned another account")
	}

	if _, err := svc.LoginTelegram(ctx, signedInitData(2002, time.Now())); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("unknown telegram user must be unauthorized, got %v", err)
	}

	tampered := initData + "&extra=1"
	if _, err := svc.LoginTelegram(ctx, tampered); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("tampered init data must be unauthorized, got %v", err)
	}

	if _, err := svc.LoginTelegram(ctx, signedInitData(1001, time.Now().Add(-48*time.Hour))); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("stale init data must be unauthorized, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	loginRes, err := svc.Signup(ctx, validSignup("frank@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutAllInvalidatesEverySession(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	first, err := svc.Signup(ctx, validSignup("gina@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	second, err := svc.Login(ctx, "gina@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.LogoutAll(ctx, first.Me.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	for i, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := svc.ValidateAccessToken(ctx, token); !errors.Is(err, authsvc.ErrUnauthorized) {
			t.Fatalf("session %d should be unauthorized after logout all, got %v", i, err)
		}
	}
	if _, err := svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("refresh after logout all should be unauthorized, got %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	loginRes, err := svc.Signup(ctx, validSignup("hank@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

func validSignup(email string) authsvc.SignupInput {
	return authsvc.SignupInput{
		Email:       email,
		Password:    "correct horse",
		DisplayName: "Tester",
		Gender:      enums.GenderFemale,
		Intent:      enums.IntentDatingForMarriage,
	}
}

func signedInitData(telegramUserID int64, authAt time.Time) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authAt.Unix(), 10))
	values.Set("query_id", "AAH")
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"T"}`, telegramUserID))
	return authsvc.SignTelegramInitData(values, testBotToken)
}

func mustHash(t *testing.T) string {
	t.Helper()
	hash, err := authsvc.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func newAuthServiceForTest(t *testing.T) (*authsvc.Service, *memstore.Store) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mini.Close()
	})

	store := memstore.New()
	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:        authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Sessions:   redrepo.NewSessionRepo(client),
		Accounts:   store.Accounts(),
		Identities: store.Identities(),
		Tx:         store,
	}, authsvc.Config{
		RefreshTTL:        45 * 24 * time.Hour,
		BotToken:          testBotToken,
		AdminEmails:       []string{"root@example.com"},
		DefaultSlotsLimit: 3,
	})

	return svc, store
}
