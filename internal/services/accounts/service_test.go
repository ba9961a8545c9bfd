package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

type urlStub struct{}

func (urlStub) URL(key string) string { return "https://cdn.test/" + key }

func strPtr(v string) *string { return &v }

func TestMeIncludesQuotasWalletAndAvatar(t *testing.T) {
	store := memstore.New()
	acc := store.Accounts().Seed(model.Account{
		DisplayName:   "Ann",
		AvatarKey:     "accounts/a/avatar/1.jpg",
		SlotsLimit:    3,
		SlotsUsed:     2,
		WalletBalance: 120,
	})
	svc := NewService(store.Accounts(), urlStub{})

	view, err := svc.Me(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if view.Slots.Remaining != 1 || view.Balance != 120 {
		t.Fatalf("unexpected quotas: %+v", view)
	}
	if view.AvatarURL != "https://cdn.test/accounts/a/avatar/1.jpg" {
		t.Fatalf("unexpected avatar url: %s", view.AvatarURL)
	}
	if view.Lifecycle.Status != enums.AccountStatusActive || view.Lifecycle.GraceRemaining != 0 {
		t.Fatalf("unexpected lifecycle: %+v", view.Lifecycle)
	}
}

func TestMeShowsGraceRemainingForSoftDeleted(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	graceUntil := now.Add(48 * time.Hour)
	acc := store.Accounts().Seed(model.Account{
		DisplayName:        "Ann",
		Status:             enums.AccountStatusSoftDeleted,
		DeletionGraceUntil: &graceUntil,
	})
	svc := NewService(store.Accounts(), nil)
	svc.now = func() time.Time { return now }

	view, err := svc.Me(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if view.Lifecycle.GraceRemaining != int64((48 * time.Hour).Seconds()) {
		t.Fatalf("unexpected grace remaining: %d", view.Lifecycle.GraceRemaining)
	}
}

func TestMeUnknownAccount(t *testing.T) {
	svc := NewService(memstore.New().Accounts(), nil)

	if _, err := svc.Me(context.Background(), uuid.New()); !errors.Is(err, errs.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestUpdateNormalizesFields(t *testing.T) {
	store := memstore.New()
	acc := store.Accounts().Seed(model.Account{DisplayName: "Ann", Intent: enums.IntentExploring})
	svc := NewService(store.Accounts(), nil)

	view, err := svc.Update(context.Background(), acc.ID, UpdateInput{
		DisplayName: strPtr("  Anna  "),
		Intent:      strPtr("Ready_For_Marriage"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.DisplayName != "Anna" || view.Intent != enums.IntentReadyForMarriage {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Bio != "" {
		t.Fatalf("bio should be untouched, got %q", view.Bio)
	}
}

func TestUpdateValidation(t *testing.T) {
	store := memstore.New()
	acc := store.Accounts().Seed(model.Account{DisplayName: "Ann"})
	svc := NewService(store.Accounts(), nil)

	zero := int64(0)
	cases := []struct {
		name string
		in   UpdateInput
	}{
		{"empty patch", UpdateInput{}},
		{"blank name", UpdateInput{DisplayName: strPtr("   ")}},
		{"long name", UpdateInput{DisplayName: strPtr(strings.Repeat("a", maxDisplayNameLen+1))}},
		{"unknown intent", UpdateInput{Intent: strPtr("casual")}},
		{"long bio", UpdateInput{Bio: strPtr(strings.Repeat("b", maxBioLen+1))}},
		{"zero chat id", UpdateInput{TelegramChatID: &zero}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(context.Background(), acc.ID, tc.in); !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateRejectsInactiveAccounts(t *testing.T) {
	store := memstore.New()
	deleted := store.Accounts().Seed(model.Account{DisplayName: "Gone", Status: enums.AccountStatusSoftDeleted})
	banned := store.Accounts().Seed(model.Account{DisplayName: "Bad", Status: enums.AccountStatusBanned})
	svc := NewService(store.Accounts(), nil)

	if _, err := svc.Update(context.Background(), deleted.ID, UpdateInput{Bio: strPtr("hi")}); !errors.Is(err, errs.ErrAlreadyDeleted) {
		t.Fatalf("expected already deleted, got %v", err)
	}
	if _, err := svc.Update(context.Background(), banned.ID, UpdateInput{Bio: strPtr("hi")}); !errors.Is(err, errs.ErrTerminalState) {
		t.Fatalf("expected terminal state, got %v", err)
	}
}
