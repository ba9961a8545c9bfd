package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

const maxAuthBody = 16 << 10

type AuthHandler struct {
	service *authsvc.Service
}

func NewAuthHandler(service *authsvc.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	h.issue(w, r, &req, http.StatusCreated, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.Signup(ctx, authsvc.SignupInput{
			Email:            req.Email,
			Password:         req.Password,
			DisplayName:      req.DisplayName,
			Gender:           enums.Gender(req.Gender),
			Intent:           enums.Intent(req.Intent),
			Bio:              req.Bio,
			TelegramInitData: req.TelegramInitData,
		})
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	h.issue(w, r, &req, http.StatusOK, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.Login(ctx, req.Email, req.Password)
	})
}

// LoginTelegram signs in an account that linked its Telegram identity at
// signup, using the mini app init data.
func (h *AuthHandler) LoginTelegram(w http.ResponseWriter, r *http.Request) {
	var req dto.TelegramLoginRequest
	h.issue(w, r, &req, http.StatusOK, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.LoginTelegram(ctx, req.InitData)
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	h.issue(w, r, &req, http.StatusOK, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.Refresh(ctx, req.RefreshToken)
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.revoke(w, r, func(ctx context.Context, identity authsvc.Identity) error {
		return h.service.Logout(ctx, identity.SID)
	})
}

// LogoutAll ends every session of the caller, this one included.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	h.revoke(w, r, func(ctx context.Context, identity authsvc.Identity) error {
		return h.service.LogoutAll(ctx, identity.AccountID)
	})
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, req any, status int, call func(context.Context) (authsvc.AuthResult, error)) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBody)
	if err := decodeJSON(r, req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := call(r.Context())
	if err != nil {
		handleAuthError(w, err)
		return
	}
	httperrors.Write(w, status, tokensResponse(res, time.Now()))
}

func (h *AuthHandler) revoke(w http.ResponseWriter, r *http.Request, call func(context.Context, authsvc.Identity) error) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := call(r.Context(), identity); err != nil {
		handleAuthError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	case errors.Is(err, pgrepo.ErrIdentityTaken):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "IDENTITY_TAKEN",
			Message: "email or telegram account already registered",
		})
	case errors.Is(err, errs.ErrTerminalState):
		writeError(w, err)
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func tokensResponse(res authsvc.AuthResult, now time.Time) dto.AuthTokensResponse {
	return dto.AuthTokensResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresInSec: maxInt64(0, int64(res.AccessExpires.Sub(now)/time.Second)),
		Me: dto.AuthMeResponse{
			ID:     res.Me.ID,
			Role:   res.Me.Role,
			Status: res.Me.Status,
		},
	}
}
