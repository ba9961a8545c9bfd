package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

const (
	MinRefreshTTL = 30 * 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour

	minPasswordLen = 8
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

type AccountStore interface {
	Create(ctx context.Context, tx pgx.Tx, acc model.Account) error
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
}

type IdentityStore interface {
	Create(ctx context.Context, tx pgx.Tx, rec pgrepo.IdentityRecord) error
	FindByEmail(ctx context.Context, email string) (pgrepo.IdentityRecord, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (pgrepo.IdentityRecord, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Config struct {
	RefreshTTL        time.Duration
	BotToken          string
	AdminEmails       []string
	DefaultSlotsLimit int
}

type Dependencies struct {
	JWT        *JWTManager
	Sessions   SessionStore
	Accounts   AccountStore
	Identities IdentityStore
	Tx         Transactor
}

type SignupInput struct {
	Email            string
	Password         string
	DisplayName      string
	Gender           enums.Gender
	Intent           enums.Intent
	Bio              string
	TelegramInitData string
}

type Service struct {
	jwt        *JWTManager
	sessions   SessionStore
	accounts   AccountStore
	identities IdentityStore
	tx         Transactor
	cfg        Config
	admins     map[string]struct{}
	now        func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.RefreshTTL < MinRefreshTTL {
		cfg.RefreshTTL = MinRefreshTTL
	}
	if cfg.RefreshTTL > MaxRefreshTTL {
		cfg.RefreshTTL = MaxRefreshTTL
	}
	if cfg.DefaultSlotsLimit < 0 {
		cfg.DefaultSlotsLimit = 0
	}

	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = struct{}{}
		}
	}

	return &Service{
		jwt:        deps.JWT,
		sessions:   deps.Sessions,
		accounts:   deps.Accounts,
		identities: deps.Identities,
		tx:         deps.Tx,
		cfg:        cfg,
		admins:     admins,
		now:        time.Now,
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if s.accounts == nil || s.identities == nil || s.tx == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthResult{}, fmt.Errorf("email is invalid: %w", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return AuthResult{}, fmt.Errorf("password is too short: %w", ErrInvalidInput)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > 64 {
		return AuthResult{}, fmt.Errorf("display name is invalid: %w", ErrInvalidInput)
	}
	if !in.Gender.Valid() || !in.Intent.Valid() {
		return AuthResult{}, fmt.Errorf("gender or intent is invalid: %w", ErrInvalidInput)
	}

	var telegramID *int64
	if strings.TrimSpace(in.TelegramInitData) != "" {
		id, err := s.resolveTelegram(in.TelegramInitData)
		if err != nil {
			return AuthResult{}, err
		}
		telegramID = &id
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	role := enums.RoleUser
	if _, ok := s.admins[email]; ok {
		role = enums.RoleAdmin
	}

	now := s.now().UTC()
	acc := model.Account{
		ID:             uuid.New(),
		DisplayName:    displayName,
		Gender:         in.Gender,
		Intent:         in.Intent,
		Bio:            strings.TrimSpace(in.Bio),
		TelegramChatID: telegramID,
		Role:           role,
		Status:         enums.AccountStatusActive,
		SlotsLimit:     s.cfg.DefaultSlotsLimit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		if err := s.accounts.Create(txCtx, tx, acc); err != nil {
			return err
		}
		return s.identities.Create(txCtx, tx, pgrepo.IdentityRecord{
			AccountID:    acc.ID,
			Email:        email,
			PasswordHash: hash,
			TelegramID:   telegramID,
		})
	})
	if err != nil {
		return AuthResult{}, err
	}

	return s.issueForAccount(ctx, acc)
}

// Login accepts soft-deleted accounts so their owners can restore them.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	if s.identities == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return AuthResult{}, ErrInvalidInput
	}

	rec, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("find identity: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrUnauthorized
	}

	return s.loginAccount(ctx, rec.AccountID)
}

func (s *Service) LoginTelegram(ctx context.Context, initData string) (AuthResult, error) {
	if s.identities == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}

	telegramID, err := s.resolveTelegram(initData)
	if err != nil {
		return AuthResult{}, err
	}

	rec, err := s.identities.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("find telegram identity: %w", err)
	}

	return s.loginAccount(ctx, rec.AccountID)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("get refresh token session: %w", err)
	}
	if session.Expired(s.now()) {
		return AuthResult{}, ErrUnauthorized
	}

	newRefreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	newExpiresAt := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.RotateRefresh(ctx, session.SID, refreshToken, newRefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session.AccountID, session.SID, session.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:   session.AccountID,
			Role: session.Role,
		},
	}, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}

	if !session.Matches(claims) || session.Expired(s.now()) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) loginAccount(ctx context.Context, accountID uuid.UUID) (AuthResult, error) {
	if s.accounts == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("load account: %w", err)
	}
	if acc.Status == enums.AccountStatusBanned {
		return AuthResult{}, errs.ErrTerminalState
	}

	return s.issueForAccount(ctx, acc)
}

func (s *Service) resolveTelegram(initData string) (int64, error) {
	if err := ValidateTelegramInitData(initData, s.cfg.BotToken, s.now(), DefaultInitDataMaxAge); err != nil {
		return 0, err
	}
	return ResolveTelegramUserID(initData)
}

func (s *Service) issueForAccount(ctx context.Context, acc model.Account) (AuthResult, error) {
	sessionID, err := NewSessionID()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate session id: %w", err)
	}
	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	role := string(acc.Role)
	session := SessionRecord{
		SID:       sessionID,
		AccountID: acc.ID,
		Role:      role,
		ExpiresAt: s.now().Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, session, refreshToken); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(acc.ID, sessionID, role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:     acc.ID,
			Role:   role,
			Status: string(acc.Status),
		},
	}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
