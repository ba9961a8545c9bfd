package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
)

// Key layout:
//
//	kinship:session:{sid}            hash  account_id, role, expires_at, refresh
//	kinship:refresh:{sha256(token)}  string sid
//	kinship:account_sessions:{id}    set of sids
//
// Refresh tokens are stored hashed so a dump of redis cannot be replayed.
const (
	sessionPrefix         = "kinship:session:"
	refreshPrefix         = "kinship:refresh:"
	accountSessionsPrefix = "kinship:account_sessions:"
)

type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || session.AccountID == uuid.Nil {
		return authsvc.ErrInvalidInput
	}

	ttl := ttlFor(session.ExpiresAt)
	refreshHash := hashToken(refreshToken)

	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		writeSession(ctx, pipe, session, refreshHash, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session %s: %w", session.SID, err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, errNilClient
	}
	if strings.TrimSpace(sid) == "" {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	values, err := r.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session %s: %w", sid, err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	return parseSession(sid, values)
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, errNilClient
	}
	if strings.TrimSpace(refreshToken) == "" {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}

	sid, err := r.client.Get(ctx, refreshKey(hashToken(refreshToken))).Result()
	if errors.Is(err, goredis.Nil) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("resolve refresh token: %w", err)
	}

	session, err := r.GetSession(ctx, sid)
	if errors.Is(err, authsvc.ErrSessionNotFound) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	return session, err
}

// RotateRefresh swaps the refresh token of sid. The old token is watched, so
// two concurrent rotations with the same token cannot both succeed.
func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(newRefreshToken) == "" {
		return authsvc.ErrInvalidInput
	}

	oldKey := refreshKey(hashToken(oldRefreshToken))
	newHash := hashToken(newRefreshToken)

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		owner, err := tx.Get(ctx, oldKey).Result()
		if errors.Is(err, goredis.Nil) {
			return authsvc.ErrRefreshNotFound
		}
		if err != nil {
			return err
		}
		if sid != "" && owner != sid {
			return authsvc.ErrRefreshNotFound
		}

		values, err := tx.HGetAll(ctx, sessionKey(owner)).Result()
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return authsvc.ErrRefreshNotFound
		}
		session, err := parseSession(owner, values)
		if err != nil {
			return err
		}
		session.ExpiresAt = expiresAt

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, oldKey)
			writeSession(ctx, pipe, session, newHash, ttlFor(expiresAt))
			return nil
		})
		return err
	}, oldKey)

	switch {
	case errors.Is(err, goredis.TxFailedErr):
		return authsvc.ErrRefreshNotFound
	case errors.Is(err, authsvc.ErrRefreshNotFound), errors.Is(err, authsvc.ErrUnauthorized):
		return err
	case err != nil:
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	values, err := r.client.HMGet(ctx, sessionKey(sid), "account_id", "refresh").Result()
	if err != nil {
		return fmt.Errorf("load session %s: %w", sid, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sid))
		if hash, ok := values[1].(string); ok && hash != "" {
			pipe.Del(ctx, refreshKey(hash))
		}
		if raw, ok := values[0].(string); ok {
			if accountID, err := uuid.Parse(raw); err == nil {
				pipe.SRem(ctx, accountSessionsKey(accountID), sid)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sid, err)
	}
	return nil
}

// DeleteAllForAccount drops every session of the account. Access tokens
// issued for those sessions stop validating immediately.
func (r *SessionRepo) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	if r.client == nil {
		return errNilClient
	}
	if accountID == uuid.Nil {
		return authsvc.ErrInvalidInput
	}

	setKey := accountSessionsKey(accountID)
	sids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list sessions of %s: %w", accountID, err)
	}
	if len(sids) == 0 {
		return nil
	}

	hashes := make([]*goredis.StringCmd, len(sids))
	_, err = r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, sid := range sids {
			hashes[i] = pipe.HGet(ctx, sessionKey(sid), "refresh")
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("load refresh pointers of %s: %w", accountID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, sid := range sids {
			pipe.Del(ctx, sessionKey(sid))
			if hash := hashes[i].Val(); hash != "" {
				pipe.Del(ctx, refreshKey(hash))
			}
		}
		pipe.Del(ctx, setKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete sessions of %s: %w", accountID, err)
	}
	return nil
}

func writeSession(ctx context.Context, pipe goredis.Pipeliner, session authsvc.SessionRecord, refreshHash string, ttl time.Duration) {
	key := sessionKey(session.SID)
	pipe.HSet(ctx, key,
		"account_id", session.AccountID.String(),
		"role", session.Role,
		"expires_at", strconv.FormatInt(session.ExpiresAt.Unix(), 10),
		"refresh", refreshHash,
	)
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, refreshKey(refreshHash), session.SID, ttl)
	pipe.SAdd(ctx, accountSessionsKey(session.AccountID), session.SID)
	pipe.Expire(ctx, accountSessionsKey(session.AccountID), ttl)
}

func parseSession(sid string, values map[string]string) (authsvc.SessionRecord, error) {
	accountID, err := uuid.Parse(values["account_id"])
	if err != nil || accountID == uuid.Nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}
	expiresUnix, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	return authsvc.SessionRecord{
		SID:       sid,
		AccountID: accountID,
		Role:      values["role"],
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func ttlFor(expiresAt time.Time) time.Duration {
	if ttl := time.Until(expiresAt); ttl > 0 {
		return ttl
	}
	return time.Second
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

func refreshKey(hash string) string {
	return refreshPrefix + hash
}

func accountSessionsKey(accountID uuid.UUID) string {
	return accountSessionsPrefix + accountID.String()
}
