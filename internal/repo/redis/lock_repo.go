package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const lockPrefix = "locks:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepo is a single-holder lease. The token identifies the holder so a
// lease that expired and was taken over is never released by the old owner.
type LockRepo struct {
	client *goredis.Client
}

func NewLockRepo(client *goredis.Client) *LockRepo {
	return &LockRepo{client: client}
}

func (r *LockRepo) Acquire(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(token) == "" || ttl <= 0 {
		return false, fmt.Errorf("invalid lock payload")
	}

	ok, err := r.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

func (r *LockRepo) Release(ctx context.Context, name, token string) error {
	if r.client == nil {
		return errNilClient
	}

	if err := releaseScript.Run(ctx, r.client, []string{lockPrefix + name}, token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
