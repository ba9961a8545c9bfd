package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idem:"

// IdempotencyRepo remembers the result of a client-keyed request for a while
// so a retried call can be answered without repeating side effects.
type IdempotencyRepo struct {
	client *goredis.Client
}

func NewIdempotencyRepo(client *goredis.Client) *IdempotencyRepo {
	return &IdempotencyRepo{client: client}
}

func (r *IdempotencyRepo) Load(ctx context.Context, scope, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, errNilClient
	}

	value, err := r.client.Get(ctx, idempotencyKey(scope, key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load idempotency key: %w", err)
	}
	return value, true, nil
}

func (r *IdempotencyRepo) Save(ctx context.Context, scope, key, value string, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(key) == "" || ttl <= 0 {
		return fmt.Errorf("invalid idempotency payload")
	}

	if err := r.client.Set(ctx, idempotencyKey(scope, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return idempotencyPrefix + scope + ":" + strings.TrimSpace(key)
}
