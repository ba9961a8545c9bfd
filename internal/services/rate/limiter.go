package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Window is one fixed counting window. Name becomes part of the redis key,
// so renaming a window resets its counters.
type Window struct {
	Name string
	Span time.Duration
	Max  int
}

// Limiter caps one named action per account over a set of fixed windows.
// An attempt is refused when any window is over its max.
type Limiter struct {
	store   WindowStore
	scope   string
	windows []Window
}

// NewLimiter is the common shape: a per-minute and a per-10-seconds cap.
// A zero limit drops that window.
func NewLimiter(store WindowStore, scope string, perMinute, per10Sec int) *Limiter {
	return NewWindowLimiter(store, scope,
		Window{Name: "min", Span: time.Minute, Max: perMinute},
		Window{Name: "10s", Span: 10 * time.Second, Max: per10Sec},
	)
}

func NewWindowLimiter(store WindowStore, scope string, windows ...Window) *Limiter {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}

	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Max > 0 && w.Span > 0 && w.Name != "" {
			active = append(active, w)
		}
	}

	return &Limiter{store: store, scope: scope, windows: active}
}

// Allow counts one attempt in every window. When the attempt is over a limit
// it returns the number of seconds until the slowest blocking window resets.
func (l *Limiter) Allow(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	if err := l.check(accountID); err != nil {
		return 0, false, err
	}

	var wait time.Duration
	for _, w := range l.windows {
		count, ttl, err := l.store.IncrementWindow(ctx, l.key(w, accountID), w.Span)
		if err != nil {
			return 0, false, fmt.Errorf("count %s window: %w", w.Name, err)
		}
		if count > int64(w.Max) {
			wait = max(wait, ttl)
		}
	}

	if wait > 0 {
		return ceilSeconds(wait), false, nil
	}
	return 0, true, nil
}

// RetryAfter reports the wait without counting an attempt.
func (l *Limiter) RetryAfter(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if err := l.check(accountID); err != nil {
		return 0, err
	}

	var wait time.Duration
	for _, w := range l.windows {
		count, ttl, err := l.store.WindowState(ctx, l.key(w, accountID))
		if err != nil {
			return 0, fmt.Errorf("read %s window: %w", w.Name, err)
		}
		if count >= int64(w.Max) {
			wait = max(wait, ttl)
		}
	}

	return ceilSeconds(wait), nil
}

func (l *Limiter) check(accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errors.New("invalid account id")
	}
	if l.store == nil {
		return errors.New("rate limiter store is nil")
	}
	return nil
}

func (l *Limiter) key(w Window, accountID uuid.UUID) string {
	return "kinship:rate:" + l.scope + ":" + w.Name + ":" + accountID.String()
}

// ceilSeconds rounds up so a client never retries a moment too early.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
