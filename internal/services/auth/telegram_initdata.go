package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultInitDataMaxAge = 24 * time.Hour

// ValidateTelegramInitData checks the Mini App launch payload signature as
// described by the Bot API: HMAC-SHA256 over the sorted key=value lines,
// keyed with HMAC("WebAppData", botToken).
func ValidateTelegramInitData(initData, botToken string, now time.Time, maxAge time.Duration) error {
	if strings.TrimSpace(initData) == "" {
		return fmt.Errorf("init data is empty: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(botToken) == "" {
		return fmt.Errorf("telegram sign-in is not configured: %w", ErrInvalidInput)
	}

	values, err := url.ParseQuery(strings.TrimSpace(initData))
	if err != nil {
		return fmt.Errorf("parse init data: %w", ErrInvalidInput)
	}
	hash := values.Get("hash")
	if hash == "" {
		return fmt.Errorf("init data hash is missing: %w", ErrUnauthorized)
	}

	expected := signInitData(values, botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return ErrUnauthorized
	}

	if maxAge > 0 {
		authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return fmt.Errorf("init data auth_date is invalid: %w", ErrUnauthorized)
		}
		if now.Sub(time.Unix(authUnix, 0)) > maxAge {
			return fmt.Errorf("init data expired: %w", ErrUnauthorized)
		}
	}
	return nil
}

func ResolveTelegramUserID(initData string) (int64, error) {
	values, err := url.ParseQuery(strings.TrimSpace(initData))
	if err != nil {
		return 0, fmt.Errorf("parse init data: %w", ErrInvalidInput)
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return 0, fmt.Errorf("init data has no user: %w", ErrInvalidInput)
	}
	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(rawUser), &payload); err != nil || payload.ID <= 0 {
		return 0, fmt.Errorf("init data user is invalid: %w", ErrInvalidInput)
	}
	return payload.ID, nil
}

// SignTelegramInitData returns a copy of values with a valid hash attached.
func SignTelegramInitData(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k == "hash" {
			continue
		}
		signed[k] = v
	}
	signed.Set("hash", signInitData(signed, botToken))
	return signed.Encode()
}

func signInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
