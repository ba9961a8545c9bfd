package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
lifecycle:
  sweep_interval: 2h
  sweep_batch: 25
gate:
  free_messages_per_thread: 12
  contact_share_cost: 250
assistant:
  model: local-small
payments:
  packs:
    - sku: coins_50
      coins: 50
      price_cents: 99
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Lifecycle.SweepInterval != 2*time.Hour {
		t.Fatalf("unexpected sweep interval: %s", cfg.Lifecycle.SweepInterval)
	}
	if cfg.Lifecycle.SweepBatch != 25 {
		t.Fatalf("unexpected sweep batch: %d", cfg.Lifecycle.SweepBatch)
	}
	if cfg.Gate.FreeMessagesPerThread != 12 {
		t.Fatalf("unexpected free messages per thread: %d", cfg.Gate.FreeMessagesPerThread)
	}
	if cfg.Gate.ContactShareCost != 250 {
		t.Fatalf("unexpected contact share cost: %d", cfg.Gate.ContactShareCost)
	}
	if cfg.Assistant.Model != "local-small" {
		t.Fatalf("unexpected assistant model: %s", cfg.Assistant.Model)
	}
	if len(cfg.Payments.Packs) != 1 || cfg.Payments.Packs[0].SKU != "coins_50" {
		t.Fatalf("unexpected packs: %+v", cfg.Payments.Packs)
	}

	if cfg.Gate.DefaultSlotsLimit != 3 {
		t.Fatalf("default slots limit should stay 3")
	}
	if cfg.Gate.CommentCost != 9 {
		t.Fatalf("comment cost should stay 9")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Gate.FreeMessagesPerThread != 10 {
		t.Fatalf("unexpected default free messages: %d", cfg.Gate.FreeMessagesPerThread)
	}
	if cfg.Gate.ContactShareCost != 199 {
		t.Fatalf("unexpected default contact share cost: %d", cfg.Gate.ContactShareCost)
	}
	if cfg.Gate.SlotUnlockCost != 99 {
		t.Fatalf("unexpected default slot unlock cost: %d", cfg.Gate.SlotUnlockCost)
	}
	if cfg.Lifecycle.SweepInterval != 6*time.Hour {
		t.Fatalf("unexpected default sweep interval: %s", cfg.Lifecycle.SweepInterval)
	}
	if len(cfg.Payments.Packs) != 3 {
		t.Fatalf("unexpected default packs: %d", len(cfg.Payments.Packs))
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWEEP_INTERVAL", "90m")
	t.Setenv("GATE_FREE_MESSAGES", "5")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com ,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Lifecycle.SweepInterval != 90*time.Minute {
		t.Fatalf("unexpected sweep interval: %s", cfg.Lifecycle.SweepInterval)
	}
	if cfg.Gate.FreeMessagesPerThread != 5 {
		t.Fatalf("unexpected free messages: %d", cfg.Gate.FreeMessagesPerThread)
	}
	if len(cfg.Auth.AdminEmails) != 2 || cfg.Auth.AdminEmails[1] != "b@example.com" {
		t.Fatalf("unexpected admin emails: %v", cfg.Auth.AdminEmails)
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWEEP_BATCH", "many")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected parse error for SWEEP_BATCH")
	}
}

func TestLoadRejectsSweepIntervalLongerThanADay(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SWEEP_INTERVAL", "36h")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for sweep interval above 24h")
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when jwt secret is the default in production")
	}
}

func TestLoadRejectsPackWithoutGrant(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
payments:
  packs:
    - sku: empty
      price_cents: 100
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for pack that grants neither coins nor gold")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_PUBLIC_BASE_URL",
		"S3_USE_SSL",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"ADMIN_EMAILS",
		"SWEEP_INTERVAL",
		"SWEEP_BATCH",
		"PARTNER_NOTICE_TTL",
		"GATE_DEFAULT_SLOTS",
		"GATE_FREE_MESSAGES",
		"GATE_FREE_COMMENTS_PER_DAY",
		"ASSISTANT_BASE_URL",
		"ASSISTANT_API_KEY",
		"ASSISTANT_MODEL",
		"ASSISTANT_TIMEOUT",
		"BOT_TOKEN",
		"PAYMENTS_WEBHOOK_SECRET",
	} {
		t.Setenv(key, "")
	}
}
