package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_AllEnvVarsSet(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_API_KEY", "test-token")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("POLL_DURATION", "60")
	t.Setenv("BOT_PASSPHRASE", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TelegramToken != "test-token" {
		t.Errorf("TelegramToken = %q, want %q", cfg.TelegramToken, "test-token")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.PollDuration != 60 {
		t.Errorf("PollDuration = %d, want 60", cfg.PollDuration)
	}
	if cfg.Passphrase != "secret" {
		t.Errorf("Passphrase = %q, want %q", cfg.Passphrase, "secret")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_API_KEY", "test-token")
	t.Setenv("DB_PATH", "/tmp/test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Signature != DefaultSignature {
		t.Errorf("Signature = %q, want %q", cfg.Signature, DefaultSignature)
	}
	if cfg.PollDuration != DefaultPollDuration {
		t.Errorf("PollDuration = %d, want %d", cfg.PollDuration, DefaultPollDuration)
	}
	if cfg.DailyCiteHour != DefaultDailyCiteHour {
		t.Errorf("DailyCiteHour = %d, want %d", cfg.DailyCiteHour, DefaultDailyCiteHour)
	}
	if cfg.WebhookMode() {
		t.Error("webhook mode enabled without a public URL")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_API_KEY", "")
	t.Setenv("DB_PATH", "/tmp/test.db")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"poll duration too short", "POLL_DURATION", "4"},
		{"poll duration too long", "POLL_DURATION", "601"},
		{"poll duration not a number", "POLL_DURATION", "five"},
		{"daily hour out of range", "DAILY_CITE_HOUR", "24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_API_KEY", "test-token")
			t.Setenv("DB_PATH", "/tmp/test.db")
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citebot.yaml")
	content := `
telegram_token: file-token
db_path: /data/citebot.db
signature: "@file_bot"
poll_duration: 120
daily_cite_hour: -1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TELEGRAM_BOT_API_KEY", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("POLL_DURATION", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TelegramToken != "file-token" {
		t.Errorf("TelegramToken = %q, want %q", cfg.TelegramToken, "file-token")
	}
	if cfg.Signature != "@file_bot" {
		t.Errorf("Signature = %q, want %q", cfg.Signature, "@file_bot")
	}
	if cfg.PollDuration != 30 {
		t.Errorf("PollDuration = %d, want env override 30", cfg.PollDuration)
	}
	if cfg.DailyCiteHour != -1 {
		t.Errorf("DailyCiteHour = %d, want -1", cfg.DailyCiteHour)
	}
}
