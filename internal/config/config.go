package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSignature     = "@digitek_citation_bot"
	DefaultPollDuration  = 300
	DefaultWebhookListen = ":8443"
	DefaultDailyCiteHour = 10

	minPollDuration = 5
	maxPollDuration = 600
)

type Config struct {
	TelegramToken    string `yaml:"telegram_token"`
	DBPath           string `yaml:"db_path"`
	Passphrase       string `yaml:"passphrase"`
	Signature        string `yaml:"signature"`
	PollDuration     int    `yaml:"poll_duration"`
	WebhookPublicURL string `yaml:"webhook_public_url"`
	WebhookListen    string `yaml:"webhook_listen"`
	SentryDSN        string `yaml:"sentry_dsn"`
	DailyCiteHour    int    `yaml:"daily_cite_hour"` // -1 disables the citation of the day
	LogLevel         string `yaml:"log_level"`
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_PATH and the environment, later sources winning. A .env file in the
// working directory is loaded into the environment first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Signature:     DefaultSignature,
		PollDuration:  DefaultPollDuration,
		WebhookListen: DefaultWebhookListen,
		DailyCiteHour: DefaultDailyCiteHour,
		LogLevel:      "debug",
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.readEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) readEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_API_KEY": &c.TelegramToken,
		"DB_PATH":              &c.DBPath,
		"BOT_PASSPHRASE":       &c.Passphrase,
		"BOT_SIGNATURE":        &c.Signature,
		"WEBHOOK_PUBLIC_URL":   &c.WebhookPublicURL,
		"WEBHOOK_LISTEN":       &c.WebhookListen,
		"SENTRY_DSN":           &c.SentryDSN,
		"LOG_LEVEL":            &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"POLL_DURATION":   &c.PollDuration,
		"DAILY_CITE_HOUR": &c.DailyCiteHour,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", name, err)
		}
		*dst = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_API_KEY is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.PollDuration < minPollDuration || c.PollDuration > maxPollDuration {
		return fmt.Errorf("POLL_DURATION must be between %d and %d seconds, got %d", minPollDuration, maxPollDuration, c.PollDuration)
	}
	if c.DailyCiteHour < -1 || c.DailyCiteHour > 23 {
		return fmt.Errorf("DAILY_CITE_HOUR must be between 0 and 23, or -1 to disable, got %d", c.DailyCiteHour)
	}
	return nil
}

// WebhookMode reports whether updates arrive through a webhook instead of
// long polling.
func (c *Config) WebhookMode() bool {
	return c.WebhookPublicURL != ""
}
