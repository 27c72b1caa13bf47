package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseDSN:       "user:pass@tcp(localhost:3306)/whalescan",
		RTDSURL:           "wss://ws-live-data.polymarket.com",
		WhaleThresholdUSD: 10000,
		KeepAliveInterval: 5 * time.Second,
		DataTimeout:       300 * time.Second,
		AlertMode:         "log",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectedErr string
		description string
	}{
		{
			name:        "valid defaults",
			mutate:      func(c *Config) {},
			description: "The baseline config must pass",
		},
		{
			name:        "missing DSN",
			mutate:      func(c *Config) { c.DatabaseDSN = "" },
			expectedErr: "DATABASE_DSN",
			description: "Database DSN is required",
		},
		{
			name:        "missing feed URL",
			mutate:      func(c *Config) { c.RTDSURL = "" },
			expectedErr: "RTDS_URL",
			description: "Feed URL is required",
		},
		{
			name:        "non-positive threshold",
			mutate:      func(c *Config) { c.WhaleThresholdUSD = 0 },
			expectedErr: "WHALE_THRESHOLD_USD",
			description: "Threshold must be positive",
		},
		{
			name: "data timeout not above keep-alive",
			mutate: func(c *Config) {
				c.KeepAliveInterval = 30 * time.Second
				c.DataTimeout = 30 * time.Second
			},
			expectedErr: "DATA_TIMEOUT_SEC",
			description: "Watchdog timeout must exceed the ping interval",
		},
		{
			name:        "unknown alert mode",
			mutate:      func(c *Config) { c.AlertMode = "carrier-pigeon" },
			expectedErr: "ALERT_MODE",
			description: "Only log, discord and smtp are valid",
		},
		{
			name:        "discord without webhooks",
			mutate:      func(c *Config) { c.AlertMode = "discord" },
			expectedErr: "DISCORD_WEBHOOK_URLS",
			description: "Discord mode needs at least one webhook",
		},
		{
			name: "smtp without host",
			mutate: func(c *Config) {
				c.AlertMode = "smtp"
				c.SMTPTo = []string{"ops@example.com"}
			},
			expectedErr: "SMTP_HOST",
			description: "SMTP mode needs a server",
		},
		{
			name: "smtp without recipients",
			mutate: func(c *Config) {
				c.AlertMode = "smtp"
				c.SMTPHost = "smtp.example.com"
			},
			expectedErr: "SMTP_TO",
			description: "SMTP mode with no recipients would have nowhere to send",
		},
		{
			name: "smtp fully configured",
			mutate: func(c *Config) {
				c.AlertMode = "log,smtp"
				c.SMTPHost = "smtp.example.com"
				c.SMTPTo = []string{"ops@example.com"}
			},
			description: "Complete SMTP config passes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.expectedErr == "" {
				if err != nil {
					t.Errorf("Validate returned %v, want nil (%s)", err, tt.description)
				}
				return
			}

			if err == nil {
				t.Fatalf("Validate returned nil, want error mentioning %s (%s)", tt.expectedErr, tt.description)
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("error %q does not mention %s (%s)", err, tt.expectedErr, tt.description)
			}
		})
	}
}
