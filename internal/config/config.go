// Package config centralizes environment-driven settings for the caseforge
// binaries. Required keys are validated in one pass so a misconfigured
// deployment fails with a single complete error instead of one key at a time.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Issue tracker.
	JiraURL      string
	JiraUsername string
	JiraAPIToken string

	// Generative text.
	AnthropicAPIKey string

	// Spreadsheet export.
	SpreadsheetID string
	SheetsToken   string

	// Webhook server.
	WebhookSecret string
	Addr          string
	DBPath        string

	// Telemetry.
	OTLPEndpoint string

	APITimeout time.Duration
	MaxRetries int
}

// Load reads the full configuration from the environment. It never fails;
// Validate reports what is missing.
func Load() Config {
	return Config{
		JiraURL:         strings.TrimSpace(os.Getenv("JIRA_URL")),
		JiraUsername:    strings.TrimSpace(os.Getenv("JIRA_USERNAME")),
		JiraAPIToken:    strings.TrimSpace(os.Getenv("JIRA_API_TOKEN")),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		SpreadsheetID:   strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		SheetsToken:     strings.TrimSpace(os.Getenv("SHEETS_TOKEN")),
		WebhookSecret:   strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		Addr:            envDefault("ADDR", ":8080"),
		DBPath:          envDefault("DB_PATH", "caseforge.db"),
		OTLPEndpoint:    strings.TrimSpace(os.Getenv("OTLP_ENDPOINT")),
		APITimeout:      time.Duration(envInt("API_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:      envInt("API_MAX_RETRIES", 3),
	}
}

// Validate reports every missing required key in one error. WEBHOOK_SECRET,
// ADDR, DB_PATH and OTLP_ENDPOINT are optional.
func (c Config) Validate() error {
	required := map[string]string{
		"JIRA_URL":          c.JiraURL,
		"JIRA_USERNAME":     c.JiraUsername,
		"JIRA_API_TOKEN":    c.JiraAPIToken,
		"ANTHROPIC_API_KEY": c.AnthropicAPIKey,
		"SPREADSHEET_ID":    c.SpreadsheetID,
		"SHEETS_TOKEN":      c.SheetsToken,
	}
	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Redacted returns the configuration as a loggable map with secrets elided.
func (c Config) Redacted() map[string]string {
	return map[string]string{
		"JIRA_URL":          c.JiraURL,
		"JIRA_USERNAME":     c.JiraUsername,
		"JIRA_API_TOKEN":    redact(c.JiraAPIToken),
		"ANTHROPIC_API_KEY": redact(c.AnthropicAPIKey),
		"SPREADSHEET_ID":    c.SpreadsheetID,
		"SHEETS_TOKEN":      redact(c.SheetsToken),
		"WEBHOOK_SECRET":    redact(c.WebhookSecret),
		"ADDR":              c.Addr,
		"DB_PATH":           c.DBPath,
		"OTLP_ENDPOINT":     c.OTLPEndpoint,
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
