package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("expected default MaxAttempts 3, got %d", cfg.Worker.MaxAttempts)
	}
	if cfg.Worker.DLQWarningThreshold != 10 {
		t.Errorf("expected default DLQWarningThreshold 10, got %d", cfg.Worker.DLQWarningThreshold)
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("REDIS_URL", "redis://test")
	t.Setenv("JWT_SECRET", "shh")
	t.Setenv("CRON_SECRET", "also-shh")
	t.Setenv("ENABLE_SENTRY", "true")
	t.Setenv("SENTRY_ENVIRONMENT", "staging")
	t.Setenv("TWILIO_ENABLED", "true")
	t.Setenv("PROVIDER_QUOTA_LIMITS", "sendgrid=10000,ses=5000")

	cfg := Load()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("expected HTTPAddr :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "postgres://test" {
		t.Errorf("expected DatabaseURL postgres://test, got %s", cfg.DatabaseURL)
	}
	if !cfg.EnableSentry {
		t.Error("expected EnableSentry true")
	}
	if cfg.SentryEnvironment != "staging" {
		t.Errorf("expected SentryEnvironment staging, got %s", cfg.SentryEnvironment)
	}
	if !cfg.Twilio.Enabled {
		t.Error("expected Twilio.Enabled true")
	}
	if cfg.Quota.Limits["sendgrid"] != 10000 || cfg.Quota.Limits["ses"] != 5000 {
		t.Errorf("expected parsed quota limits, got %#v", cfg.Quota.Limits)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_MissingSecretsFails(t *testing.T) {
	os.Clearenv()
	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to fail with no required env vars set")
	}
}

func TestParseBool_InvalidLogsWarning(t *testing.T) {
	output := captureStdout(t, func() {
		if parseBool("tue") {
			t.Error("expected invalid boolean to parse as false")
		}
	})

	if !strings.Contains(output, "Could not parse boolean value") {
		t.Errorf("expected warning output, got %q", output)
	}
}

func TestParseQuotaLimits_MalformedEntrySkipped(t *testing.T) {
	limits := parseQuotaLimits("sendgrid=1000,garbage,ses=2000")
	if limits["sendgrid"] != 1000 || limits["ses"] != 2000 {
		t.Errorf("expected well-formed entries to parse, got %#v", limits)
	}
	if len(limits) != 2 {
		t.Errorf("expected malformed entry to be skipped, got %#v", limits)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	os.Stdout = writer
	fn()

	_ = writer.Close()
	os.Stdout = original

	var buffer bytes.Buffer
	_, _ = io.Copy(&buffer, reader)
	_ = reader.Close()

	return buffer.String()
}
