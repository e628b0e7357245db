package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screening"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Voice: VoiceConfig{BaseURL: "https://voice.example", APIKey: "k"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndWebhookSecret(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "DB_SSLMODE") || !strings.Contains(err.Error(), "VOICE_WEBHOOK_SECRET") {
		t.Fatalf("expected both errors reported, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Screening.CallLimit != 1 || c.Screening.RetryQuota != 1 {
		t.Fatalf("expected call limit and retry quota 1, got %+v", c.Screening)
	}
	if c.Screening.MaxCallDuration != 180*time.Second {
		t.Fatalf("expected 180s max duration, got %v", c.Screening.MaxCallDuration)
	}
	if c.Screening.StaleTimeout != 10*time.Minute {
		t.Fatalf("expected 10m stale timeout, got %v", c.Screening.StaleTimeout)
	}
	if c.Retrieval.MaxAttempts != 5 || c.Worker.Queue != "screening" {
		t.Fatalf("unexpected retrieval/worker defaults: %+v %+v", c.Retrieval, c.Worker)
	}
}

func TestValidate_RejectsNegativeLimits(t *testing.T) {
	c := validLocal()
	c.Screening.RetryQuota = -1
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for negative retry quota")
	}
}

func TestLoad_ReadsScreeningOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "screening")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("VOICE_BASE_URL", "https://voice.example")
	t.Setenv("VOICE_API_KEY", "k")
	t.Setenv("SCREENING_RETRY_QUOTA", "3")
	t.Setenv("SCREENING_STALE_TIMEOUT", "5m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Screening.RetryQuota != 3 || c.Screening.StaleTimeout != 5*time.Minute {
		t.Fatalf("expected overrides, got %+v", c.Screening)
	}
	if len(c.App.CORSOrigins) != 2 {
		t.Fatalf("expected 2 cors origins, got %v", c.App.CORSOrigins)
	}
	if !strings.HasPrefix(c.PostgresURL(), "postgres://postgres:@localhost:5432/screening?sslmode=disable") {
		t.Fatalf("unexpected url: %s", c.PostgresURL())
	}
}

func TestLoad_RejectsNonIntegerQuota(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("SCREENING_RETRY_QUOTA", "many")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SCREENING_RETRY_QUOTA") {
		t.Fatalf("expected quota parse error, got %v", err)
	}
}

func TestLoad_RejectsMalformedDurations(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("SCREENING_STALE_TIMEOUT", "15")
	t.Setenv("SCREENING_MAX_CALL_DURATION", "3 minutes")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected duration parse errors")
	}
	for _, key := range []string{"SCREENING_STALE_TIMEOUT", "SCREENING_MAX_CALL_DURATION"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}
