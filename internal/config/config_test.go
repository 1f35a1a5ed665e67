package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EXAM_DATA_DIR", "")
	t.Setenv("COHORT_DIGITS", "")
	t.Setenv("SUBMISSION_BACKEND", "")

	cfg := Load()

	if cfg.ExamDataDir != "./data/exams" {
		t.Errorf("ExamDataDir = %q", cfg.ExamDataDir)
	}
	if cfg.CohortDigits != 3 {
		t.Errorf("CohortDigits = %d, want 3", cfg.CohortDigits)
	}
	if cfg.SubmissionBackend != BackendPostgres {
		t.Errorf("SubmissionBackend = %q, want postgres", cfg.SubmissionBackend)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EXAM_CACHE_TTL_MINUTES", "5")
	t.Setenv("JWT_EXPIRY_HOURS", "not-a-number")
	t.Setenv("SUBMISSION_BACKEND", " Mongo ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.ExamCacheTTL != 5*time.Minute {
		t.Errorf("ExamCacheTTL = %v, want 5m", cfg.ExamCacheTTL)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want fallback 24h", cfg.JWTExpiry)
	}
	if cfg.SubmissionBackend != BackendMongo {
		t.Errorf("SubmissionBackend = %q, want mongo", cfg.SubmissionBackend)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestConfig_Cohort(t *testing.T) {
	tests := []struct {
		digits   int
		username string
		want     string
	}{
		{3, "2231045", "223"},
		{3, "22", "22"},
		{0, "2231045", "2231045"},
		{4, "2231045", "2231"},
	}
	for _, tt := range tests {
		c := &Config{CohortDigits: tt.digits}
		if got := c.Cohort(tt.username); got != tt.want {
			t.Errorf("Cohort(%q) with %d digits = %q, want %q", tt.username, tt.digits, got, tt.want)
		}
	}
}
