package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHAT_TOKEN", "token")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("API_KEY", "api-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.OCR.ExpressConcurrency != 4 || cfg.OCR.StandardConcurrency != 2 || cfg.OCR.BackgroundConcurrency != 1 {
		t.Fatalf("unexpected default concurrencies: %+v", cfg.OCR)
	}
	if cfg.OCR.BulkThreshold != 10 {
		t.Fatalf("unexpected bulk threshold: %d", cfg.OCR.BulkThreshold)
	}
	if !cfg.OCR.PriorityBorrowing || cfg.OCR.BorrowingThreshold != 0.8 {
		t.Fatalf("unexpected borrowing defaults: %+v", cfg.OCR)
	}
	if cfg.OCR.Mode != ModeBalanced {
		t.Fatalf("default mode must be balanced, got %s", cfg.OCR.Mode)
	}
	if cfg.OCR.SubmitBudget != 60*time.Second {
		t.Fatalf("default submit budget must be 60s, got %s", cfg.OCR.SubmitBudget)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OCR_MODE", "bulk_heavy")
	t.Setenv("OCR_EXPRESS_CONCURRENCY", "8")
	t.Setenv("OCR_PRIORITY_BORROWING", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.OCR.Mode != ModeBulkHeavy {
		t.Fatalf("mode override ignored: %s", cfg.OCR.Mode)
	}
	if cfg.OCR.ExpressConcurrency != 8 {
		t.Fatalf("concurrency override ignored: %d", cfg.OCR.ExpressConcurrency)
	}
	if cfg.OCR.PriorityBorrowing {
		t.Fatalf("borrowing override ignored")
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors parsing failed: %+v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("CHAT_TOKEN", "token")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("API_KEY", "api-key")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error without JWT_SECRET")
	}
}

func TestLoadRejectsBadBorrowingThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OCR_BORROWING_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for threshold > 1")
	}
}
