package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("Port: got %q, want 8081", cfg.Port)
	}
	if cfg.ExternalTimeout != 10*time.Second {
		t.Errorf("ExternalTimeout: got %v, want 10s", cfg.ExternalTimeout)
	}
	if cfg.StrictSubmit {
		t.Error("StrictSubmit should default to false")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STOCK_SERVICE_URL", "http://stock:8001/api")
	t.Setenv("EXTERNAL_TIMEOUT", "3s")
	t.Setenv("STRICT_SUBMIT", "true")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port: got %q, want 9000", cfg.Port)
	}
	if cfg.StockBaseURL != "http://stock:8001/api" {
		t.Errorf("StockBaseURL: got %q", cfg.StockBaseURL)
	}
	if cfg.ExternalTimeout != 3*time.Second {
		t.Errorf("ExternalTimeout: got %v, want 3s", cfg.ExternalTimeout)
	}
	if !cfg.StrictSubmit {
		t.Error("StrictSubmit should be true")
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("EXTERNAL_TIMEOUT", "soon")
	t.Setenv("STRICT_SUBMIT", "si")

	cfg := Load()

	if cfg.ExternalTimeout != 10*time.Second {
		t.Errorf("ExternalTimeout: got %v, want fallback 10s", cfg.ExternalTimeout)
	}
	if cfg.StrictSubmit {
		t.Error("StrictSubmit should fall back to false")
	}
}
