package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.MediaRoot != "./media" {
		t.Fatalf("expected default media root, got %q", cfg.MediaRoot)
	}
	if cfg.RateBurst != 40 || cfg.RatePerSec != 20 {
		t.Fatalf("unexpected rate defaults: %d/%d", cfg.RateBurst, cfg.RatePerSec)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SITEVISOR_ADDR", ":9999")
	t.Setenv("SITEVISOR_SUPPORT_PHONE", "+2348000000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.SupportPhone != "+2348000000000" {
		t.Fatalf("expected support phone override, got %q", cfg.SupportPhone)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("SITEVISOR_RATE_BURST", "not-an-int")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
