package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected default token ttl %v", cfg.AccessTokenTTL)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("session sweep should be disabled by default")
	}
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "48h")
	if got := getenvDuration("SESSION_TTL", time.Hour); got != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", got)
	}

	t.Setenv("SESSION_TTL", "")
	t.Setenv("SESSION_TTL_SECONDS", "90")
	if got := getenvDuration("SESSION_TTL", time.Hour); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("MIGRATE_ON_START", "false")
	if getenvBool("MIGRATE_ON_START", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("MIGRATE_ON_START", "not-a-bool")
	if !getenvBool("MIGRATE_ON_START", true) {
		t.Fatalf("expected fallback true")
	}
}
