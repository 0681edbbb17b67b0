package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Session.MaxMessages != 20 {
		t.Errorf("max messages = %d, want 20", cfg.Session.MaxMessages)
	}
	if cfg.Session.Timeout != time.Hour {
		t.Errorf("timeout = %v, want 1h", cfg.Session.Timeout)
	}
	if cfg.Session.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %v, want 1m", cfg.Session.SweepInterval)
	}
	if cfg.Auth.Required {
		t.Error("auth required by default")
	}
	if cfg.Retention.ConversationDays != 30 {
		t.Errorf("retention days = %d, want 30", cfg.Retention.ConversationDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_MAX_MESSAGES", "5")
	t.Setenv("SESSION_TIMEOUT_SECONDS", "120")
	t.Setenv("AUTH_REQUIRED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Session.MaxMessages != 5 {
		t.Errorf("max messages = %d", cfg.Session.MaxMessages)
	}
	if cfg.Session.Timeout != 2*time.Minute {
		t.Errorf("timeout = %v", cfg.Session.Timeout)
	}
	if !cfg.Auth.Required {
		t.Error("auth override ignored")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SESSION_MAX_MESSAGES", "-1")

	if _, err := Load(); err == nil {
		t.Error("negative SESSION_MAX_MESSAGES accepted")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "yes")
	if !getEnvBool("FLAG", false) {
		t.Error("yes parsed as false")
	}
	t.Setenv("FLAG", "off")
	if getEnvBool("FLAG", true) {
		t.Error("off parsed as true")
	}
	t.Setenv("FLAG", "banana")
	if !getEnvBool("FLAG", true) {
		t.Error("garbage did not fall back")
	}
}
