package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setRequiredEnv(t)
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.EscalationThresholdDays != 15 {
		t.Fatalf("expected default threshold 15, got %d", cfg.EscalationThresholdDays)
	}
	if !cfg.AutoEscalate {
		t.Fatal("expected auto escalation to default to true")
	}
	if cfg.NotifyTimeout != 10*time.Second {
		t.Fatalf("expected notify timeout 10s, got %s", cfg.NotifyTimeout)
	}
	if cfg.StatsCacheTTL != 5*time.Minute {
		t.Fatalf("expected stats cache ttl 5m, got %s", cfg.StatsCacheTTL)
	}
	if cfg.Location().String() != "America/Sao_Paulo" {
		t.Fatalf("expected Sao Paulo timezone, got %s", cfg.Location())
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ESCALATION_THRESHOLD_DAYS", "30")
	t.Setenv("AUTO_ESCALATE", "false")
	t.Setenv("NOTIFY_CHANNEL", " Email ")
	t.Setenv("NOTIFY_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %q", cfg.ServerPort)
	}
	if cfg.EscalationThresholdDays != 30 {
		t.Fatalf("expected threshold 30, got %d", cfg.EscalationThresholdDays)
	}
	if cfg.AutoEscalate {
		t.Fatal("expected auto escalation to be disabled")
	}
	if cfg.NotifyChannel != "email" {
		t.Fatalf("expected normalized channel email, got %q", cfg.NotifyChannel)
	}
	if cfg.NotifyTimeout != 3*time.Second {
		t.Fatalf("expected notify timeout 3s, got %s", cfg.NotifyTimeout)
	}
}

func TestLoadConfig_FailsWithoutJWTSecret(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadConfig_RejectsBadTimezoneAndChannel(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setRequiredEnv(t)
	t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus")

	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "BUSINESS_TIMEZONE") {
		t.Fatalf("expected timezone error, got %v", err)
	}

	viper.Reset()
	t.Setenv("BUSINESS_TIMEZONE", "UTC")
	t.Setenv("NOTIFY_CHANNEL", "pigeon")
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "NOTIFY_CHANNEL") {
		t.Fatalf("expected channel error, got %v", err)
	}
}
