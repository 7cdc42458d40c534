package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: /tmp/radar.db
role_family: SDE
ingest:
  workers: 8
  source_timeout: 90s
retry:
  max_attempts: 3
rate_limit:
  min_delay: 500ms
  ats_overrides:
    lever: 2s
schedule:
  cron: "*/30 * * * *"
companies:
  - name: acme
    ats: greenhouse
    handle: acme
  - name: globex
    ats: lever
    handle: globex
    enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "/tmp/radar.db" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Ingest.Workers)
	}
	if cfg.Ingest.SourceTimeout != 90*time.Second {
		t.Errorf("SourceTimeout = %v, want 90s", cfg.Ingest.SourceTimeout)
	}
	if cfg.Ingest.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v, want default 20s", cfg.Ingest.RequestTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || !cfg.Retry.Enabled {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if got := cfg.RateLimit.MinDelayFor(model.KindLever); got != 2*time.Second {
		t.Errorf("MinDelayFor(lever) = %v, want 2s", got)
	}
	if got := cfg.RateLimit.MinDelayFor(model.KindAshby); got != 500*time.Millisecond {
		t.Errorf("MinDelayFor(ashby) = %v, want 500ms", got)
	}
	if cfg.Schedule.Cron != "*/30 * * * *" {
		t.Errorf("Cron = %q", cfg.Schedule.Cron)
	}
	if len(cfg.Companies) != 2 || !cfg.Companies[0].IsEnabled() || cfg.Companies[1].IsEnabled() {
		t.Errorf("Companies = %+v", cfg.Companies)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "role_family: SDE\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Ingest != want.Ingest {
		t.Errorf("Ingest = %+v, want %+v", cfg.Ingest, want.Ingest)
	}
	if !cfg.TrackOnlyRoleFamily {
		t.Error("TrackOnlyRoleFamily should default to true")
	}
	if cfg.Server.Addr != ":8080" || cfg.Notification.Type != "log" {
		t.Errorf("Server = %+v, Notification = %+v", cfg.Server, cfg.Notification)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "ingest: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "ingest:\n  source_timeout: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "ingest.source_timeout") {
		t.Fatalf("Load: err = %v, want source_timeout parse error", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"workers too high", "ingest:\n  workers: 100\n", "ingest.workers"},
		{"bad cron", "schedule:\n  cron: \"every hour\"\n", "schedule.cron"},
		{"bad driver", "database:\n  driver: mysql\n", "database.driver"},
		{"postgres without dsn", "database:\n  driver: postgres\n", "database.dsn"},
		{"unknown override", "rate_limit:\n  ats_overrides:\n    workday: 1s\n", "ats_overrides"},
		{"slack without webhook", "notification:\n  type: slack\n", "webhook_url is required"},
		{"slack bad webhook", "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n", "hooks.slack.com"},
		{"redis without url", "notification:\n  type: redis\n", "redis_url"},
		{"unknown notifier", "notification:\n  type: email\n", "notification.type"},
		{"unknown ats", "companies:\n  - name: acme\n    ats: workday\n    handle: acme\n", "unsupported ats"},
		{"missing handle", "companies:\n  - name: acme\n    ats: lever\n", "handle is required"},
		{"duplicate company", "companies:\n  - name: acme\n    ats: lever\n    handle: a\n  - name: acme\n    ats: ashby\n    handle: b\n", "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_RetryDisabledSkipsRetryValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retry:\n  enabled: false\n  base_delay: 30s\n  max_delay: 1s\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.Enabled {
		t.Error("Retry.Enabled = true, want false")
	}
}

func TestLoad_ExpandsEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HR_TEST_HOOK", "https://hooks.slack.com/services/T000/B000/XXX")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HR_TEST_ROLE=Data\nHR_TEST_HOOK=ignored\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("HR_TEST_ROLE") })

	path := filepath.Join(dir, "config.yaml")
	content := `
role_family: ${HR_TEST_ROLE}
notification:
  type: slack
  webhook_url: ${HR_TEST_HOOK}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RoleFamily != "Data" {
		t.Errorf("RoleFamily = %q, want value from .env", cfg.RoleFamily)
	}
	if cfg.Notification.WebhookURL != "https://hooks.slack.com/services/T000/B000/XXX" {
		t.Errorf("WebhookURL = %q, .env must not override the environment", cfg.Notification.WebhookURL)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if p, explicit := Resolve(""); p != DefaultPath || explicit {
		t.Errorf("Resolve(\"\") = %q, %v", p, explicit)
	}

	t.Setenv(EnvConfigPath, "/etc/radar.yaml")
	if p, explicit := Resolve(""); p != "/etc/radar.yaml" || !explicit {
		t.Errorf("Resolve with env = %q, %v", p, explicit)
	}
	if p, _ := Resolve("flag.yaml"); p != "flag.yaml" {
		t.Errorf("Resolve(flag) = %q, want flag.yaml", p)
	}
}
