package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validBase is the smallest config that passes validation.
const validBase = `
salon_board:
  username: "salon-user"
  password: "salon-pass"
google_calendar:
  credentials_file: "/etc/salonsync/credentials.json"
  token_file: "/etc/salonsync/token.json"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
db_path: "/var/lib/salonsync/state.db"
sync_interval: 10m
adapter_timeout: 90s
salon_board:
  base_url: "https://beauty.hotpepper.jp/"
  username: "salon-user"
  password: "salon-pass"
  timezone: "Asia/Tokyo"
google_calendar:
  credentials_file: "/etc/salonsync/credentials.json"
  token_file: "/etc/salonsync/token.json"
  calendar_id: "salon@example.com"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want 10m", cfg.SyncInterval)
	}
	if cfg.AdapterTimeout != 90*time.Second {
		t.Errorf("AdapterTimeout = %v, want 90s", cfg.AdapterTimeout)
	}
	if cfg.GoogleCalendar.CalendarID != "salon@example.com" {
		t.Errorf("CalendarID = %q", cfg.GoogleCalendar.CalendarID)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validBase))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want default :8000", cfg.ListenAddr)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want default 5m", cfg.SyncInterval)
	}
	if cfg.AdapterTimeout != 2*time.Minute {
		t.Errorf("AdapterTimeout = %v, want default 2m", cfg.AdapterTimeout)
	}
	if cfg.SalonBoard.BaseURL != "https://beauty.hotpepper.jp/" {
		t.Errorf("BaseURL = %q", cfg.SalonBoard.BaseURL)
	}
	if cfg.SalonBoard.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q", cfg.SalonBoard.Timezone)
	}
	if cfg.GoogleCalendar.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want default primary", cfg.GoogleCalendar.CalendarID)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	for _, missing := range []string{"username", "password"} {
		content := strings.Replace(validBase, missing+": ", "# "+missing+": ", 1)
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("expected error for missing salon_board.%s, got nil", missing)
		}
	}
}

func TestLoad_MissingCalendarFiles(t *testing.T) {
	content := strings.Replace(validBase, "token_file: ", "# token_file: ", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected error for missing google_calendar.token_file, got nil")
	}
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	_, err := Load(writeConfig(t, validBase+`
salon_board_base_url_override: ignored
`))
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}

	_, err = Load(writeConfig(t, strings.Replace(validBase,
		"username:", "base_url: \"not-a-url\"\n  username:", 1)))
	if err == nil {
		t.Fatal("expected error for invalid base_url, got nil")
	}
}

func TestLoad_SyncIntervalBounds(t *testing.T) {
	if _, err := Load(writeConfig(t, "sync_interval: 5s\n"+validBase)); err == nil {
		t.Error("expected error for sync_interval < 1m, got nil")
	}
	if _, err := Load(writeConfig(t, "sync_interval: 48h\n"+validBase)); err == nil {
		t.Error("expected error for sync_interval > 24h, got nil")
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	content := strings.Replace(validBase, "password: \"salon-pass\"",
		"password: \"salon-pass\"\n  timezone: \"Mars/Olympus_Mons\"", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected error for invalid timezone, got nil")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	if _, err := Load(writeConfig(t, validBase+"unknown_field: oops\n")); err == nil {
		t.Fatal("expected error for unknown config key, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Error("DefaultPath returned empty string")
	}
}

func TestLoad_TelemetryValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validBase+`
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "my-salonsync"
  headers:
    Authorization: "Bearer secret"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" || !cfg.Telemetry.Insecure {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization header = %q", cfg.Telemetry.Headers["Authorization"])
	}
}

func TestLoad_TelemetryOmitted(t *testing.T) {
	cfg, err := Load(writeConfig(t, validBase))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry != nil {
		t.Error("expected Telemetry to be nil when block is omitted")
	}
}

func TestLoad_TelemetryMissingEndpoint(t *testing.T) {
	if _, err := Load(writeConfig(t, validBase+"telemetry:\n  insecure: true\n")); err == nil {
		t.Fatal("expected error for telemetry missing otlp_endpoint, got nil")
	}
}
