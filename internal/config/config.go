// Package config loads and validates the salonsync YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// ListenAddr is the address the HTTP API binds to. Defaults to ":8000".
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the SQLite database file. Defaults to
	// ~/.local/share/salonsync/salonsync.db.
	DBPath string `yaml:"db_path"`

	// SyncInterval controls how often a periodic cycle runs.
	// Minimum 1m, maximum 24h. Defaults to 5m if unset.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// AdapterTimeout bounds each remote call into Salon Board or Google
	// Calendar. Defaults to 2m.
	AdapterTimeout time.Duration `yaml:"adapter_timeout"`

	// SalonBoard configures the scraping adapter.
	SalonBoard SalonBoardConfig `yaml:"salon_board"`

	// GoogleCalendar configures the Calendar API adapter.
	GoogleCalendar GoogleCalendarConfig `yaml:"google_calendar"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// SalonBoardConfig holds the merchant console credentials and locale.
type SalonBoardConfig struct {
	// BaseURL of the console. Defaults to "https://beauty.hotpepper.jp/".
	BaseURL string `yaml:"base_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timezone the console renders times in. Defaults to "Asia/Tokyo".
	Timezone string `yaml:"timezone"`
}

// GoogleCalendarConfig holds the OAuth file locations and target calendar.
type GoogleCalendarConfig struct {
	// CredentialsFile is the OAuth client secret JSON downloaded from the
	// Google Cloud console.
	CredentialsFile string `yaml:"credentials_file"`

	// TokenFile is the stored OAuth token JSON. Obtain it once with the
	// interactive flow of your choice; the service only refreshes it.
	TokenFile string `yaml:"token_file"`

	// CalendarID is the calendar to sync against. Defaults to "primary".
	CalendarID string `yaml:"calendar_id"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "salonsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/salonsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "salonsync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks required fields and fills defaults.
func (c *Config) validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = 5 * time.Minute
	}
	if c.SyncInterval < time.Minute {
		return fmt.Errorf("sync_interval %v is too short (minimum 1m)", c.SyncInterval)
	}
	if c.SyncInterval > 24*time.Hour {
		return fmt.Errorf("sync_interval %v is too long (maximum 24h)", c.SyncInterval)
	}

	if c.AdapterTimeout == 0 {
		c.AdapterTimeout = 2 * time.Minute
	}
	if c.AdapterTimeout < 10*time.Second {
		return fmt.Errorf("adapter_timeout %v is too short (minimum 10s)", c.AdapterTimeout)
	}

	if c.SalonBoard.BaseURL == "" {
		c.SalonBoard.BaseURL = "https://beauty.hotpepper.jp/"
	}
	u, err := url.ParseRequestURI(c.SalonBoard.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("salon_board.base_url %q must be a valid http or https URL", c.SalonBoard.BaseURL)
	}
	if c.SalonBoard.Username == "" {
		return fmt.Errorf("salon_board.username is required")
	}
	if c.SalonBoard.Password == "" {
		return fmt.Errorf("salon_board.password is required")
	}
	if c.SalonBoard.Timezone == "" {
		c.SalonBoard.Timezone = "Asia/Tokyo"
	}
	if _, err := time.LoadLocation(c.SalonBoard.Timezone); err != nil {
		return fmt.Errorf("salon_board.timezone %q is not a valid IANA zone: %w", c.SalonBoard.Timezone, err)
	}

	if c.GoogleCalendar.CredentialsFile == "" {
		return fmt.Errorf("google_calendar.credentials_file is required")
	}
	if c.GoogleCalendar.TokenFile == "" {
		return fmt.Errorf("google_calendar.token_file is required")
	}
	if c.GoogleCalendar.CalendarID == "" {
		c.GoogleCalendar.CalendarID = "primary"
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
