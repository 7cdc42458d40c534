package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/hiringradar/internal/model"
)

// EnvConfigPath names the environment variable that points at the config file.
const EnvConfigPath = "HIRINGRADAR_CONFIG"

// DefaultPath is used when neither a flag nor EnvConfigPath is set.
const DefaultPath = "config.yaml"

// Config is the root configuration for hiringradar.
type Config struct {
	Database            DatabaseConfig
	RoleFamily          string
	TrackOnlyRoleFamily bool
	Ingest              IngestConfig
	Retry               RetryConfig
	RateLimit           RateLimitConfig
	Classifier          ClassifierConfig
	Schedule            ScheduleConfig
	Server              ServerConfig
	Notification        NotificationConfig
	Companies           []CompanyConfig
}

// DatabaseConfig selects the store driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// IngestConfig tunes the orchestrator.
type IngestConfig struct {
	Workers                int
	SourceTimeout          time.Duration // whole-source budget, retries included
	RequestTimeout         time.Duration // per HTTP request
	RawSnapshotLimit       int
	SmartRecruitersDetails bool
}

// RetryConfig controls the transient-error connector wrapper.
type RetryConfig struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimitConfig controls ATS-level rate limiting.
type RateLimitConfig struct {
	MinDelay     time.Duration                   // minimum gap between requests to the same ATS
	ATSOverrides map[model.ATSKind]time.Duration // per-ATS overrides
}

// MinDelayFor returns the configured delay for the given ATS, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(kind model.ATSKind) time.Duration {
	if d, ok := r.ATSOverrides[kind]; ok {
		return d
	}
	return r.MinDelay
}

// ClassifierConfig replaces the built-in keyword lists when non-empty.
type ClassifierConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// ScheduleConfig holds the cron expression for `serve`.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type         string `yaml:"type"`        // "log", "slack", "redis" or "none"
	WebhookURL   string `yaml:"webhook_url"` // required if type is "slack"
	RedisURL     string `yaml:"redis_url"`   // required if type is "redis"
	RedisChannel string `yaml:"redis_channel"`
}

// CompanyConfig seeds one company and its board.
type CompanyConfig struct {
	Name       string `yaml:"name"`
	ATS        string `yaml:"ats"`
	Handle     string `yaml:"handle"`
	CareersURL string `yaml:"careers_url"`
	Enabled    *bool  `yaml:"enabled"` // nil means enabled
}

// IsEnabled reports whether the company's source should be active.
func (c CompanyConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Database            DatabaseConfig     `yaml:"database"`
	RoleFamily          string             `yaml:"role_family"`
	TrackOnlyRoleFamily *bool              `yaml:"track_only_role_family"`
	Ingest              rawIngestConfig    `yaml:"ingest"`
	Retry               rawRetryConfig     `yaml:"retry"`
	RateLimit           rawRateLimitConfig `yaml:"rate_limit"`
	Classifier          ClassifierConfig   `yaml:"classifier"`
	Schedule            ScheduleConfig     `yaml:"schedule"`
	Server              ServerConfig       `yaml:"server"`
	Notification        NotificationConfig `yaml:"notification"`
	Companies           []CompanyConfig    `yaml:"companies"`
}

type rawIngestConfig struct {
	Workers                int    `yaml:"workers"`
	SourceTimeout          string `yaml:"source_timeout"`
	RequestTimeout         string `yaml:"request_timeout"`
	RawSnapshotLimit       int    `yaml:"raw_snapshot_limit"`
	SmartRecruitersDetails *bool  `yaml:"smartrecruiters_details"`
}

type rawRetryConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxDelay    string `yaml:"max_delay"`
}

type rawRateLimitConfig struct {
	MinDelay     string            `yaml:"min_delay"`
	ATSOverrides map[string]string `yaml:"ats_overrides"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database:            DatabaseConfig{Driver: "sqlite", DSN: "hiringradar.db"},
		RoleFamily:          "SDE",
		TrackOnlyRoleFamily: true,
		Ingest: IngestConfig{
			Workers:                4,
			SourceTimeout:          60 * time.Second,
			RequestTimeout:         20 * time.Second,
			RawSnapshotLimit:       50,
			SmartRecruitersDetails: true,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    20 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinDelay:     time.Second,
			ATSOverrides: map[model.ATSKind]time.Duration{},
		},
		Schedule:     ScheduleConfig{Cron: "7 * * * *"},
		Server:       ServerConfig{Addr: ":8080"},
		Notification: NotificationConfig{Type: "log"},
	}
}

// Resolve picks the config path from the flag value, then EnvConfigPath,
// then DefaultPath. explicit is false only for the DefaultPath fallback.
func Resolve(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// LoadDotEnv loads .env from the working directory and from dir, without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(dir string) error {
	for _, p := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// Unset fields keep their Default values.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if err := apply(cfg, raw); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *Config, raw rawConfig) error {
	if raw.Database.Driver != "" {
		cfg.Database.Driver = strings.ToLower(raw.Database.Driver)
	}
	if raw.Database.DSN != "" {
		cfg.Database.DSN = raw.Database.DSN
	} else if cfg.Database.Driver != "sqlite" {
		cfg.Database.DSN = ""
	}
	if raw.RoleFamily != "" {
		cfg.RoleFamily = raw.RoleFamily
	}
	if raw.TrackOnlyRoleFamily != nil {
		cfg.TrackOnlyRoleFamily = *raw.TrackOnlyRoleFamily
	}

	if raw.Ingest.Workers != 0 {
		cfg.Ingest.Workers = raw.Ingest.Workers
	}
	if raw.Ingest.RawSnapshotLimit != 0 {
		cfg.Ingest.RawSnapshotLimit = raw.Ingest.RawSnapshotLimit
	}
	if raw.Ingest.SmartRecruitersDetails != nil {
		cfg.Ingest.SmartRecruitersDetails = *raw.Ingest.SmartRecruitersDetails
	}
	if err := parseDuration("ingest.source_timeout", raw.Ingest.SourceTimeout, &cfg.Ingest.SourceTimeout); err != nil {
		return err
	}
	if err := parseDuration("ingest.request_timeout", raw.Ingest.RequestTimeout, &cfg.Ingest.RequestTimeout); err != nil {
		return err
	}

	if raw.Retry.Enabled != nil {
		cfg.Retry.Enabled = *raw.Retry.Enabled
	}
	if raw.Retry.MaxAttempts != 0 {
		cfg.Retry.MaxAttempts = raw.Retry.MaxAttempts
	}
	if err := parseDuration("retry.base_delay", raw.Retry.BaseDelay, &cfg.Retry.BaseDelay); err != nil {
		return err
	}
	if err := parseDuration("retry.max_delay", raw.Retry.MaxDelay, &cfg.Retry.MaxDelay); err != nil {
		return err
	}

	if err := parseDuration("rate_limit.min_delay", raw.RateLimit.MinDelay, &cfg.RateLimit.MinDelay); err != nil {
		return err
	}
	for ats, v := range raw.RateLimit.ATSOverrides {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse rate_limit.ats_overrides[%q]: %w", ats, err)
		}
		cfg.RateLimit.ATSOverrides[model.ATSKind(strings.ToLower(ats))] = d
	}

	cfg.Classifier = raw.Classifier
	if raw.Schedule.Cron != "" {
		cfg.Schedule.Cron = raw.Schedule.Cron
	}
	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Notification.Type != "" {
		cfg.Notification = raw.Notification
		cfg.Notification.Type = strings.ToLower(raw.Notification.Type)
	}
	cfg.Companies = raw.Companies
	return nil
}

func parseDuration(field, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	*dst = d
	return nil
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", cfg.Database.Driver))
	}

	if strings.TrimSpace(cfg.RoleFamily) == "" {
		errs = append(errs, errors.New("role_family must not be empty"))
	}

	if cfg.Ingest.Workers < 1 || cfg.Ingest.Workers > 64 {
		errs = append(errs, fmt.Errorf("ingest.workers must be between 1 and 64, got %d", cfg.Ingest.Workers))
	}
	if cfg.Ingest.SourceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ingest.source_timeout must be positive, got %v", cfg.Ingest.SourceTimeout))
	}
	if cfg.Ingest.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ingest.request_timeout must be positive, got %v", cfg.Ingest.RequestTimeout))
	}
	if cfg.Ingest.RawSnapshotLimit < 0 {
		errs = append(errs, fmt.Errorf("ingest.raw_snapshot_limit must not be negative, got %d", cfg.Ingest.RawSnapshotLimit))
	}

	if cfg.Retry.Enabled {
		if cfg.Retry.MaxAttempts < 1 {
			errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts))
		}
		if cfg.Retry.BaseDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
			errs = append(errs, fmt.Errorf("retry delays must satisfy 0 < base_delay <= max_delay, got %v and %v",
				cfg.Retry.BaseDelay, cfg.Retry.MaxDelay))
		}
	}

	if cfg.RateLimit.MinDelay < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.min_delay must not be negative, got %v", cfg.RateLimit.MinDelay))
	}
	for kind := range cfg.RateLimit.ATSOverrides {
		if !kind.Valid() {
			errs = append(errs, fmt.Errorf("rate_limit.ats_overrides: unsupported ATS %q", kind))
		}
	}

	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err))
	}

	switch cfg.Notification.Type {
	case "", "log", "none":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			errs = append(errs, errors.New("notification.webhook_url is required when type is \"slack\""))
		} else if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			errs = append(errs, errors.New("notification.webhook_url must start with https://hooks.slack.com/"))
		}
	case "redis":
		if cfg.Notification.RedisURL == "" {
			errs = append(errs, errors.New("notification.redis_url is required when type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.type must be log, slack, redis or none, got %q", cfg.Notification.Type))
	}

	seen := make(map[string]bool)
	for i, c := range cfg.Companies {
		switch {
		case strings.TrimSpace(c.Name) == "":
			errs = append(errs, fmt.Errorf("companies[%d]: name is required", i))
		case seen[c.Name]:
			errs = append(errs, fmt.Errorf("companies[%d]: duplicate name %q", i, c.Name))
		}
		seen[c.Name] = true
		if !model.ATSKind(strings.ToLower(c.ATS)).Valid() {
			errs = append(errs, fmt.Errorf("companies[%d]: unsupported ats %q", i, c.ATS))
		}
		if c.Handle == "" {
			errs = append(errs, fmt.Errorf("companies[%d]: handle is required", i))
		}
	}

	return errors.Join(errs...)
}
