package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// devSessionSecret signs session cookies in local and test environments
// when SESSION_SECRET is not set.
const devSessionSecret = "trace-dashboard-local-session-secret"

// Config holds all configuration for trace-dashboard.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Backend service endpoints
	Services ServicesConfig `yaml:"services"`

	// Outbound HTTP behavior shared by all resource clients
	HTTP HTTPConfig `yaml:"http"`

	// Background polling of asynchronous jobs
	Polling PollingConfig `yaml:"polling"`

	// Dashboard sessions
	Session SessionConfig `yaml:"session"`

	// MCP tool surface
	MCP MCPConfig `yaml:"mcp"`
}

// ServicesConfig holds the base URLs of the backend services.
type ServicesConfig struct {
	ProjectManagementURL string `yaml:"project_management_url" env:"PROJECT_MANAGEMENT_URL" env-default:"http://localhost:8081"`
	TranscriptionURL     string `yaml:"transcription_url" env:"TRANSCRIPTION_URL" env-default:"http://localhost:8082"`
	GenAIURL             string `yaml:"genai_url" env:"GENAI_URL" env-default:"http://localhost:8083"`
	CommsURL             string `yaml:"comms_url" env:"COMMS_URL" env-default:"http://localhost:8084"`
	SdlcURL              string `yaml:"sdlc_url" env:"SDLC_URL" env-default:"http://localhost:8085"`
}

// HTTPConfig controls outbound requests to backend services.
type HTTPConfig struct {
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	// RetryMax is how many times idempotent reads are retried on transient
	// failures. Zero disables retries.
	RetryMax int `yaml:"retry_max" env:"HTTP_RETRY_MAX" env-default:"0"`
}

// PollingConfig controls poll chains for asynchronous jobs.
type PollingConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"POLL_MAX_ATTEMPTS" env-default:"10"`
	Interval    time.Duration `yaml:"interval" env:"POLL_INTERVAL" env-default:"5s"`
	// CancelOnDeselect stops the previous project's poll chains when the
	// selection moves to another project.
	CancelOnDeselect bool `yaml:"cancel_on_deselect" env:"POLL_CANCEL_ON_DESELECT" env-default:"false"`
}

// SessionConfig controls dashboard sessions.
type SessionConfig struct {
	// Secret signs the session cookie. Any passphrase; it is hashed to a key.
	Secret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
	// IdleTimeout closes dashboards that saw no request for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SESSION_IDLE_TIMEOUT" env-default:"30m"`
	// SweepInterval is how often idle dashboards are looked for.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
	// CookieDomain is the domain for the session cookie (optional).
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
	// LogRequests logs tool calls at DEBUG level.
	LogRequests bool `yaml:"log_requests" env:"MCP_LOG_REQUESTS" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist, configuration comes from the environment alone.
// Variables in a local .env file fill in anything the environment lacks.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return LoadFile("config.yaml", version)
}

// loadDotEnv sets variables from a .env file that are not already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Services.resolveForDocker()

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	if cfg.Session.Secret == "" && cfg.IsLocal() {
		cfg.Session.Secret = devSessionSecret
	}

	return cfg, nil
}

// IsLocal reports whether the dashboard runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "test"
}

func (c *Config) validate() error {
	for name, raw := range c.Services.byName() {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("services.%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.Polling.MaxAttempts < 1 {
		return fmt.Errorf("polling.max_attempts must be at least 1, got %d", c.Polling.MaxAttempts)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval)
	}
	if c.HTTP.RetryMax < 0 {
		return fmt.Errorf("http.retry_max must not be negative, got %d", c.HTTP.RetryMax)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.idle_timeout and session.sweep_interval must be positive")
	}
	if c.Session.Secret == "" && !c.IsLocal() {
		return fmt.Errorf("SESSION_SECRET is required outside local environments")
	}

	return nil
}

func (s *ServicesConfig) byName() map[string]string {
	return map[string]string{
		"project_management_url": s.ProjectManagementURL,
		"transcription_url":      s.TranscriptionURL,
		"genai_url":              s.GenAIURL,
		"comms_url":              s.CommsURL,
		"sdlc_url":               s.SdlcURL,
	}
}

func (s *ServicesConfig) resolveForDocker() {
	s.ProjectManagementURL = ResolveURLForDocker(s.ProjectManagementURL)
	s.TranscriptionURL = ResolveURLForDocker(s.TranscriptionURL)
	s.GenAIURL = ResolveURLForDocker(s.GenAIURL)
	s.CommsURL = ResolveURLForDocker(s.CommsURL)
	s.SdlcURL = ResolveURLForDocker(s.SdlcURL)
}
