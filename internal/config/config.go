// Package config provides configuration types for the Saccosphere member
// client.
//
// Configuration is file-based (saccosphere.yaml) with environment overrides
// (SACCOSPHERE_API_BASE_URL and so on). Durations are written as Go duration
// strings ("30s", "5m").
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DefaultProfile names the session record when no profile is configured.
const DefaultProfile = "default"

// Config is the top-level client configuration.
type Config struct {
	// API configures the Saccosphere API endpoint.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Auth configures credential handling.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Session configures where the session survives between runs.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Log configures the logger.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Telemetry configures tracing and metrics output.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// APIConfig configures the Saccosphere API endpoint.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://api.saccosphere.co.ke".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds each HTTP call. Default: "30s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
	// UserAgent is sent on every request. Default: "saccosphere-cli".
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	// Paths are the endpoint paths relative to BaseURL.
	Paths PathsConfig `yaml:"paths" mapstructure:"paths"`
}

// PathsConfig holds the endpoint paths. Each must start with "/".
type PathsConfig struct {
	Login    string `yaml:"login" mapstructure:"login" validate:"api_path"`
	Register string `yaml:"register" mapstructure:"register" validate:"api_path"`
	Refresh  string `yaml:"refresh" mapstructure:"refresh" validate:"api_path"`
	Me       string `yaml:"me" mapstructure:"me" validate:"api_path"`
	Logout   string `yaml:"logout" mapstructure:"logout" validate:"api_path"`
	Saccos   string `yaml:"saccos" mapstructure:"saccos" validate:"api_path"`
}

// AuthConfig configures credential handling.
type AuthConfig struct {
	// AttachBearer sends the credential as "Authorization: Bearer".
	// Default: true. Disable for cookie-only deployments.
	AttachBearer bool `yaml:"attach_bearer" mapstructure:"attach_bearer"`
	// RefreshTimeout bounds one renewal call. Default: "10s".
	RefreshTimeout string `yaml:"refresh_timeout" mapstructure:"refresh_timeout" validate:"omitempty,duration"`
	// ProactiveRefreshSkew renews a JWT credential this long before it
	// expires. "0s" disables proactive renewal. Default: "30s".
	ProactiveRefreshSkew string `yaml:"proactive_refresh_skew" mapstructure:"proactive_refresh_skew" validate:"omitempty,duration"`
	// LoginPath is where the route guard sends signed-out members.
	// Default: "/login".
	LoginPath string `yaml:"login_path" mapstructure:"login_path" validate:"api_path"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	// Backend is one of file, sqlite, redis, memory. Default: file.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=file sqlite redis memory"`
	// StatePath is the file backend's path. Default: ~/.saccosphere/session.json.
	StatePath string `yaml:"state_path" mapstructure:"state_path"`
	// SQLitePath is the sqlite backend's database. Default: ~/.saccosphere/session.db.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	// Profile keys the record in shared backends. Default: "default".
	Profile string `yaml:"profile" mapstructure:"profile"`
	// RedisAddr is the redis backend's host:port. Required for redis.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	// RedisKey is the key holding the record. Default: "saccosphere:session".
	RedisKey string `yaml:"redis_key" mapstructure:"redis_key"`
	// RedisTTL expires the record. Empty keeps it until logout.
	RedisTTL string `yaml:"redis_ttl" mapstructure:"redis_ttl" validate:"omitempty,duration"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	// Format is text or json. Default: text.
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig configures tracing and metrics output.
type TelemetryConfig struct {
	// TraceStdout writes spans to stderr as JSON.
	TraceStdout bool `yaml:"trace_stdout" mapstructure:"trace_stdout"`
	// MetricsFile, when set, receives a Prometheus text dump on exit.
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.API.Timeout == "" {
		c.API.Timeout = "30s"
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "saccosphere-cli"
	}
	p := &c.API.Paths
	if p.Login == "" {
		p.Login = "/auth/login"
	}
	if p.Register == "" {
		p.Register = "/auth/register"
	}
	if p.Refresh == "" {
		p.Refresh = "/auth/refresh"
	}
	if p.Me == "" {
		p.Me = "/auth/me"
	}
	if p.Logout == "" {
		p.Logout = "/auth/logout"
	}
	if p.Saccos == "" {
		p.Saccos = "/saccos/"
	}

	// viper.IsSet distinguishes "not set" from "explicitly false".
	if !viper.IsSet("auth.attach_bearer") {
		c.Auth.AttachBearer = true
	}
	if c.Auth.RefreshTimeout == "" {
		c.Auth.RefreshTimeout = "10s"
	}
	if c.Auth.ProactiveRefreshSkew == "" {
		c.Auth.ProactiveRefreshSkew = "30s"
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/login"
	}

	if c.Session.Backend == "" {
		c.Session.Backend = BackendFile
	}
	dir := DefaultStateDir()
	if c.Session.StatePath == "" {
		c.Session.StatePath = filepath.Join(dir, "session.json")
	}
	if c.Session.SQLitePath == "" {
		c.Session.SQLitePath = filepath.Join(dir, "session.db")
	}
	if c.Session.Profile == "" {
		c.Session.Profile = DefaultProfile
	}
	if c.Session.RedisKey == "" {
		c.Session.RedisKey = "saccosphere:session"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// DefaultStateDir returns ~/.saccosphere, or .saccosphere when the home
// directory is unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".saccosphere"
	}
	return filepath.Join(home, ".saccosphere")
}

// APITimeout returns api.timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return parseDuration(c.API.Timeout)
}

// RefreshTimeout returns auth.refresh_timeout as a duration.
func (c *Config) RefreshTimeout() time.Duration {
	return parseDuration(c.Auth.RefreshTimeout)
}

// ProactiveRefreshSkew returns auth.proactive_refresh_skew as a duration.
func (c *Config) ProactiveRefreshSkew() time.Duration {
	return parseDuration(c.Auth.ProactiveRefreshSkew)
}

// RedisTTL returns session.redis_ttl as a duration (0 when unset).
func (c *Config) RedisTTL() time.Duration {
	return parseDuration(c.Session.RedisTTL)
}

// parseDuration returns 0 for empty or invalid input. Validate rejects
// invalid input before this is reached.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
