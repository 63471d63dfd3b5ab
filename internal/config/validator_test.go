package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	cfg := &Config{API: APIConfig{BaseURL: "https://api.example.com"}}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	if err := minimalValidConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "BaseURL is required",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://api.example.com" },
			wantErr: "must use http or https",
		},
		{
			name:    "relative path",
			mutate:  func(c *Config) { c.API.Paths.Me = "auth/me" },
			wantErr: "Paths.Me must be a path starting with '/'",
		},
		{
			name:    "protocol-relative path",
			mutate:  func(c *Config) { c.API.Paths.Refresh = "//evil.example.com/refresh" },
			wantErr: "Paths.Refresh",
		},
		{
			name:    "bad duration",
			mutate:  func(c *Config) { c.Auth.RefreshTimeout = "ten seconds" },
			wantErr: "RefreshTimeout must be a duration",
		},
		{
			name:    "negative duration",
			mutate:  func(c *Config) { c.API.Timeout = "-1s" },
			wantErr: "Timeout must be a duration",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Session.Backend = "etcd" },
			wantErr: "Backend must be one of",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Session.Backend = BackendRedis },
			wantErr: "RedisAddr is required",
		},
		{
			name:    "bad redis address",
			mutate:  func(c *Config) { c.Session.Backend = BackendRedis; c.Session.RedisAddr = "not an address" },
			wantErr: "RedisAddr must be a valid host:port",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: "Level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_RedisBackend(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Session.Backend = BackendRedis
	cfg.Session.RedisAddr = "localhost:6379"
	cfg.Session.RedisTTL = "720h"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestInsecureBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://api.example.com", false},
		{"http://localhost:8000", false},
		{"http://127.0.0.1:8000/api", false},
		{"http://[::1]:8000", false},
		{"http://api.example.com", true},
	}
	for _, tt := range tests {
		cfg := &Config{API: APIConfig{BaseURL: tt.url}}
		if got := cfg.InsecureBaseURL(); got != tt.want {
			t.Errorf("InsecureBaseURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
