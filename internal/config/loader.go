package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for saccosphere.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself,
// which Viper's built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled by LoadConfig).
		viper.SetConfigName("saccosphere")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SACCOSPHERE_API_BASE_URL
	viper.SetEnvPrefix("SACCOSPHERE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a saccosphere config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	paths := []string{".", DefaultStateDir()}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "saccosphere"))
		}
	} else {
		paths = append(paths, "/etc/saccosphere")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for saccosphere.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "saccosphere"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the nested keys so SACCOSPHERE_* variables reach
// them even when the config file does not mention them.
// Example: SACCOSPHERE_SESSION_BACKEND overrides session.backend
func bindNestedEnvKeys() {
	_ = viper.BindEnv("api.base_url")
	_ = viper.BindEnv("api.timeout")
	_ = viper.BindEnv("api.user_agent")
	_ = viper.BindEnv("api.paths.login")
	_ = viper.BindEnv("api.paths.register")
	_ = viper.BindEnv("api.paths.refresh")
	_ = viper.BindEnv("api.paths.me")
	_ = viper.BindEnv("api.paths.logout")
	_ = viper.BindEnv("api.paths.saccos")

	_ = viper.BindEnv("auth.attach_bearer")
	_ = viper.BindEnv("auth.refresh_timeout")
	_ = viper.BindEnv("auth.proactive_refresh_skew")
	_ = viper.BindEnv("auth.login_path")

	_ = viper.BindEnv("session.backend")
	_ = viper.BindEnv("session.state_path")
	_ = viper.BindEnv("session.sqlite_path")
	_ = viper.BindEnv("session.profile")
	_ = viper.BindEnv("session.redis_addr")
	_ = viper.BindEnv("session.redis_key")
	_ = viper.BindEnv("session.redis_ttl")

	_ = viper.BindEnv("log.level")
	_ = viper.BindEnv("log.format")

	_ = viper.BindEnv("telemetry.trace_stdout")
	_ = viper.BindEnv("telemetry.metrics_file")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
// Note: callers that bind CLI flags should do so before calling LoadConfig.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT validate. `saccosphere version` uses it.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
