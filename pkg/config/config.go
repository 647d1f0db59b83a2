package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Listener and dispatch settings
//   - Authentication (HTTP Basic credentials file)
//   - Request log storage selection (memory or badger)
//   - Metrics sidecar settings
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (HTTPSERV_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains listener, document root, and dispatch settings
	Server ServerConfig `mapstructure:"server"`

	// Auth configures HTTP Basic authentication
	Auth AuthConfig `mapstructure:"auth"`

	// RequestLog specifies the request log store type and type-specific
	// configuration
	RequestLog RequestLogConfig `mapstructure:"request_log"`

	// Metrics configures the Prometheus sidecar
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains listener and dispatch settings.
type ServerConfig struct {
	// Port is the TCP port to listen on
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// DocumentRoot is the directory served to clients
	DocumentRoot string `mapstructure:"document_root" validate:"required"`

	// Strategy selects how accepted connections are dispatched
	// Valid values: iterative, concurrent, pool, process
	Strategy string `mapstructure:"strategy" validate:"required,oneof=iterative concurrent pool process"`

	// PoolSize is the number of workers for the pool strategy
	PoolSize int `mapstructure:"pool_size" validate:"gte=0"`

	// MaxConnections limits concurrent connections (0 = unlimited).
	// Only meaningful for the concurrent strategy.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0"`

	// ReadTimeout is the per-connection deadline for reading a request
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"required,gt=0"`

	// WriteTimeout is the per-connection deadline for writing a response
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// AuthConfig configures HTTP Basic authentication.
type AuthConfig struct {
	// CredentialsFile is the path to the user:password file.
	// Empty disables authentication.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Realm is the value sent in WWW-Authenticate challenges
	Realm string `mapstructure:"realm"`
}

// RequestLogConfig specifies request log storage.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type RequestLogConfig struct {
	// Type specifies which log store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig configures the Prometheus metrics sidecar.
type MetricsConfig struct {
	// Enabled turns the metrics registry and sidecar on
	Enabled bool `mapstructure:"enabled"`

	// Port is the sidecar listen port
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HTTPSERV_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the HTTPSERV_ prefix and underscores.
	// Example: HTTPSERV_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("HTTPSERV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults.
		// Viper reports the search-path case with its own error type and an
		// explicitly named missing file as a plain os error.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "httpserv")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "httpserv")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
