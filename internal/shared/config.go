package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Camera     CameraConfig     `toml:"camera"`
	Navigation NavigationConfig `toml:"navigation"`
	Cache      CacheConfig      `toml:"cache"`
	Export     ExportConfig     `toml:"export"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig points the client at a Hatchly backend.
type ServerConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DatabaseConfig contains the local state database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CameraConfig describes the local capture command and the remote camera proxy.
//
// CaptureCommand is split on whitespace and must write a single encoded frame to stdout.
type CameraConfig struct {
	CaptureCommand        string `toml:"capture_command"`
	RemoteEnabled         bool   `toml:"remote_enabled"`
	CaptureTimeoutSeconds int    `toml:"capture_timeout_seconds"`
}

type NavigationConfig struct {
	BackCooldownMS int `toml:"back_cooldown_ms"`
}

type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// ExportConfig contains settings for history exports.
type ExportConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Timeout returns the HTTP client timeout.
func (c ServerConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSeconds, 15)
}

// CaptureTimeout returns how long a single local capture may run.
func (c CameraConfig) CaptureTimeout() time.Duration {
	return secondsOr(c.CaptureTimeoutSeconds, 10)
}

// BackCooldown returns the minimum spacing between two accepted back navigations.
func (c NavigationConfig) BackCooldown() time.Duration {
	if c.BackCooldownMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.BackCooldownMS) * time.Millisecond
}

// TTL returns the list cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return secondsOr(c.TTLSeconds, 60)
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Validate checks the fields the client cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("%w: server.base_url", ErrMissingConfig)
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("%w: server.base_url must be an http(s) URL, got %q", ErrInvalidConfig, c.Server.BaseURL)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path", ErrMissingConfig)
	}
	if c.Export.Workers < 0 {
		return fmt.Errorf("%w: export.workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults of the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
