// ABOUTME: Configuration loading and parsing for the crosstalk client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete crosstalk client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Channel ChannelConfig `yaml:"channel"`
	Creds   CredsConfig   `yaml:"creds"`
	Typing  TypingConfig  `yaml:"typing"`
	Voice   VoiceConfig   `yaml:"voice"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the remote service endpoints
type ServerConfig struct {
	// APIBaseURL is the message service base URL (e.g. http://localhost:8000)
	APIBaseURL string `yaml:"api_base_url"`
	// TranslateBaseURL is the translation service base URL. Defaults to
	// APIBaseURL when empty (the backend hosts both).
	TranslateBaseURL string `yaml:"translate_base_url"`
	// ChannelURL is the websocket endpoint (e.g. ws://localhost:8000/ws)
	ChannelURL string `yaml:"channel_url"`
}

// ChannelConfig holds reconnection policy for the realtime channel
type ChannelConfig struct {
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	ReconnectDelay time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	ReconnectDelayRaw string `yaml:"reconnect_delay"`
}

// CredsConfig holds the local credential store location
type CredsConfig struct {
	// Path to the local SQLite credentials database. Defaults to
	// $XDG_CONFIG_HOME/crosstalk/creds.db.
	Path string `yaml:"path"`
}

// TypingConfig holds the typing-indicator idle policy
type TypingConfig struct {
	IdleTimeout time.Duration `yaml:"-"`

	IdleTimeoutRaw string `yaml:"idle_timeout"`
}

// VoiceConfig holds voice capture bridge settings
type VoiceConfig struct {
	// AutoTranslate pre-translates finalized speech segments before they
	// reach the compose buffer.
	AutoTranslate bool `yaml:"auto_translate"`
	// BaseLanguage is the recognition language of the capture engine.
	BaseLanguage string `yaml:"base_language"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied by Load when the file leaves fields unset.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultTypingIdle        = time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with defaults applied and no file read.
// The server section must still be filled in by the caller (flags).
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Channel.ReconnectAttempts == 0 {
		c.Channel.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Channel.ReconnectDelay == 0 {
		c.Channel.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Typing.IdleTimeout == 0 {
		c.Typing.IdleTimeout = DefaultTypingIdle
	}
	if c.Server.TranslateBaseURL == "" {
		c.Server.TranslateBaseURL = c.Server.APIBaseURL
	}
	if c.Creds.Path == "" {
		c.Creds.Path = defaultCredsPath()
	}
}

// defaultCredsPath resolves the default credential store location under
// XDG_CONFIG_HOME, falling back to ~/.config.
func defaultCredsPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "crosstalk-creds.db"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "crosstalk", "creds.db")
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.APIBaseURL == "" {
		return fmt.Errorf("server.api_base_url is required")
	}
	if c.Server.ChannelURL == "" {
		return fmt.Errorf("server.channel_url is required")
	}
	if c.Channel.ReconnectAttempts < 0 {
		return fmt.Errorf("channel.reconnect_attempts must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Channel.ReconnectDelayRaw != "" {
		cfg.Channel.ReconnectDelay, err = time.ParseDuration(cfg.Channel.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Channel.ReconnectDelayRaw, err)
		}
	}

	if cfg.Typing.IdleTimeoutRaw != "" {
		cfg.Typing.IdleTimeout, err = time.ParseDuration(cfg.Typing.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Typing.IdleTimeoutRaw, err)
		}
	}

	return nil
}
