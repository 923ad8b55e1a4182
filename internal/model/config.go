package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds the CRM backend connection settings.
type ServerConfig struct {
	// BaseURL is the root URL of the CRM API
	// (e.g. https://crm.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WebSocketURL is the notification push endpoint. When empty it
	// is derived from BaseURL (http -> ws) plus /ws/notifications/.
	WebSocketURL string `mapstructure:"websocket_url" yaml:"websocket_url"`

	// RequestTimeoutSec bounds every one-shot API call (login,
	// revalidation, shop switch) so a guard never hangs in a
	// loading state.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// ChannelConfig holds tuning for the persistent notification channel.
type ChannelConfig struct {
	// ReconnectIntervalSec is the fixed backoff between reconnect
	// attempts after a dropped connection.
	ReconnectIntervalSec int `mapstructure:"reconnect_interval_sec" yaml:"reconnect_interval_sec"`

	// MaxReconnectAttempts bounds automatic reconnects; after this
	// many consecutive failures the channel stays disconnected
	// until explicitly reconnected.
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`

	// LogLimit is how many of the most recent notifications are
	// retained locally.
	LogLimit int `mapstructure:"log_limit" yaml:"log_limit"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// DesktopNotifications controls whether received notifications
	// are also surfaced outside the application window.
	DesktopNotifications bool `mapstructure:"desktop_notifications" yaml:"desktop_notifications"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Channel ChannelConfig `mapstructure:"channel" yaml:"channel"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// ResolveWebSocketURL returns the configured push endpoint, deriving it
// from the API base URL when not set explicitly.
func (c ServerConfig) ResolveWebSocketURL() string {
	if c.WebSocketURL != "" {
		return c.WebSocketURL
	}
	u := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/notifications/"
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/crmconsole/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "crmconsole", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:           "http://localhost:8000",
			RequestTimeoutSec: 10,
		},
		Channel: ChannelConfig{
			ReconnectIntervalSec: 5,
			MaxReconnectAttempts: 5,
			LogLimit:             50,
		},
		Display: DisplayConfig{
			Theme:                "default",
			DesktopNotifications: true,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.request_timeout_sec", 10)
	v.SetDefault("channel.reconnect_interval_sec", 5)
	v.SetDefault("channel.max_reconnect_attempts", 5)
	v.SetDefault("channel.log_limit", 50)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.desktop_notifications", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Channel.ReconnectIntervalSec <= 0 {
		cfg.Channel.ReconnectIntervalSec = 5
	}
	if cfg.Channel.MaxReconnectAttempts <= 0 {
		cfg.Channel.MaxReconnectAttempts = 5
	}
	if cfg.Channel.LogLimit <= 0 {
		cfg.Channel.LogLimit = 50
	}
	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = 10
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("channel", cfg.Channel)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
