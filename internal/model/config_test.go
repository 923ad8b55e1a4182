package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("loading missing config: %v", err)
	}

	if cfg.Server.BaseURL != "http://localhost:8000" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.RequestTimeoutSec != 10 {
		t.Errorf("request timeout = %d, want 10", cfg.Server.RequestTimeoutSec)
	}
	if cfg.Channel.ReconnectIntervalSec != 5 || cfg.Channel.MaxReconnectAttempts != 5 {
		t.Errorf("channel defaults = %+v", cfg.Channel)
	}
	if cfg.Channel.LogLimit != 50 {
		t.Errorf("log limit = %d, want 50", cfg.Channel.LogLimit)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	original := &AppConfig{
		Server: ServerConfig{
			BaseURL:           "https://crm.example.com",
			WebSocketURL:      "wss://push.example.com/ws/notifications/",
			RequestTimeoutSec: 20,
		},
		Channel: ChannelConfig{
			ReconnectIntervalSec: 3,
			MaxReconnectAttempts: 7,
			LogLimit:             25,
		},
		Display: DisplayConfig{
			Theme:                "dark",
			DesktopNotifications: false,
		},
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if loaded.Server != original.Server {
		t.Errorf("server = %+v, want %+v", loaded.Server, original.Server)
	}
	if loaded.Channel != original.Channel {
		t.Errorf("channel = %+v, want %+v", loaded.Channel, original.Channel)
	}
	if loaded.Display.Theme != "dark" {
		t.Errorf("theme = %q", loaded.Display.Theme)
	}
}

func TestResolveWebSocketURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "explicit override wins",
			cfg: ServerConfig{
				BaseURL:      "https://crm.example.com",
				WebSocketURL: "wss://push.example.com/ws/notifications/",
			},
			want: "wss://push.example.com/ws/notifications/",
		},
		{
			name: "derived from https",
			cfg:  ServerConfig{BaseURL: "https://crm.example.com"},
			want: "wss://crm.example.com/ws/notifications/",
		},
		{
			name: "derived from http with trailing slash",
			cfg:  ServerConfig{BaseURL: "http://localhost:8000/"},
			want: "ws://localhost:8000/ws/notifications/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolveWebSocketURL(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
