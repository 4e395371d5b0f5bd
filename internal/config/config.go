// Package config holds server settings. Values come from defaults, an
// optional YAML, JSON or TOML file, CAMPUS_* environment variables and
// command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

// EnvPrefix prefixes every environment override, e.g. CAMPUS_HTTP_PORT.
const EnvPrefix = "CAMPUS"

type Config struct {
	HTTP      HTTPConfig      `fig:"http"`
	WebSocket WebSocketConfig `fig:"websocket"`
	Audit     AuditConfig     `fig:"audit"`
	Logging   LoggingConfig   `fig:"logging"`
	Metrics   MetricsConfig   `fig:"metrics"`
	WebRTC    WebRTCConfig    `fig:"webrtc"`
}

type HTTPConfig struct {
	Host         string        `fig:"host"`
	ReadTimeout  time.Duration `fig:"read_timeout"`
	WriteTimeout time.Duration `fig:"write_timeout"`

	// Port 0 picks a free port.
	Port int `fig:"port"`

	// StaticDir holds the built client; empty disables static serving.
	StaticDir string `fig:"static_dir"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `fig:"ping_interval"`
	ReadTimeout     time.Duration `fig:"read_timeout"`
	WriteTimeout    time.Duration `fig:"write_timeout"`
	BufferSize      int           `fig:"buffer_size"`
	MaxMessageBytes int64         `fig:"max_message_bytes"`

	// RateLimit is inbound events per connection per minute; 0 disables.
	RateLimit int `fig:"rate_limit"`
}

// AuditConfig controls the SQLite admission log.
type AuditConfig struct {
	Enabled    bool          `fig:"enabled"`
	Path       string        `fig:"path"`
	Timeout    time.Duration `fig:"timeout"`
	BufferSize int           `fig:"buffer_size"`
}

type LoggingConfig struct {
	Level   string `fig:"level"`
	Console bool   `fig:"console"`
}

type MetricsConfig struct {
	Enabled bool   `fig:"enabled"`
	Path    string `fig:"path"`
}

// ICEServer is handed to browsers for peer connection setup.
type ICEServer struct {
	URLs       []string `fig:"urls"`
	Username   string   `fig:"username"`
	Credential string   `fig:"credential"`
}

type WebRTCConfig struct {
	ICEServers []ICEServer `fig:"ice_servers"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         3001,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			BufferSize:      256,
			MaxMessageBytes: 128 * 1024,
			RateLimit:       600,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Path:       "./campus.db",
			Timeout:    30 * time.Second,
			BufferSize: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		WebRTC: WebRTCConfig{
			ICEServers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		},
	}
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true, "disabled": true,
}

func (c *Config) Validate() error {
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}
	if c.WebSocket.RateLimit < 0 {
		return fmt.Errorf("WebSocket rate limit cannot be negative")
	}

	if c.Audit.Enabled {
		if c.Audit.Path == "" {
			return fmt.Errorf("audit database path cannot be empty")
		}
		if c.Audit.Timeout <= 0 {
			return fmt.Errorf("audit timeout must be positive")
		}
		if c.Audit.BufferSize <= 0 {
			return fmt.Errorf("audit buffer size must be positive")
		}
	}

	if !logLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /")
	}

	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ICE server %d has no urls", i)
		}
	}
	return nil
}

// Load reads path (optional) and the environment over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	opts := []fig.Option{fig.UseEnv(EnvPrefix)}
	if path == "" {
		opts = append(opts, fig.IgnoreFile())
	} else {
		opts = append(opts, fig.File(filepath.Base(path)), fig.Dirs(filepath.Dir(path)))
	}

	if err := fig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}
