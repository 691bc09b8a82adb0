// Package config loads the proxy's YAML configuration file: tunables,
// the per-hostname routing table, and a blocklist. It is a load-once,
// read-only dependency passed down from cmd/blockproxyd rather than a
// process-global singleton; it is never reloaded.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel is the configured logging verbosity. Levels are ordered
// NONE < CONNECTION < VERBOSE < DEBUG; a configured level enables a
// message tagged at that level or any less verbose one.
type LogLevel string

const (
	LogNone       LogLevel = "NONE"
	LogConnection LogLevel = "CONNECTION"
	LogVerbose    LogLevel = "VERBOSE"
	LogDebug      LogLevel = "DEBUG"
)

// logEnvVar is the environment variable consulted when settings.log is
// left unset in the YAML document.
const logEnvVar = "BLOCKPROXYD_LOG_LEVEL"

func (l LogLevel) rank() int {
	switch l {
	case LogDebug:
		return 3
	case LogVerbose:
		return 2
	case LogConnection:
		return 1
	default:
		return 0
	}
}

// Enabled reports whether a message tagged msgLevel should be emitted
// under this configured level.
func (l LogLevel) Enabled(msgLevel LogLevel) bool {
	return l.rank() >= msgLevel.rank()
}

// Settings holds the tunables consumed by the core plus a handful that
// round-trip through the YAML document unenforced; see DESIGN.md for
// which fields fall in the latter group and why.
type Settings struct {
	Listen            int      `yaml:"listen"`
	ClientBufferSize  int      `yaml:"client_buffer_size"`
	BackendBufferSize int      `yaml:"backend_buffer_size"`
	ClientsLimit      int      `yaml:"clients_limit"`
	HandshakeTimeout  int      `yaml:"handshake_timeout"`
	Log               LogLevel `yaml:"log"`

	// Reserved: parsed for forward/round-trip compatibility with existing
	// config files but not yet enforced by the core.
	CacheSize          int `yaml:"cache_size"`
	ClientPacketsLimit int `yaml:"client_packets_limit"`
	RatelimitWindow    int `yaml:"ratelimit_window"`
	Ratelimit          int `yaml:"ratelimit"`
	ConcurrentLimit    int `yaml:"concurrent_limit"`
	LogInspectBufLimit int `yaml:"log_inspect_buffer_limit"`
}

// Endpoint is one routing-table entry.
type Endpoint struct {
	Hostname string  `yaml:"hostname"`
	Origin   *string `yaml:"origin,omitempty"`
	MOTD     *string `yaml:"motd,omitempty"`
	Message  *string `yaml:"message,omitempty"`
}

// Config is the full parsed configuration document.
type Config struct {
	Settings  Settings   `yaml:"settings"`
	Endpoints []Endpoint `yaml:"endpoints"`
	Blocklist []string   `yaml:"blocklist"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Settings.Log == "" {
		cfg.Settings.Log = LogDebug
		if env := strings.ToUpper(strings.TrimSpace(os.Getenv(logEnvVar))); env != "" {
			cfg.Settings.Log = LogLevel(env)
		}
	}

	return &cfg, nil
}

// FindEndpoint returns the first routing-table entry whose hostname
// exactly matches host, or nil if none match.
func (c *Config) FindEndpoint(host string) *Endpoint {
	for i := range c.Endpoints {
		if c.Endpoints[i].Hostname == host {
			return &c.Endpoints[i]
		}
	}
	return nil
}
