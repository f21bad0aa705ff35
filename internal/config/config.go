// Package config loads the .gnm.kdl project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// ConfigFileName is the name of the gnm configuration file.
const ConfigFileName = ".gnm.kdl"

// Defaults.
const (
	DefaultTarget   = "https://github.com"
	DefaultPort     = 18090
	DefaultInterval = 24 * time.Hour
	DefaultStoreDir = ".gnm/store"
)

// Environment overrides.
const (
	EnvJSONURL = "GNM_JSON_URL"
	EnvDebug   = "GNM_DEBUG"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the gnm configuration.
type Config struct {
	// Enabled is the initial master switch for a fresh store.
	Enabled bool `kdl:"enabled"`
	Debug   bool `kdl:"debug"`

	Features FeaturesConfig `kdl:"features"`
	Sync     SyncConfig     `kdl:"sync"`
	Proxy    ProxyConfig    `kdl:"proxy"`
	Mention  MentionConfig  `kdl:"mention"`
	Store    StoreConfig    `kdl:"store"`

	// path is the file the config was loaded from, if any.
	path string
}

// FeaturesConfig toggles individual behaviors.
type FeaturesConfig struct {
	Replace         bool `kdl:"replace"`
	Highlight       bool `kdl:"highlight"`
	AvatarHighlight bool `kdl:"avatar-highlight"`
	Mention         bool `kdl:"mention"`
}

// SyncConfig controls the remote dictionary sync.
type SyncConfig struct {
	JSONURL    string `kdl:"json-url"`
	AutoUpdate bool   `kdl:"auto-update"`
	// Interval is a Go duration string, e.g. "24h".
	Interval string `kdl:"interval"`
}

// ProxyConfig defines the rewriting reverse proxy.
type ProxyConfig struct {
	Target string   `kdl:"target"`
	Port   int      `kdl:"port"`
	Hosts  []string `kdl:"hosts"`
}

// MentionConfig configures the autocomplete.
type MentionConfig struct {
	// Platform "mac" uses Meta as the shortcut modifier.
	Platform string `kdl:"platform"`
}

// StoreConfig locates the settings store.
type StoreConfig struct {
	Dir string `kdl:"dir"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Features: FeaturesConfig{
			Replace:         true,
			Highlight:       true,
			AvatarHighlight: true,
			Mention:         true,
		},
		Sync: SyncConfig{
			AutoUpdate: true,
			Interval:   DefaultInterval.String(),
		},
		Proxy: ProxyConfig{
			Target: DefaultTarget,
			Port:   DefaultPort,
			Hosts:  []string{"github.com", "*.github.com"},
		},
		Store: StoreConfig{Dir: DefaultStoreDir},
	}
}

// LoadConfig loads configuration from the specified directory.
// It looks for .gnm.kdl in the directory and its parents.
func LoadConfig(dir string) (*Config, error) {
	configPath := FindConfigFile(dir)
	if configPath == "" {
		cfg := DefaultConfig()
		if abs, err := filepath.Abs(dir); err == nil {
			cfg.path = filepath.Join(abs, ConfigFileName)
		}
		return cfg, nil
	}

	return LoadConfigFile(configPath)
}

// FindConfigFile searches for .gnm.kdl starting from dir and walking up.
func FindConfigFile(dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(absDir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			break
		}
		absDir = parent
	}

	return ""
}

// LoadConfigFile loads configuration from a specific file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// ParseConfig parses KDL configuration data.
func ParseConfig(data string) (*Config, error) {
	cfg := DefaultConfig()

	if err := kdl.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores defaults for scalar fields a partial block left
// empty.
func (c *Config) fillDefaults() {
	if c.Sync.Interval == "" {
		c.Sync.Interval = DefaultInterval.String()
	}
	if c.Proxy.Target == "" {
		c.Proxy.Target = DefaultTarget
	}
	if c.Proxy.Port == 0 {
		c.Proxy.Port = DefaultPort
	}
	if len(c.Proxy.Hosts) == 0 {
		c.Proxy.Hosts = []string{"github.com", "*.github.com"}
	}
	if c.Store.Dir == "" {
		c.Store.Dir = DefaultStoreDir
	}
}

// Validate checks values that parse but make no sense.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return fmt.Errorf("%w: sync interval %q: %v", ErrInvalid, c.Sync.Interval, err)
	}
	if d < time.Minute {
		return fmt.Errorf("%w: sync interval %s is below one minute", ErrInvalid, d)
	}
	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("%w: proxy port %d", ErrInvalid, c.Proxy.Port)
	}
	if !strings.HasPrefix(c.Proxy.Target, "http://") && !strings.HasPrefix(c.Proxy.Target, "https://") {
		return fmt.Errorf("%w: proxy target %q must be an http(s) URL", ErrInvalid, c.Proxy.Target)
	}
	return nil
}

// ApplyEnv applies environment overrides. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvJSONURL)); v != "" {
		c.Sync.JSONURL = v
	}
	if v := strings.TrimSpace(getenv(EnvDebug)); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Debug = on
		} else {
			c.Debug = true
		}
	}
}

// Path returns where the config was loaded from, or where it would be
// written for a directory without one.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the project directory the config belongs to.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// SyncInterval returns the parsed sync interval.
func (c *Config) SyncInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil || d <= 0 {
		return DefaultInterval
	}
	return d
}

// StorePath resolves the store directory against the project directory.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(c.Dir(), c.Store.Dir)
}

// ProxyAddr is the listen address for the proxy.
func (c *Config) ProxyAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Proxy.Port)
}

// WriteDefaultConfig writes a default configuration file with documentation.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// GitHub Name Mapper configuration

// Master switch for a fresh settings store
enabled true

// Verbose logging (also GNM_DEBUG=1)
debug false

features {
    replace true          // Rewrite usernames to username(nickname)
    highlight true        // Mark rewritten names with a highlight class
    avatar-highlight true // Annotate avatars of known users
    mention true          // @@ autocomplete in editable fields
}

// Remote dictionary
sync {
    // json-url "https://example.com/developers.json" // or GNM_JSON_URL
    auto-update true
    interval "24h"
}

// Rewriting reverse proxy (gnm serve)
proxy {
    target "https://github.com"
    port 18090
    hosts "github.com" "*.github.com"
}

mention {
    platform "linux" // "mac" uses Cmd instead of Ctrl for the shortcut
}

store {
    dir ".gnm/store"
}
`
	return os.WriteFile(path, []byte(defaultKDL), 0644)
}
