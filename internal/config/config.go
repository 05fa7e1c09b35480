package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
	"github.com/joeshaw/envdecode"
	"github.com/pelletier/go-toml/v2"
)

// Config is the server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Catalog CatalogConfig `toml:"catalog"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig holds the identity reported during initialize.
type ServerConfig struct {
	Name         string `toml:"name"`
	Version      string `toml:"version"`
	Instructions string `toml:"instructions"`
}

// CatalogConfig controls which directory is served and how files are listed.
type CatalogConfig struct {
	Root       string                     `toml:"root"`
	Extensions map[string]ExtensionConfig `toml:"extensions"`
}

// ExtensionConfig is one row of the catalog extension table.
type ExtensionConfig struct {
	MimeType          string `toml:"mime_type"`
	NamePrefix        string `toml:"name_prefix"`
	DescriptionPrefix string `toml:"description_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig controls the optional Prometheus listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// envOverrides lists the MCP_* variables. Unset variables leave the loaded
// value untouched.
type envOverrides struct {
	ServerName    string `env:"MCP_SERVER_NAME"`
	ServerVersion string `env:"MCP_SERVER_VERSION"`
	Root          string `env:"MCP_ROOT_DIR"`
	LogLevel      string `env:"MCP_LOG_LEVEL"`
	LogFormat     string `env:"MCP_LOG_FORMAT"`
	MetricsAddr   string `env:"MCP_METRICS_ADDR"`
}

// Overrides carries command-line flag values. Empty fields are ignored.
type Overrides struct {
	Root        string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "mcp-catalog-server",
			Version: "0.1.0",
		},
		Catalog: CatalogConfig{Root: "."},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadOption adjusts the defaults Load starts from.
type LoadOption func(*Config)

// WithDefaultVersion sets the server version used when neither the file nor
// the environment names one. The binary passes its build version here.
func WithDefaultVersion(v string) LoadOption {
	return func(c *Config) {
		if v != "" {
			c.Server.Version = v
		}
	}
}

// Load builds a Config with priority: defaults -> file -> env. A missing file
// is skipped; a file that exists but does not parse is an error.
func Load(path string, opts ...LoadOption) (*Config, error) {
	cfg := NewDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	setIf(&cfg.Server.Name, env.ServerName)
	setIf(&cfg.Server.Version, env.ServerVersion)
	setIf(&cfg.Catalog.Root, env.Root)
	setIf(&cfg.Logging.Level, env.LogLevel)
	setIf(&cfg.Logging.Format, env.LogFormat)
	setIf(&cfg.Metrics.Addr, env.MetricsAddr)
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func (c *Config) ApplyFlagOverrides(o Overrides) {
	setIf(&c.Catalog.Root, o.Root)
	setIf(&c.Logging.Level, o.LogLevel)
	setIf(&c.Logging.Format, o.LogFormat)
	setIf(&c.Metrics.Addr, o.MetricsAddr)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the logging settings and that the catalog root is an
// existing directory.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Logging.Format)
	}
	if c.Server.Name == "" {
		return errors.New("server name must not be empty")
	}
	info, err := os.Stat(c.Catalog.Root)
	if err != nil {
		return fmt.Errorf("catalog root %s: %w", c.Catalog.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog root %s is not a directory", c.Catalog.Root)
	}
	for ext, rule := range c.Catalog.Extensions {
		if rule.MimeType == "" {
			return fmt.Errorf("catalog extension %q: mime_type is required", ext)
		}
		if err := mcp.ValidateMediaType(rule.MimeType); err != nil {
			return fmt.Errorf("catalog extension %q: mime_type: %w", ext, err)
		}
	}
	return nil
}

// SlogLevel returns the configured level. Validate reports unknown names;
// here they fall back to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// JSONLogs reports whether logs should be emitted as JSON.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.Logging.Format, "json")
}

// ExtensionRules converts the configured extension table. A nil result means
// the catalog keeps its defaults.
func (c *Config) ExtensionRules() map[string]mcpservice.ExtensionRule {
	if len(c.Catalog.Extensions) == 0 {
		return nil
	}
	out := make(map[string]mcpservice.ExtensionRule, len(c.Catalog.Extensions))
	for ext, rule := range c.Catalog.Extensions {
		out[ext] = mcpservice.ExtensionRule{
			MimeType:          rule.MimeType,
			NamePrefix:        rule.NamePrefix,
			DescriptionPrefix: rule.DescriptionPrefix,
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}
