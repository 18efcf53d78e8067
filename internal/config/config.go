package config

import (
	"encoding/json"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/urlstate/internal/errors"
)

const (
	// BaseName is the configuration file name without extension.
	BaseName = "urlstate"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultMode is the default navigation mode of server-side bindings.
	DefaultMode = "replace"
)

// FileNames lists the configuration files Load looks for, in order.
var FileNames = []string{
	BaseName + ".json",
	BaseName + ".yaml",
	BaseName + ".yml",
	BaseName + ".toml",
}

// Config is the complete urlstate configuration.
type Config struct {
	// Server contains playground server settings.
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`

	// Log contains logging settings.
	Log LogConfig `json:"log" yaml:"log" toml:"log"`

	// History contains navigation defaults.
	History HistoryConfig `json:"history" yaml:"history" toml:"history"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains playground server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host" yaml:"host" toml:"host"`

	// Port is the port to listen on.
	Port int `json:"port" yaml:"port" toml:"port"`

	// Metrics exposes Prometheus metrics at /metrics.
	Metrics bool `json:"metrics" yaml:"metrics" toml:"metrics"`

	// AllowedOrigins lists origins allowed to open /ws. Empty means same
	// origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty" toml:"allowedOrigins,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" toml:"level"`

	// Format is one of text, json, pretty.
	Format string `json:"format" yaml:"format" toml:"format"`
}

// HistoryConfig contains navigation defaults.
type HistoryConfig struct {
	// DefaultMode is replace or push.
	DefaultMode string `json:"defaultMode" yaml:"defaultMode" toml:"defaultMode"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    DefaultHost,
			Port:    DefaultPort,
			Metrics: true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		History: HistoryConfig{
			DefaultMode: DefaultMode,
		},
	}
}

// Find returns the first configuration file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load reads the configuration from dir. Without a configuration file the
// defaults are returned.
func Load(dir string) (*Config, error) {
	path, ok := Find(dir)
	if !ok {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from path. The format follows the file
// extension; unknown extensions are read as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E110").
			WithLocation(path, 0, 0).
			Wrap(err)
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		if e, ok := err.(*errors.Error); ok && e.Location == nil {
			e.WithLocation(path, 0, 0)
		}
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return parseError(path, 0, 0, err).
				WithSuggestion("Check the indentation and that values are valid YAML")
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			line, col := 0, 0
			var derr *toml.DecodeError
			if stderrors.As(err, &derr) {
				line, col = derr.Position()
			}
			return parseError(path, line, col, err).
				WithSuggestion("Check that tables are named [server], [log] and [history]")
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			line := 0
			var serr *json.SyntaxError
			if stderrors.As(err, &serr) {
				line = lineOf(data, serr.Offset)
			}
			return parseError(path, line, 0, err).
				WithSuggestion("Check that the file is valid JSON")
		}
	}
	return nil
}

func parseError(path string, line, col int, err error) *errors.Error {
	return errors.New("E111").WithLocation(path, line, col).Wrap(err)
}

// lineOf returns the 1-based line containing byte offset off.
func lineOf(data []byte, off int64) int {
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	return strings.Count(string(data[:off]), "\n") + 1
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.History.DefaultMode == "" {
		c.History.DefaultMode = DefaultMode
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E112").
			WithDetail("server.port must be between 0 and 65535, got " + strconv.Itoa(c.Server.Port))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("E112").
			WithDetail("log.level " + strconv.Quote(c.Log.Level) + " is not recognized").
			WithSuggestion("Use debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return errors.New("E112").
			WithDetail("log.format " + strconv.Quote(c.Log.Format) + " is not recognized").
			WithSuggestion("Use text, json or pretty")
	}
	switch c.History.DefaultMode {
	case "replace", "push":
	default:
		return errors.New("E112").
			WithDetail("history.defaultMode " + strconv.Quote(c.History.DefaultMode) + " is not recognized").
			WithSuggestion(`Use "replace" or "push"`)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Path returns the path the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Save writes the configuration as JSON to path.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E112").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E110").WithLocation(path, 0, 0).Wrap(err)
	}
	c.configPath = path
	return nil
}
