package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/rpslobby/logging"
)

var (
	ErrConfigNotFound    = errors.New("configuration not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// Duration is a time.Duration that reads and writes as "10s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// NgrokConfig controls the optional public tunnel.
type NgrokConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	Domain    string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Config holds every runtime setting of the server.
type Config struct {
	TCPAddr  string `json:"tcp_addr" yaml:"tcp_addr"`
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
	// Host is the public host[:port] advertised in join URLs. Empty means
	// HTTPAddr.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	MaxMessageSize  int      `json:"max_message_size" yaml:"max_message_size"`
	SendBuffer      int      `json:"send_buffer" yaml:"send_buffer"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	Ngrok NgrokConfig `json:"ngrok" yaml:"ngrok"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TCPAddr:         ":3001",
		HTTPAddr:        "localhost:8080",
		MaxMessageSize:  512,
		SendBuffer:      32,
		WriteTimeout:    Duration(10 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
		LogLevel:        "info",
		LogFormat:       logging.FormatJSON,
	}
}

// PublicHost returns the host advertised to players.
func (c *Config) PublicHost() string {
	if c.Host != "" {
		return c.Host
	}
	return c.HTTPAddr
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	if errs := c.problems(); errs != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errs)
	}
	return nil
}

// problems returns every validation failure combined with multierr.
func (c *Config) problems() error {
	var errs error

	if err := validateAddr(c.TCPAddr); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("tcp_addr: %w", err))
	}
	if err := validateAddr(c.HTTPAddr); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("http_addr: %w", err))
	}
	if c.MaxMessageSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize))
	}
	if c.SendBuffer <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.WriteTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout.Std()))
	}
	if c.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout.Std()))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = multierr.Append(errs, fmt.Errorf("log_format: must be json or console, got %q", c.LogFormat))
	}
	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		errs = multierr.Append(errs, errors.New("ngrok: enabled without auth_token"))
	}
	return errs
}

func validateAddr(addr string) error {
	if addr == "" {
		return errors.New("address is empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return err
	}
	return nil
}

// Load reads a config file on top of the defaults. Fields missing from the
// file keep their default values. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
