package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/users"
)

// Log output formats accepted in LogFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultListen is the address `userlist serve` binds when nothing else is set.
const DefaultListen = "127.0.0.1:8080"

// FileNames are the config file names Load looks for, in order.
var FileNames = []string{"userlist.yml", "userlist.yaml"}

// Duration is a time.Duration written as a Go duration string ("5s", "250ms")
// in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts duration strings and bare integers (nanoseconds).
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: line %d: duration must be a scalar", node.Line)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		var n int64
		if nerr := node.Decode(&n); nerr != nil {
			return fmt.Errorf("config: line %d: invalid duration %q", node.Line, node.Value)
		}
		v = time.Duration(n)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Config holds the settings shared by every userlist subcommand, loaded from
// userlist.yml.
type Config struct {
	Endpoint  string   `yaml:"endpoint,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
	Delay     Duration `yaml:"delay,omitempty"`
	Listen    string   `yaml:"listen,omitempty"`
	LogLevel  string   `yaml:"logLevel,omitempty"`
	LogFormat string   `yaml:"logFormat,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Endpoint:  users.DefaultEndpoint,
		Timeout:   Duration(users.DefaultTimeout),
		Listen:    DefaultListen,
		LogLevel:  "INFO",
		LogFormat: FormatText,
	}
}

// Load reads userlist.yml or userlist.yaml from dir and layers it over
// Default. Returns the defaults (not an error) if no config file exists.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("config: endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}
	if c.Delay < 0 {
		return fmt.Errorf("config: delay must not be negative, got %s", c.Delay)
	}
	switch strings.ToLower(c.LogFormat) {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q (want %s or %s)", c.LogFormat, FormatText, FormatJSON)
	}
	return nil
}
