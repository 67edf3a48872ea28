// Package config loads cartsync settings from a YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, CARTSYNC_*
// environment variables, command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/cartapi"
)

// Environment variables read by Load.
const (
	EnvBaseURL     = "CARTSYNC_BASE_URL"
	EnvSession     = "CARTSYNC_SESSION"
	EnvCurrentPath = "CARTSYNC_CURRENT_PATH"
	EnvTimeout     = "CARTSYNC_TIMEOUT"
)

// Config is the client side of cartsync: where the cart service lives and
// who we are to it.
type Config struct {
	// BaseURL is the cart service root, e.g. https://shop.example.com/api.
	BaseURL string `yaml:"base_url"`

	// Session is the session cookie value. Empty means anonymous.
	Session string `yaml:"session"`

	// SessionCookie is the cookie name. Defaults to "session".
	SessionCookie string `yaml:"session_cookie"`

	// CurrentPath is the location a login redirect returns to.
	CurrentPath string `yaml:"current_path"`

	// Timeout bounds each service request.
	Timeout time.Duration `yaml:"timeout"`

	// Routes overrides endpoint paths relative to BaseURL.
	Routes cartapi.Routes `yaml:"routes"`

	// Journal is the SQLite journal path. Empty disables journaling.
	Journal string `yaml:"journal"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SessionCookie: cartapi.DefaultSessionCookie,
		CurrentPath:   "/",
		Timeout:       cartapi.DefaultTimeout,
		Routes:        cartapi.DefaultRoutes(),
	}
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads path (if non-empty) over the defaults, then applies the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		// An empty file decodes to io.EOF; keep the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvSession); ok {
		c.Session = v
	}
	if v, ok := lookup(EnvCurrentPath); ok {
		c.CurrentPath = v
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks field formats. BaseURL may be empty here; commands that
// talk to the service call RequireService.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if !strings.HasPrefix(c.CurrentPath, "/") {
		return fmt.Errorf("current_path must start with /, got %q", c.CurrentPath)
	}
	if c.SessionCookie == "" {
		return fmt.Errorf("session_cookie must not be empty")
	}
	for _, r := range []struct{ name, path string }{
		{"get", c.Routes.Get},
		{"add", c.Routes.Add},
		{"update", c.Routes.Update},
		{"remove", c.Routes.Remove},
	} {
		if r.path == "" {
			return fmt.Errorf("routes.%s must not be empty", r.name)
		}
	}
	return nil
}

// RequireService reports an error when no service is configured.
func (c *Config) RequireService() error {
	if c.BaseURL == "" {
		return fmt.Errorf("no cart service configured: set base_url, %s or --base-url", EnvBaseURL)
	}
	return nil
}

// ClientOptions converts the config to cartapi options.
func (c *Config) ClientOptions() cartapi.Options {
	return cartapi.Options{
		Routes:        c.Routes,
		Session:       c.Session,
		SessionCookie: c.SessionCookie,
		Timeout:       c.Timeout,
	}
}
