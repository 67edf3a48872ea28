package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cartapi"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	require.NoError(t, err)

	assert.Empty(t, cfg.BaseURL)
	assert.Empty(t, cfg.Session)
	assert.Equal(t, cartapi.DefaultSessionCookie, cfg.SessionCookie)
	assert.Equal(t, "/", cfg.CurrentPath)
	assert.Equal(t, cartapi.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, cartapi.DefaultRoutes(), cfg.Routes)
	assert.Error(t, cfg.RequireService())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
base_url: https://shop.example.com/api
session: abc123
current_path: /cart
timeout: 3s
routes:
  get: /basket
journal: cart.db
`)

	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/api", cfg.BaseURL)
	assert.Equal(t, "abc123", cfg.Session)
	assert.Equal(t, "/cart", cfg.CurrentPath)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "/basket", cfg.Routes.Get)
	assert.Equal(t, "/cart/add", cfg.Routes.Add, "unset routes keep their defaults")
	assert.Equal(t, "cart.db", cfg.Journal)
	assert.NoError(t, cfg.RequireService())
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(writeConfig(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.CurrentPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "base_url: http://file.local\nsession: from-file\n")

	cfg, err := LoadWithEnv(path, env(map[string]string{
		EnvBaseURL:     "http://env.local:8089",
		EnvSession:     "",
		EnvCurrentPath: "/cart/?ref=nav",
		EnvTimeout:     "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://env.local:8089", cfg.BaseURL)
	assert.Empty(t, cfg.Session, "a set but empty variable still overrides")
	assert.Equal(t, "/cart/?ref=nav", cfg.CurrentPath)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "unknown field", file: "base_ulr: http://x\n", want: "failed to parse config file"},
		{name: "bad scheme", file: "base_url: ftp://x\n", want: "base_url must be http or https"},
		{name: "zero timeout", file: "timeout: 0s\n", want: "timeout must be positive"},
		{name: "relative path", file: "current_path: cart\n", want: "current_path must start with /"},
		{name: "empty route", file: "routes:\n  remove: \"\"\n", want: "routes.remove must not be empty"},
		{name: "bad env timeout", env: map[string]string{EnvTimeout: "soon"}, want: EnvTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := LoadWithEnv(path, env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.Session = "sid"
	cfg.Timeout = time.Second

	opts := cfg.ClientOptions()
	assert.Equal(t, "sid", opts.Session)
	assert.Equal(t, cartapi.DefaultSessionCookie, opts.SessionCookie)
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, cartapi.DefaultRoutes(), opts.Routes)
}
