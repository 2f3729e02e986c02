package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromDir(t *testing.T, dir, cfgFile string) (Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return Load(viper.New(), cfgFile)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFromDir(t, t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "standard", cfg.VisualQuality)
	assert.Equal(t, 1000, cfg.EventsBuffer)
	assert.Equal(t, 15*time.Second, cfg.Listen.Duration)
	assert.Equal(t, time.Second, cfg.Listen.PollTimeout)
	assert.Equal(t, 10, cfg.Ready.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Ready.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timing.Settle)
	assert.True(t, cfg.Browser.Headless)
	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, "https://example.com", cfg.Sites[0].URL)
	assert.Equal(t, "Complex SPA", cfg.Sites[1].Name)
	assert.Equal(t, "ws://localhost:8000", cfg.StreamBase())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
base_url: https://workflows.example.test/api
session_token: file-token
listen:
  duration: 30s
ready:
  attempts: 3
sites:
  - url: https://example.org
    name: Org
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("VSTREAM_SESSION_TOKEN", "env-token")
	t.Setenv("VSTREAM_LISTEN_POLL_TIMEOUT", "250ms")

	cfg, err := loadFromDir(t, dir, path)
	require.NoError(t, err)

	assert.Equal(t, "https://workflows.example.test/api", cfg.BaseURL)
	assert.Equal(t, "env-token", cfg.SessionToken, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.Listen.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Listen.PollTimeout)
	assert.Equal(t, 3, cfg.Ready.Attempts)
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "Org", cfg.Sites[0].Name)
	assert.Equal(t, "wss://workflows.example.test/api", cfg.StreamBase())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := t.TempDir()
	_, err := loadFromDir(t, dir, filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	var base Config
	require.NoError(t, v.Unmarshal(&base))
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "localhost:8000" }},
		{"ws url with http scheme", func(c *Config) { c.WSURL = "http://localhost:8000" }},
		{"zero attempts", func(c *Config) { c.Ready.Attempts = 0 }},
		{"zero listen duration", func(c *Config) { c.Listen.Duration = 0 }},
		{"negative settle", func(c *Config) { c.Timing.Settle = -time.Second }},
		{"empty quality", func(c *Config) { c.VisualQuality = "" }},
		{"bad site", func(c *Config) { c.Sites = []Site{{URL: "example.com"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Sites = append([]Site(nil), base.Sites...)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDeriveStreamBase(t *testing.T) {
	assert.Equal(t, "ws://host:8000", DeriveStreamBase("http://host:8000/"))
	assert.Equal(t, "wss://host", DeriveStreamBase("https://host"))

	cfg := Config{BaseURL: "http://a", WSURL: "wss://b/"}
	assert.Equal(t, "wss://b", cfg.StreamBase())
}
