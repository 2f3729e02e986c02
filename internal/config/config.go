// Package config loads harness settings from flags, VSTREAM_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. VSTREAM_BASE_URL
// or VSTREAM_LISTEN_DURATION.
const EnvPrefix = "VSTREAM"

// Site is one target of the multi-site streaming scenario.
type Site struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Name string `mapstructure:"name" yaml:"name"`
}

// Listen configures the bounded event listener.
type Listen struct {
	Duration    time.Duration `mapstructure:"duration"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// Ready configures visual status polling.
type Ready struct {
	Attempts int           `mapstructure:"attempts"`
	Interval time.Duration `mapstructure:"interval"`
}

// Timing holds the fixed waits of the manual execution scenario.
type Timing struct {
	ConnectGrace time.Duration `mapstructure:"connect_grace"`
	Settle       time.Duration `mapstructure:"settle"`
}

// Browser configures the recording browser.
type Browser struct {
	Headless bool          `mapstructure:"headless"`
	RRWebURL string        `mapstructure:"rrweb_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// NavigationURL is the target of the single-page navigation scenario.
	NavigationURL string `mapstructure:"navigation_url"`
}

// Config is the complete harness configuration.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	SessionToken   string        `mapstructure:"session_token"`
	VisualQuality  string        `mapstructure:"visual_quality"`
	EventsBuffer   int           `mapstructure:"events_buffer"`
	WorkflowFile   string        `mapstructure:"workflow_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`

	Listen  Listen  `mapstructure:"listen"`
	Ready   Ready   `mapstructure:"ready"`
	Timing  Timing  `mapstructure:"timing"`
	Browser Browser `mapstructure:"browser"`
	Sites   []Site  `mapstructure:"sites"`
}

// DefaultRRWebURL is the recorder bundle loaded into the browser.
const DefaultRRWebURL = "https://cdn.jsdelivr.net/npm/rrweb@1.1.3/dist/rrweb.min.js"

// SetDefaults registers every key with its default value. Keys must be
// registered for AutomaticEnv to apply during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("ws_url", "")
	v.SetDefault("session_token", "")
	v.SetDefault("visual_quality", "standard")
	v.SetDefault("events_buffer", 1000)
	v.SetDefault("workflow_file", "")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9464")

	v.SetDefault("listen.duration", 15*time.Second)
	v.SetDefault("listen.poll_timeout", time.Second)
	v.SetDefault("ready.attempts", 10)
	v.SetDefault("ready.interval", 2*time.Second)
	v.SetDefault("timing.connect_grace", 2*time.Second)
	v.SetDefault("timing.settle", 10*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.rrweb_url", DefaultRRWebURL)
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.navigation_url", "https://x.com")

	v.SetDefault("sites", []map[string]any{
		{"url": "https://example.com", "name": "Simple Website"},
		{"url": "https://x.com", "name": "Complex SPA"},
	})
}

// Load reads configuration into a Config. cfgFile, when set, must exist;
// otherwise vstream.yaml is searched in the working directory and
// $HOME/.config/vstream, and a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("vstream")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "vstream"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if err := checkURL("base_url", c.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.WSURL != "" {
		if err := checkURL("ws_url", c.WSURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.VisualQuality == "" {
		errs = append(errs, errors.New("visual_quality must not be empty"))
	}
	if c.EventsBuffer < 0 {
		errs = append(errs, fmt.Errorf("events_buffer must be >= 0, got %d", c.EventsBuffer))
	}
	if c.Ready.Attempts < 1 {
		errs = append(errs, fmt.Errorf("ready.attempts must be >= 1, got %d", c.Ready.Attempts))
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"request_timeout", c.RequestTimeout},
		{"listen.duration", c.Listen.Duration},
		{"listen.poll_timeout", c.Listen.PollTimeout},
		{"ready.interval", c.Ready.Interval},
		{"browser.timeout", c.Browser.Timeout},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.key, d.val))
		}
	}
	if c.Timing.ConnectGrace < 0 || c.Timing.Settle < 0 {
		errs = append(errs, errors.New("timing values must not be negative"))
	}

	for i, s := range c.Sites {
		if err := checkURL(fmt.Sprintf("sites[%d].url", i), s.URL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// StreamBase returns the WebSocket base URL, derived from BaseURL when
// WSURL is not set.
func (c Config) StreamBase() string {
	if c.WSURL != "" {
		return strings.TrimRight(c.WSURL, "/")
	}
	return DeriveStreamBase(c.BaseURL)
}

// DeriveStreamBase maps http to ws and https to wss.
func DeriveStreamBase(httpBase string) string {
	base := strings.TrimRight(httpBase, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must be an absolute %s URL", key, raw, strings.Join(schemes, "/"))
}
