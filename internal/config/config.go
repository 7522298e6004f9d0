// Package config loads the consecrates configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/consecrates/config.toml
// (~/.config/consecrates/config.toml when XDG_CONFIG_HOME is unset). A
// missing file is not an error: built-in defaults apply.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/consecrates/pkg/buildinfo"
	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/httputil"
	"github.com/matzehuels/consecrates/pkg/integrations"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

const appName = "consecrates"

// EnvUserAgent overrides the configured user agent when set.
const EnvUserAgent = "CONSECRATES_USER_AGENT"

// publicHost is the registry whose crawler policy forbids more than one request per second.
const publicHost = "crates.io"

// Config holds all user-facing configuration.
type Config struct {
	UserAgent    string       `toml:"user_agent"`
	BaseURL      string       `toml:"base_url"`
	MinInterval  Duration     `toml:"min_interval"`
	PollInterval Duration     `toml:"poll_interval"`
	HTTPTimeout  Duration     `toml:"http_timeout"`
	Redis        RedisConfig  `toml:"redis"`
	Server       ServerConfig `toml:"server"`
}

// RedisConfig enables a rate-limit window shared through Redis.
// An empty Addr keeps the window in process memory.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password,omitempty"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// ServerConfig configures the local proxy started by "consecrates serve".
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Defaults returns a Config populated with built-in default values.
func Defaults() *Config {
	return &Config{
		UserAgent:    buildinfo.UserAgent(),
		BaseURL:      crates.DefaultBaseURL,
		MinInterval:  Duration{integrations.DefaultMinInterval},
		PollInterval: Duration{integrations.DefaultPollInterval},
		HTTPTimeout:  Duration{httputil.DefaultTimeout},
		Redis:        RedisConfig{Key: httputil.DefaultRedisKey},
		Server:       ServerConfig{Addr: "127.0.0.1:8787"},
	}
}

// DefaultPath returns the config file location using the XDG standard.
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads a TOML config file on top of [Defaults]. If the file does not
// exist, the defaults are returned without error. Unknown keys are rejected
// so that typos do not silently fall back to defaults.
//
// Load does not validate; call [Config.Validate] after applying overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := apperrors.ValidatePath(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if ua := strings.TrimSpace(getenv(EnvUserAgent)); ua != "" {
		c.UserAgent = ua
	}
}

// Validate checks that the configuration can build a working client.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "user_agent is required by the registry's crawler policy")
	}

	u, err := httputil.ParseURL(c.BaseURL)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "base_url")
	}

	if c.MinInterval.Duration < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "min_interval must not be negative")
	}
	if strings.EqualFold(u.Hostname(), publicHost) && c.MinInterval.Duration < integrations.DefaultMinInterval {
		return apperrors.New(apperrors.ErrCodeInvalidConfig,
			"min_interval %s is below the %s allowed by %s", c.MinInterval, integrations.DefaultMinInterval, publicHost)
	}
	if c.PollInterval.Duration <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "poll_interval must be positive")
	}
	if c.MinInterval.Duration > 0 && c.PollInterval.Duration >= c.MinInterval.Duration {
		return apperrors.New(apperrors.ErrCodeInvalidConfig,
			"poll_interval %s must be shorter than min_interval %s", c.PollInterval, c.MinInterval)
	}
	if c.HTTPTimeout.Duration <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "http_timeout must be positive")
	}
	if c.Redis.Addr != "" && strings.TrimSpace(c.Redis.Key) == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "redis.key is required when redis.addr is set")
	}
	if c.Server.Addr == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "server.addr is required")
	}
	return nil
}

// redactedSecret replaces secrets in [Config.Redacted].
const redactedSecret = "********"

// Redacted returns a copy of c that is safe to print: a set redis.password
// is replaced with a placeholder.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Redis.Password != "" {
		out.Redis.Password = redactedSecret
	}
	return &out
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Duration is a time.Duration written as a Go duration string ("1s", "100ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
