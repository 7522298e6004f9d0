// Package cli implements the consecrates command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/pkg/buildinfo"
	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/httputil"
	"github.com/matzehuels/consecrates/pkg/integrations"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
	"github.com/matzehuels/consecrates/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "consecrates"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// Process exit codes returned by [ExitCode].
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitNetwork      = 3
	ExitDecode       = 4
	ExitInterrupted  = 130
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	getenv func(string) string
	flags  globalFlags
}

// globalFlags are the persistent flags that override the config file.
type globalFlags struct {
	configPath string
	userAgent  string
	baseURL    string
	redisAddr  string
	json       bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		getenv: os.Getenv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Consecrates is a polite crates.io API client",
		Long: `Consecrates queries the crates.io registry API while honoring its crawler
policy: every request carries a User-Agent and requests are spaced by at
least one second, across all commands of one invocation and, with a Redis
address configured, across processes.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/consecrates/config.toml)")
	pf.StringVar(&c.flags.userAgent, "user-agent", "", "User-Agent sent to the registry")
	pf.StringVar(&c.flags.baseURL, "base-url", "", "registry API base URL")
	pf.StringVar(&c.flags.redisAddr, "redis", "", "Redis address for a rate-limit window shared across processes")
	pf.BoolVar(&c.flags.json, "json", false, "print raw JSON instead of formatted output")

	// Registry queries
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.crateCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.ownersCommand())
	root.AddCommand(c.authorsCommand())
	root.AddCommand(c.downloadsCommand())
	root.AddCommand(c.readmeCommand())
	root.AddCommand(c.rdepsCommand())
	root.AddCommand(c.summaryCommand())
	root.AddCommand(c.categoriesCommand())
	root.AddCommand(c.keywordsCommand())

	// Local tooling
	root.AddCommand(c.outdatedCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration & Client Factory
// =============================================================================

// configPath returns the --config flag or the default location.
func (c *CLI) configPath() (string, error) {
	if c.flags.configPath != "" {
		return c.flags.configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file, then applies the environment and the
// persistent flags, in that order, and validates the result.
func (c *CLI) loadConfig() (*config.Config, error) {
	path, err := c.configPath()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "locate config file")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(c.getenv)

	if c.flags.userAgent != "" {
		cfg.UserAgent = c.flags.userAgent
	}
	if c.flags.baseURL != "" {
		cfg.BaseURL = c.flags.baseURL
	}
	if c.flags.redisAddr != "" {
		cfg.Redis.Addr = c.flags.redisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds the registry client described by cfg. The returned close
// function releases the Redis connection, if any.
func newClient(cfg *config.Config) (*crates.Client, func() error, error) {
	opts := []integrations.Option{
		integrations.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout.Duration}),
		integrations.WithMinInterval(cfg.MinInterval.Duration),
		integrations.WithPollInterval(cfg.PollInterval.Duration),
	}

	closeFn := func() error { return nil }
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, integrations.WithLimiter(httputil.NewRedisLimiter(rdb, cfg.Redis.Key, cfg.MinInterval.Duration)))
		closeFn = rdb.Close
	}

	client, err := crates.NewClientWithBaseURL(cfg.BaseURL, cfg.UserAgent, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return client, closeFn, nil
}

// withClient loads the configuration, builds a client with debug logging
// hooks installed and runs fn with it.
func (c *CLI) withClient(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, client *crates.Client) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	client, closeFn, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	hooks := newLogHooks(c.Logger)
	observability.SetHTTPHooks(hooks)
	observability.SetLimiterHooks(hooks)
	defer observability.Reset()

	c.Logger.Debug("Using registry", "base_url", cfg.BaseURL, "min_interval", cfg.MinInterval, "redis", cfg.Redis.Addr != "")
	return fn(withLogger(cmd.Context(), c.Logger), cfg, client)
}

// =============================================================================
// Output Helpers
// =============================================================================

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Exit Codes
// =============================================================================

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if integrations.IsNotFound(err) {
		return ExitError
	}
	if apperrors.Temporary(err) {
		return ExitNetwork
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidPackage,
		apperrors.ErrCodeInvalidConfig, apperrors.ErrCodeInvalidPath:
		return ExitInvalidInput
	case apperrors.ErrCodeDecode:
		return ExitDecode
	}
	return ExitError
}

// invalidArg reports a malformed command-line value.
func invalidArg(flag, value string, allowed ...string) error {
	if len(allowed) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "invalid --%s %q", flag, value)
	}
	return apperrors.New(apperrors.ErrCodeInvalidInput, "invalid --%s %q (want %s)", flag, value, strings.Join(allowed, ", "))
}
