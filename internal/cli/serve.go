package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/internal/server"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// shutdownTimeout bounds how long in-flight proxy requests may finish.
const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local rate-limited registry proxy",
		Long: `Run a local HTTP proxy in front of the registry API.

GET /api/v1/<path> is forwarded to <base_url>/<path> through one shared
rate limiter, so several local tools can query the registry without
exceeding its crawler policy. Requests wait for the rate-limit window by
default; add ?nonblocking=1 to get 429 Too Many Requests with Retry-After
instead.

Other routes:
  GET /info/<name>   condensed crate summary with normal dependencies
  GET /health        liveness and upstream
  GET /version       build information`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, cfg *config.Config, client *crates.Client) error {
				if addr == "" {
					addr = cfg.Server.Addr
				}
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return err
				}
				return runServer(ctx, server.New(addr, client, c.Logger), ln)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8787)")
	return cmd
}

// runServer serves on ln until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *server.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
