package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/pkg/deps"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

func (c *CLI) outdatedCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "outdated [Cargo.toml]",
		Short: "Check manifest dependencies against the latest releases",
		Long: `Check the registry dependencies of a Cargo.toml against the newest
published release of each crate. A dependency is outdated when its version
requirement does not accept that release.

Each crate is looked up once, one request at a time, so a large manifest
takes about one second per distinct crate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "Cargo.toml"
			if len(args) == 1 {
				path = args[0]
			}
			manifest, err := deps.ParseManifest(path)
			if err != nil {
				return err
			}

			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				logger := loggerFromContext(ctx)
				prog := newProgress(logger)

				spinner := newSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Checking %d dependencies...", len(manifest.Dependencies)))
				spinner.Start()
				reports, err := deps.CheckOutdated(ctx, client, manifest.Dependencies, func(msg string, args ...any) {
					logger.Debugf(msg, args...)
				})
				spinner.Stop()
				if err != nil {
					return err
				}
				prog.done(fmt.Sprintf("Checked %d dependencies", len(reports)))

				if c.flags.json {
					return printJSON(cmd.OutOrStdout(), jsonReports(reports))
				}
				printReports(cmd.OutOrStdout(), manifest, reports, all)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "list up-to-date dependencies too")
	return cmd
}

func printReports(w io.Writer, m *deps.Manifest, reports []deps.Report, all bool) {
	var outdated, failed int
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		status := StyleSuccess.Render("ok")
		switch {
		case r.Err != nil:
			failed++
			status = StyleWarning.Render("error")
		case r.Outdated:
			outdated++
			status = StyleWarning.Render("outdated")
		case !all:
			continue
		}
		rows = append(rows, []string{r.Name, r.Req, r.Latest, r.Kind, status})
	}

	name := m.Name
	if name == "" {
		name = "workspace"
	}
	if len(rows) > 0 {
		printTable(w, []string{"Dependency", "Requirement", "Latest", "Kind", ""}, rows)
	}

	switch {
	case failed > 0:
		printWarning(w, "%s: %d outdated, %d could not be checked", name, outdated, failed)
		for _, r := range reports {
			if r.Err != nil {
				printDetail(w, "%s: %v", r.Name, r.Err)
			}
		}
	case outdated > 0:
		printWarning(w, "%s: %d of %d dependencies outdated", name, outdated, len(reports))
	default:
		printSuccess(w, "%s: all %d dependencies up to date", name, len(reports))
	}
	if len(m.Skipped) > 0 {
		printDetail(w, "skipped %d path/git/workspace dependencies", len(m.Skipped))
	}
}

// jsonReport is the --json form of [deps.Report].
type jsonReport struct {
	Name     string `json:"name"`
	Crate    string `json:"crate"`
	Req      string `json:"req"`
	Kind     string `json:"kind"`
	Target   string `json:"target,omitempty"`
	Latest   string `json:"latest,omitempty"`
	Outdated bool   `json:"outdated"`
	Error    string `json:"error,omitempty"`
}

func jsonReports(reports []deps.Report) []jsonReport {
	out := make([]jsonReport, len(reports))
	for i, r := range reports {
		out[i] = jsonReport{
			Name:     r.Name,
			Crate:    r.Crate,
			Req:      r.Req,
			Kind:     r.Kind,
			Target:   r.Target,
			Latest:   r.Latest,
			Outdated: r.Outdated,
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}
