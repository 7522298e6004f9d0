package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/pkg/dag"
	"github.com/matzehuels/consecrates/pkg/deps"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
	"github.com/matzehuels/consecrates/pkg/render/nodelink"
)

// Output formats of the deps command.
const (
	formatText = "text"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// depsOpts holds the command-line flags for the deps command.
type depsOpts struct {
	format   string
	maxDepth int
	maxNodes int
	all      bool
	detailed bool
	output   string
}

func (o *depsOpts) validate() error {
	switch o.format {
	case formatText, formatDOT, formatSVG:
	default:
		return invalidArg("format", o.format, formatText, formatDOT, formatSVG)
	}
	if o.maxDepth < 1 {
		return invalidArg("depth", strconv.Itoa(o.maxDepth))
	}
	if o.maxNodes < 1 {
		return invalidArg("max-nodes", strconv.Itoa(o.maxNodes))
	}
	return nil
}

func (c *CLI) depsCommand() *cobra.Command {
	opts := depsOpts{format: formatText, maxDepth: deps.DefaultMaxDepth, maxNodes: deps.DefaultMaxNodes}

	cmd := &cobra.Command{
		Use:   "deps <name> [version]",
		Short: "Show the dependencies of a crate",
		Long: `Show the dependencies of a crate.

Without a version, the crate's latest release is resolved and its normal
dependencies are followed up to --depth levels, one registry request pair
per crate, all spaced by the rate limit. With a version, the dependency list
of exactly that version is shown, including dev and build dependencies.

Examples:
  consecrates deps serde_json
  consecrates deps tokio --depth 2 --format svg -o tokio.svg
  consecrates deps serde 1.0.210 --all`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				if len(args) == 2 {
					return c.runVersionDeps(ctx, cmd, client, args[0], args[1], &opts)
				}
				return c.runResolve(ctx, cmd, client, args[0], &opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text, dot or svg")
	cmd.Flags().IntVarP(&opts.maxDepth, "depth", "d", opts.maxDepth, "dependency levels to resolve")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", opts.maxNodes, "maximum crates to fetch")
	cmd.Flags().BoolVar(&opts.all, "all", false, "with a version: include dev, build and optional dependencies")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label graph nodes with versions and edges with requirements")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

// runResolve crawls the dependency graph below the latest release of name.
func (c *CLI) runResolve(ctx context.Context, cmd *cobra.Command, client *crates.Client, name string, opts *depsOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	spinner := newSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Resolving %s...", name))
	spinner.Start()
	g, err := deps.NewResolver(client).Resolve(ctx, name, deps.Options{
		MaxDepth: opts.maxDepth,
		MaxNodes: opts.maxNodes,
		Logger:   func(msg string, args ...any) { logger.Warnf(msg, args...) },
	})
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d crates", g.NodeCount()))

	return c.writeGraph(ctx, cmd, g, opts)
}

// runVersionDeps shows the dependency list of one published version.
func (c *CLI) runVersionDeps(ctx context.Context, cmd *cobra.Command, client *crates.Client, name, version string, opts *depsOpts) error {
	list, err := client.Dependencies(ctx, name, version)
	if err != nil {
		return err
	}
	if !opts.all {
		normal := list[:0]
		for _, d := range list {
			if d.Normal() {
				normal = append(normal, d)
			}
		}
		list = normal
	}

	if c.flags.json {
		return printJSON(cmd.OutOrStdout(), list)
	}
	if opts.format == formatText {
		w, closeFn, err := openOutput(cmd, opts.output)
		if err != nil {
			return err
		}
		defer closeFn()
		printDependencyTable(w, list)
		return nil
	}

	g := dag.New(name)
	if err := g.AddNode(dag.Node{ID: name, Version: version, Fetched: true}); err != nil {
		return err
	}
	for _, d := range list {
		if err := g.AddNode(dag.Node{ID: d.CrateID}); err != nil && !errors.Is(err, dag.ErrDuplicateNodeID) {
			return err
		}
		if err := g.AddEdge(dag.Edge{From: name, To: d.CrateID, Req: d.Req, Kind: d.Kind}); err != nil {
			return err
		}
	}
	g.SetDepths()
	return c.writeGraph(ctx, cmd, g, opts)
}

func printDependencyTable(w io.Writer, list []crates.Dependency) {
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		var flags []string
		if d.Optional {
			flags = append(flags, "optional")
		}
		if !d.DefaultFeatures {
			flags = append(flags, "no-default-features")
		}
		rows = append(rows, []string{d.CrateID, d.Req, d.Kind, d.Target, strings.Join(flags, ", ")})
	}
	printTable(w, []string{"Crate", "Requirement", "Kind", "Target", ""}, rows)
}

// writeGraph prints g in the requested format.
func (c *CLI) writeGraph(ctx context.Context, cmd *cobra.Command, g *dag.DAG, opts *depsOpts) error {
	if c.flags.json {
		return printJSON(cmd.OutOrStdout(), struct {
			Nodes []*dag.Node `json:"nodes"`
			Edges []dag.Edge  `json:"edges"`
		}{g.Nodes(), g.Edges()})
	}

	var data []byte
	switch opts.format {
	case formatText:
		var b strings.Builder
		printTree(&b, g)
		data = []byte(b.String())
	case formatDOT:
		data = []byte(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed}))
	case formatSVG:
		spinner := newSpinner(ctx, cmd.ErrOrStderr(), "Rendering SVG...")
		spinner.Start()
		svg, err := nodelink.RenderSVG(ctx, nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed}))
		spinner.Stop()
		if err != nil {
			return fmt.Errorf("render svg: %w", err)
		}
		data = svg
	}

	w, closeFn, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	defer closeFn()
	if _, err := w.Write(data); err != nil {
		return err
	}

	if opts.output != "" {
		errw := cmd.ErrOrStderr()
		printSuccess(errw, "Wrote %s", opts.format)
		printFile(errw, opts.output)
		printStats(errw, fmt.Sprintf("%d crates", g.NodeCount()), fmt.Sprintf("%d edges", g.EdgeCount()))
	}
	return nil
}

// printTree prints g as an indented tree from the root. A crate reached a
// second time is printed once more but not expanded again.
func printTree(w io.Writer, g *dag.DAG) {
	expanded := make(map[string]bool)
	edgeReq := make(map[[2]string]string)
	for _, e := range g.Edges() {
		edgeReq[[2]string{e.From, e.To}] = e.Req
	}

	var walk func(id, parent, indent string)
	walk = func(id, parent, indent string) {
		line := indent + StyleHighlight.Render(id)
		if n, ok := g.Node(id); ok && n.Version != "" {
			line += " " + StyleValue.Render(n.Version)
		}
		if req := edgeReq[[2]string{parent, id}]; req != "" {
			line += " " + StyleDim.Render(req)
		}
		children := g.Children(id)
		if expanded[id] && len(children) > 0 {
			line += " " + StyleDim.Render("(*)")
			children = nil
		}
		fmt.Fprintln(w, line)
		expanded[id] = true
		for _, child := range children {
			walk(child, id, indent+"  ")
		}
	}
	walk(g.Root(), "", "")
}

// openOutput returns the --output file, or the command's stdout.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
