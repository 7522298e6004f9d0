package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// pageOpts holds the pagination flags shared by listing commands.
type pageOpts struct {
	page    int
	perPage int
}

func (o *pageOpts) register(cmd *cobra.Command, perPage int) {
	o.perPage = perPage
	cmd.Flags().IntVar(&o.page, "page", 1, "page number")
	cmd.Flags().IntVar(&o.perPage, "per-page", perPage, "results per page")
}

func (o *pageOpts) validate() error {
	if o.page < 1 {
		return invalidArg("page", strconv.Itoa(o.page))
	}
	if o.perPage < 1 || o.perPage > crates.DefaultPerPage {
		return invalidArg("per-page", strconv.Itoa(o.perPage), "1-"+strconv.Itoa(crates.DefaultPerPage))
	}
	return nil
}

// =============================================================================
// crate
// =============================================================================

func (c *CLI) crateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crate <name>",
		Short: "Show a crate and its recent versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				resp, err := client.Crate(ctx, args[0])
				if err != nil {
					return err
				}
				if c.flags.json {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				printCrate(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

// maxListedVersions bounds the version list printed by "crate".
const maxListedVersions = 10

func printCrate(w io.Writer, resp *crates.CrateResponse) {
	cr := resp.Crate
	fmt.Fprintln(w, StyleTitle.Render(cr.Name)+" "+StyleHighlight.Render(cr.MaxVersion))
	if cr.Description != "" {
		fmt.Fprintln(w, StyleDim.Render(strings.TrimSpace(cr.Description)))
	}
	printNewline(w)

	license := cr.License
	if v, ok := resp.Latest(); ok && license == "" {
		license = v.License
	}
	printKeyValue(w, "Latest", cr.MaxVersion)
	if cr.MaxStable != "" && cr.MaxStable != cr.MaxVersion {
		printKeyValue(w, "Stable", cr.MaxStable)
	}
	printKeyValue(w, "License", license)
	printKeyValue(w, "Downloads", formatCount(cr.Downloads))
	if cr.RecentDownloads != nil {
		printKeyValue(w, "Recent", formatCount(*cr.RecentDownloads))
	}
	printKeyValue(w, "Homepage", cr.Homepage)
	printKeyValue(w, "Repository", cr.Repository)
	printKeyValue(w, "Docs", cr.Documentation)
	printKeyValue(w, "Keywords", strings.Join(cr.Keywords, ", "))
	printKeyValue(w, "Categories", strings.Join(cr.Categories, ", "))
	if !cr.UpdatedAt.IsZero() {
		printKeyValue(w, "Updated", cr.UpdatedAt.Format("Jan 2, 2006"))
	}

	if len(resp.Versions) == 0 {
		return
	}
	printNewline(w)
	rows := make([][]string, 0, maxListedVersions)
	for i, v := range resp.Versions {
		if i == maxListedVersions {
			break
		}
		yanked := ""
		if v.Yanked {
			yanked = "yanked"
		}
		rows = append(rows, []string{v.Num, v.CreatedAt.Format("2006-01-02"), formatCount(v.Downloads), yanked})
	}
	printTable(w, []string{"Version", "Published", "Downloads", ""}, rows)
	if len(resp.Versions) > maxListedVersions {
		printDetail(w, "%d more versions", len(resp.Versions)-maxListedVersions)
	}
}

// =============================================================================
// version
// =============================================================================

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version <name> <version>",
		Short: "Show one published version of a crate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				v, err := client.Version(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if c.flags.json {
					return printJSON(w, v)
				}

				fmt.Fprintln(w, StyleTitle.Render(v.Crate)+" "+StyleHighlight.Render(v.Num))
				printNewline(w)
				printKeyValue(w, "Published", v.CreatedAt.Format("Jan 2, 2006"))
				if v.PublishedBy != nil {
					printKeyValue(w, "By", "@"+v.PublishedBy.Login)
				}
				printKeyValue(w, "License", v.License)
				printKeyValue(w, "Downloads", formatCount(v.Downloads))
				if v.CrateSize != nil {
					printKeyValue(w, "Size", formatCount(*v.CrateSize)+" bytes")
				}
				if v.Yanked {
					printWarning(w, "This version has been yanked")
				}
				if len(v.Features) > 0 {
					names := make([]string, 0, len(v.Features))
					for name := range v.Features {
						names = append(names, name)
					}
					sort.Strings(names)
					printKeyValue(w, "Features", strings.Join(names, ", "))
				}
				return nil
			})
		},
	}
}

// =============================================================================
// owners & authors
// =============================================================================

func (c *CLI) ownersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owners <name>",
		Short: "List the owners of a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				users, err := client.Owners(ctx, args[0])
				if err != nil {
					return err
				}
				if c.flags.json {
					return printJSON(cmd.OutOrStdout(), users)
				}
				printUsers(cmd.OutOrStdout(), users)
				return nil
			})
		},
	}
}

func (c *CLI) authorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authors <name> <version>",
		Short: "List the authors of a crate version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				authors, err := client.Authors(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if c.flags.json {
					return printJSON(w, authors)
				}
				for _, name := range authors.Names {
					fmt.Fprintln(w, name)
				}
				printUsers(w, authors.Users)
				return nil
			})
		},
	}
}

func printUsers(w io.Writer, users []crates.User) {
	for _, u := range users {
		line := StyleHighlight.Render(u.Login)
		if u.Name != "" {
			line += " " + StyleDim.Render("("+u.Name+")")
		}
		if u.Kind == "team" {
			line += " " + StyleDim.Render("team")
		}
		fmt.Fprintln(w, line)
	}
}

// =============================================================================
// downloads
// =============================================================================

func (c *CLI) downloadsCommand() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "downloads <name>",
		Short: "Show the recent daily downloads of a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return invalidArg("days", strconv.Itoa(days))
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				dl, err := client.Downloads(ctx, args[0])
				if err != nil {
					return err
				}
				if c.flags.json {
					return printJSON(cmd.OutOrStdout(), dl)
				}
				printDownloads(cmd.OutOrStdout(), dl, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 14, "number of most recent days to show")
	return cmd
}

func printDownloads(w io.Writer, dl *crates.Downloads, days int) {
	byDate := dl.ByDate()
	dates := make([]crates.Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[j].Before(dates[i]) })
	if len(dates) > days {
		dates = dates[:days]
	}

	var total uint64
	rows := make([][]string, 0, len(dates))
	for _, d := range dates {
		total += byDate[d]
		rows = append(rows, []string{d.String(), formatCount(byDate[d])})
	}
	printTable(w, []string{"Date", "Downloads"}, rows)
	printStats(w, fmt.Sprintf("%d days", len(dates)), formatCount(total)+" downloads")
}

// =============================================================================
// readme
// =============================================================================

func (c *CLI) readmeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "readme <name> <version>",
		Short: "Print the rendered README of a crate version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				text, err := client.Readme(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
}

// =============================================================================
// rdeps
// =============================================================================

func (c *CLI) rdepsCommand() *cobra.Command {
	var page pageOpts
	cmd := &cobra.Command{
		Use:   "rdeps <name>",
		Short: "List crates that depend on a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := page.validate(); err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				rd, err := client.ReverseDependencies(ctx, args[0], page.page, page.perPage)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if c.flags.json {
					return printJSON(w, rd)
				}

				reqs := make(map[uint64]string, len(rd.Dependencies))
				for _, d := range rd.Dependencies {
					reqs[d.VersionID] = d.Req
				}
				rows := make([][]string, 0, len(rd.Versions))
				for _, v := range rd.Versions {
					rows = append(rows, []string{v.Crate, v.Num, reqs[v.ID], formatCount(v.Downloads)})
				}
				printTable(w, []string{"Crate", "Version", "Requires", "Downloads"}, rows)
				printStats(w, fmt.Sprintf("page %d", page.page), formatCount(rd.Meta.Total)+" dependents")
				return nil
			})
		},
	}
	page.register(cmd, 20)
	return cmd
}

// =============================================================================
// summary
// =============================================================================

func (c *CLI) summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the registry front page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				s, err := client.Summary(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if c.flags.json {
					return printJSON(w, s)
				}

				printKeyValue(w, "Crates", formatCount(s.NumCrates))
				printKeyValue(w, "Downloads", formatCount(s.NumDownloads))
				for _, section := range []struct {
					title  string
					crates []crates.Crate
				}{
					{"New crates", s.NewCrates},
					{"Most downloaded", s.MostDownloaded},
					{"Just updated", s.JustUpdated},
				} {
					if len(section.crates) == 0 {
						continue
					}
					printNewline(w)
					fmt.Fprintln(w, StyleTitle.Render(section.title))
					for _, cr := range section.crates {
						fmt.Fprintln(w, "  "+StyleHighlight.Render(cr.Name)+" "+StyleDim.Render(cr.MaxVersion))
					}
				}
				return nil
			})
		},
	}
}

// =============================================================================
// categories & keywords
// =============================================================================

func (c *CLI) categoriesCommand() *cobra.Command {
	var page pageOpts
	cmd := &cobra.Command{
		Use:   "categories [slug]",
		Short: "List categories, or show one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := page.validate(); err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				w := cmd.OutOrStdout()
				if len(args) == 1 {
					cat, err := client.Category(ctx, args[0])
					if err != nil {
						return err
					}
					if c.flags.json {
						return printJSON(w, cat)
					}
					fmt.Fprintln(w, StyleTitle.Render(cat.Category)+" "+StyleDim.Render(cat.Slug))
					fmt.Fprintln(w, cat.Description)
					printKeyValue(w, "Crates", formatCount(cat.CratesCnt))
					for _, sub := range cat.Subcategories {
						printDetail(w, "%s (%s crates)", sub.Slug, formatCount(sub.CratesCnt))
					}
					return nil
				}

				cats, err := client.Categories(ctx, page.page, page.perPage)
				if err != nil {
					return err
				}
				if c.flags.json {
					return printJSON(w, cats)
				}
				rows := make([][]string, 0, len(cats.Categories))
				for _, cat := range cats.Categories {
					rows = append(rows, []string{cat.Slug, formatCount(cat.CratesCnt), truncate(cat.Description, 60)})
				}
				printTable(w, []string{"Slug", "Crates", "Description"}, rows)
				printStats(w, fmt.Sprintf("page %d", page.page), formatCount(cats.Meta.Total)+" categories")
				return nil
			})
		},
	}
	page.register(cmd, 50)
	return cmd
}

func (c *CLI) keywordsCommand() *cobra.Command {
	var page pageOpts
	cmd := &cobra.Command{
		Use:   "keywords [id]",
		Short: "List keywords, or show one keyword",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := page.validate(); err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				w := cmd.OutOrStdout()
				if len(args) == 1 {
					kw, err := client.Keyword(ctx, args[0])
					if err != nil {
						return err
					}
					if c.flags.json {
						return printJSON(w, kw)
					}
					printKeyValue(w, "Keyword", kw.Keyword)
					printKeyValue(w, "Crates", formatCount(kw.CratesCnt))
					return nil
				}

				kws, err := client.Keywords(ctx, page.page, page.perPage)
				if err != nil {
					return err
				}
				if c.flags.json {
					return printJSON(w, kws)
				}
				rows := make([][]string, 0, len(kws.Keywords))
				for _, kw := range kws.Keywords {
					rows = append(rows, []string{kw.Keyword, formatCount(kw.CratesCnt)})
				}
				printTable(w, []string{"Keyword", "Crates"}, rows)
				printStats(w, fmt.Sprintf("page %d", page.page), formatCount(kws.Meta.Total)+" keywords")
				return nil
			})
		},
	}
	page.register(cmd, 50)
	return cmd
}
