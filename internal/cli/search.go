package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/consecrates/internal/config"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// searchOpts holds the command-line flags for the search command.
// Flags override the matching key=value tokens of the query words.
type searchOpts struct {
	interactive bool
	page        int
	perPage     int
	sort        string
	category    string
	keyword     string
}

// query combines the query words with the flags.
func (o *searchOpts) query(words []string) (crates.Query, error) {
	q := crates.ParseQuery(strings.Join(words, " "))
	if o.page > 0 {
		q.Page = o.page
	}
	if o.perPage > 0 {
		q.PerPage = o.perPage
	}
	if q.PerPage > crates.DefaultPerPage {
		return q, invalidArg("per-page", fmt.Sprint(q.PerPage), fmt.Sprintf("at most %d", crates.DefaultPerPage))
	}
	if o.sort != "" {
		s, ok := crates.ParseSort(o.sort)
		if !ok {
			return q, invalidArg("sort", o.sort, "alpha", "downloads", "recent-downloads", "recent-updates", "new")
		}
		q.Sort = s
	}
	if o.category != "" {
		cat, ok := crates.ParseCategory(o.category)
		if !ok {
			return q, invalidArg("category", o.category)
		}
		q.Category = cat
	}
	if o.keyword != "" {
		q.Keyword = o.keyword
	}
	return q, nil
}

func (c *CLI) searchCommand() *cobra.Command {
	var opts searchOpts

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search crates",
		Long: `Search crates by free text and filters.

Words of the form key=value set options, everything else is search text:

  cat=, category=        category slug or alias (e.g. cat=web)
  kw=, keyword=          keyword
  sort=                  alpha, downloads (dl), recent-downloads (rdl),
                         recent-updates (update), new
  page=                  page number
  num=, per_page=        results per page (at most 100)

Examples:
  consecrates search http client sort=dl
  consecrates search cat=cli num=10
  consecrates search -i tokio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.query(args)
			if err != nil {
				return err
			}
			return c.withClient(cmd, func(ctx context.Context, _ *config.Config, client *crates.Client) error {
				loggerFromContext(ctx).Debug("Searching", "query", q.String())
				result, err := client.Crates(ctx, q)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if c.flags.json {
					return printJSON(w, result)
				}
				if len(result.Crates) == 0 {
					printInfo(w, "No crates found")
					return nil
				}
				if opts.interactive {
					return c.pickCrate(ctx, cmd, client, result.Crates)
				}

				printSearchResults(w, result, q)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick a result interactively and show it")
	cmd.Flags().IntVar(&opts.page, "page", 0, "page number")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "results per page (default 100)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "result ordering")
	cmd.Flags().StringVar(&opts.category, "category", "", "only crates in this category")
	cmd.Flags().StringVar(&opts.keyword, "keyword", "", "only crates with this keyword")

	return cmd
}

func printSearchResults(w io.Writer, result *crates.Crates, q crates.Query) {
	rows := make([][]string, 0, len(result.Crates))
	for _, cr := range result.Crates {
		rows = append(rows, []string{cr.Name, cr.MaxVersion, formatCount(cr.Downloads), truncate(strings.TrimSpace(cr.Description), 50)})
	}
	printTable(w, []string{"Crate", "Version", "Downloads", "Description"}, rows)

	page := max(q.Page, 1)
	printStats(w, fmt.Sprintf("%d of %s crates", len(result.Crates), formatCount(result.Meta.Total)), fmt.Sprintf("page %d", page))
	if result.Meta.NextPage != nil {
		next := q
		next.Page = page + 1
		printNextStep(w, "Next page", appName+" search "+next.String())
	}
}

// pickCrate lets the user choose one of list and prints its full record.
func (c *CLI) pickCrate(ctx context.Context, cmd *cobra.Command, client *crates.Client, list []crates.Crate) error {
	p := tea.NewProgram(NewCrateListModel(list),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.ErrOrStderr()),
	)
	final, err := p.Run()
	if err != nil {
		return err
	}
	m, ok := final.(CrateListModel)
	if !ok || m.Selected == nil {
		printDetail(cmd.ErrOrStderr(), "No selection made")
		return nil
	}

	resp, err := client.Crate(ctx, m.Selected.Name)
	if err != nil {
		return err
	}
	printCrate(cmd.OutOrStdout(), resp)
	return nil
}
