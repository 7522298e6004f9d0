package crates

import (
	"context"
	"fmt"

	"github.com/matzehuels/consecrates/pkg/integrations"
)

// DefaultBaseURL is the root of the public crates.io API.
const DefaultBaseURL = "https://crates.io/api/v1/"

// CrateInfo is a condensed view of a crate at its latest version.
//
// Dependencies include only normal (non-dev, non-build, non-optional)
// dependencies, by crate name.
type CrateInfo struct {
	Name         string   // Crate name (e.g., "serde")
	Version      string   // max_version
	Dependencies []string // Normal dependency crate names (nil if none)
	Requirements []string // Version requirement of each entry in Dependencies
	Repository   string   // Normalized repository URL (may be empty)
	HomePage     string   // Homepage URL (may be empty)
	Description  string   // Crate description (may be empty)
	License      string   // License expression (may be empty)
	Downloads    uint64   // Total download count across all versions
}

// Client provides access to the crates.io API through a rate-limited
// [integrations.Client].
//
// Every endpoint method goes through the same gate, so calls made from many
// goroutines are spaced by the gate's minimum interval. By default the
// methods block until admitted; the view returned by [Client.NonBlocking]
// returns [integrations.ErrWouldBlock] instead.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	gate        *integrations.Client
	nonBlocking bool
}

// NewClient creates a client for the public registry at [DefaultBaseURL].
//
// userAgent is required by crates.io's crawler policy, for example
// "my_crawler (help@my_crawler.com)". Options configure the underlying gate.
func NewClient(userAgent string, opts ...integrations.Option) (*Client, error) {
	return NewClientWithBaseURL(DefaultBaseURL, userAgent, opts...)
}

// NewClientWithBaseURL creates a client for a registry mirror or a test server.
func NewClientWithBaseURL(baseURL, userAgent string, opts ...integrations.Option) (*Client, error) {
	gate, err := integrations.NewClient(baseURL, userAgent, opts...)
	if err != nil {
		return nil, err
	}
	return New(gate), nil
}

// New wraps an existing gate. Clients created from the same gate share its
// rate-limit window.
func New(gate *integrations.Client) *Client {
	return &Client{gate: gate}
}

// Gate returns the underlying request gate.
func (c *Client) Gate() *integrations.Client { return c.gate }

// NonBlocking returns a view of c whose endpoint methods return
// [integrations.ErrWouldBlock] instead of waiting for the rate-limit window.
// The view shares c's gate and window.
func (c *Client) NonBlocking() *Client {
	return &Client{gate: c.gate, nonBlocking: true}
}

// Blocking returns a view of c whose endpoint methods wait for admission.
func (c *Client) Blocking() *Client {
	return &Client{gate: c.gate}
}

// IsNonBlocking reports whether c is a non-blocking view.
func (c *Client) IsNonBlocking() bool { return c.nonBlocking }

// Crates returns one page of crates matching q.
func (c *Client) Crates(ctx context.Context, q Query) (*Crates, error) {
	var out Crates
	if err := c.get(ctx, c.CratesURL(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Crate returns the full record of a crate, including all its versions.
func (c *Client) Crate(ctx context.Context, name string) (*CrateResponse, error) {
	u, err := c.CrateURL(name)
	if err != nil {
		return nil, err
	}
	var out CrateResponse
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("crate %s: %w", name, err)
	}
	return &out, nil
}

// Version returns a single version of a crate.
func (c *Client) Version(ctx context.Context, name, version string) (*Version, error) {
	u, err := c.VersionURL(name, version)
	if err != nil {
		return nil, err
	}
	var out versionResponse
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("crate %s %s: %w", name, version, err)
	}
	return &out.Version, nil
}

// Dependencies returns all dependencies of a crate version, of every kind.
func (c *Client) Dependencies(ctx context.Context, name, version string) ([]Dependency, error) {
	u, err := c.VersionURL(name, version, "dependencies")
	if err != nil {
		return nil, err
	}
	var out Dependencies
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("dependencies of %s %s: %w", name, version, err)
	}
	return out.Dependencies, nil
}

// Authors returns the authors of a crate version.
func (c *Client) Authors(ctx context.Context, name, version string) (*Authors, error) {
	u, err := c.VersionURL(name, version, "authors")
	if err != nil {
		return nil, err
	}
	var out authorsResponse
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("authors of %s %s: %w", name, version, err)
	}
	return &Authors{Names: out.Meta.Names, Users: out.Users}, nil
}

// Downloads returns the recent daily download history of a crate.
func (c *Client) Downloads(ctx context.Context, name string) (*Downloads, error) {
	u, err := c.CrateURL(name, "downloads")
	if err != nil {
		return nil, err
	}
	var out Downloads
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("downloads of %s: %w", name, err)
	}
	return &out, nil
}

// Owners returns the user owners of a crate.
func (c *Client) Owners(ctx context.Context, name string) ([]User, error) {
	u, err := c.CrateURL(name, "owners")
	if err != nil {
		return nil, err
	}
	var out Owners
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("owners of %s: %w", name, err)
	}
	return out.Users, nil
}

// ReverseDependencies returns one page of the crates depending on name.
// Zero page and perPage take the server defaults.
func (c *Client) ReverseDependencies(ctx context.Context, name string, page, perPage int) (*ReverseDependencies, error) {
	u, err := c.ReverseDependenciesURL(name, page, perPage)
	if err != nil {
		return nil, err
	}
	var out ReverseDependencies
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("reverse dependencies of %s: %w", name, err)
	}
	return &out, nil
}

// Readme returns the rendered readme of a crate version as text.
func (c *Client) Readme(ctx context.Context, name, version string) (string, error) {
	u, err := c.VersionURL(name, version, "readme")
	if err != nil {
		return "", err
	}
	var text string
	if c.nonBlocking {
		text, err = c.gate.TryGetText(ctx, u)
	} else {
		text, err = c.gate.GetText(ctx, u)
	}
	if err != nil {
		return "", fmt.Errorf("readme of %s %s: %w", name, version, err)
	}
	return text, nil
}

// Summary returns the registry front page statistics.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.get(ctx, c.SummaryURL(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Categories returns one page of the category listing.
func (c *Client) Categories(ctx context.Context, page, perPage int) (*Categories, error) {
	var out Categories
	if err := c.get(ctx, c.CategoriesURL(page, perPage), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Category returns a single category with its subcategories.
func (c *Client) Category(ctx context.Context, slug string) (*Category, error) {
	u, err := c.CategoryURL(slug)
	if err != nil {
		return nil, err
	}
	var out categoryResponse
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("category %s: %w", slug, err)
	}
	return &out.Category, nil
}

// Keywords returns one page of the keyword listing.
func (c *Client) Keywords(ctx context.Context, page, perPage int) (*Keywords, error) {
	var out Keywords
	if err := c.get(ctx, c.KeywordsURL(page, perPage), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Keyword returns a single keyword.
func (c *Client) Keyword(ctx context.Context, id string) (*Keyword, error) {
	u, err := c.KeywordURL(id)
	if err != nil {
		return nil, err
	}
	var out keywordResponse
	if err := c.get(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("keyword %s: %w", id, err)
	}
	return &out.Keyword, nil
}

// FetchCrate returns a condensed view of a crate at its latest version.
//
// It makes two requests through the gate: the crate record and the
// dependency list of max_version. Both must succeed.
func (c *Client) FetchCrate(ctx context.Context, name string) (*CrateInfo, error) {
	data, err := c.Crate(ctx, name)
	if err != nil {
		return nil, err
	}

	deps, err := c.Dependencies(ctx, name, data.Crate.MaxVersion)
	if err != nil {
		return nil, err
	}

	info := &CrateInfo{
		Name:        data.Crate.Name,
		Version:     data.Crate.MaxVersion,
		Description: data.Crate.Description,
		License:     data.Crate.License,
		Repository:  integrations.NormalizeRepoURL(data.Crate.Repository),
		HomePage:    data.Crate.Homepage,
		Downloads:   data.Crate.Downloads,
	}
	if v, ok := data.Latest(); ok && info.License == "" {
		info.License = v.License
	}
	for _, d := range deps {
		if d.Normal() {
			info.Dependencies = append(info.Dependencies, d.CrateID)
			info.Requirements = append(info.Requirements, d.Req)
		}
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	if c.nonBlocking {
		return c.gate.TryGet(ctx, rawURL, v)
	}
	return c.gate.Get(ctx, rawURL, v)
}
