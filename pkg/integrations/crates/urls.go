package crates

import (
	"net/url"
	"strconv"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
)

// CratesURL returns the search URL for q.
func (c *Client) CratesURL(q Query) string {
	return c.gate.URL(q.Values(), "crates")
}

// CrateURL returns the URL of a crate, or of one of its sub-resources when
// rest is given (e.g. "owners", or a version and "dependencies").
func (c *Client) CrateURL(name string, rest ...string) (string, error) {
	if err := apperrors.ValidateCrateName(name); err != nil {
		return "", err
	}
	return c.gate.URL(nil, append([]string{"crates", name}, rest...)...), nil
}

// VersionURL returns the URL of a crate version, or of one of its
// sub-resources ("dependencies", "authors", "readme").
func (c *Client) VersionURL(name, version string, rest ...string) (string, error) {
	if err := apperrors.ValidateVersion(version); err != nil {
		return "", err
	}
	return c.CrateURL(name, append([]string{version}, rest...)...)
}

// ReverseDependenciesURL returns the URL of one page of a crate's dependents.
func (c *Client) ReverseDependenciesURL(name string, page, perPage int) (string, error) {
	if err := apperrors.ValidateCrateName(name); err != nil {
		return "", err
	}
	return c.gate.URL(pageValues(page, perPage), "crates", name, "reverse_dependencies"), nil
}

// SummaryURL returns the URL of the registry summary.
func (c *Client) SummaryURL() string {
	return c.gate.URL(nil, "summary")
}

// CategoriesURL returns the URL of one page of the category listing.
func (c *Client) CategoriesURL(page, perPage int) string {
	return c.gate.URL(pageValues(page, perPage), "categories")
}

// CategoryURL returns the URL of a single category.
func (c *Client) CategoryURL(slug string) (string, error) {
	if err := apperrors.ValidateSlug(slug); err != nil {
		return "", err
	}
	return c.gate.URL(nil, "categories", slug), nil
}

// KeywordsURL returns the URL of one page of the keyword listing.
func (c *Client) KeywordsURL(page, perPage int) string {
	return c.gate.URL(pageValues(page, perPage), "keywords")
}

// KeywordURL returns the URL of a single keyword.
func (c *Client) KeywordURL(id string) (string, error) {
	if err := apperrors.ValidateSlug(id); err != nil {
		return "", err
	}
	return c.gate.URL(nil, "keywords", id), nil
}

func pageValues(page, perPage int) url.Values {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		v.Set("per_page", strconv.Itoa(perPage))
	}
	return v
}
