package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxCrateName = 64
	maxSegment   = 256
	maxPath      = 4096
)

var (
	// crates.io names: ASCII letter first, then letters, digits, - and _.
	crateNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

	// Published versions are full semver, optionally with pre-release or
	// build metadata.
	versionRegex = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+([-+][0-9A-Za-z.+-]+)?$`)

	// Category slugs nest with "::"; keyword ids may contain "+".
	slugRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_:+-]*$`)
)

// validateSegment rejects values that would escape their URL path segment.
func validateSegment(what, s string) error {
	switch {
	case s == "":
		return New(ErrCodeInvalidPackage, "%s cannot be empty", what)
	case len(s) > maxSegment:
		return New(ErrCodeInvalidPackage, "%s too long (max %d characters)", what, maxSegment)
	case strings.IndexFunc(s, unicode.IsControl) >= 0:
		return New(ErrCodeInvalidPackage, "%s contains control characters", what)
	}
	for _, bad := range []string{"..", "//", "\\"} {
		if strings.Contains(s, bad) {
			return New(ErrCodeInvalidPackage, "%s contains invalid characters: %q", what, bad)
		}
	}
	return nil
}

// ValidateCrateName checks name against the crates.io naming rules before
// it is placed in a request path.
func ValidateCrateName(name string) error {
	if err := validateSegment("crate name", name); err != nil {
		return err
	}
	if len(name) > maxCrateName || !crateNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid crates.io package name: %q", name)
	}
	return nil
}

// ValidateVersion checks a published version number such as "1.0.193" or
// "0.3.0-beta.1". Requirements like "^1.0" are not versions.
func ValidateVersion(version string) error {
	if version == "" {
		return New(ErrCodeInvalidInput, "version cannot be empty")
	}
	if !versionRegex.MatchString(version) {
		return New(ErrCodeInvalidInput, "invalid version: %q", version)
	}
	return nil
}

// ValidateSlug checks a category slug or keyword id.
func ValidateSlug(slug string) error {
	if err := validateSegment("slug", slug); err != nil {
		return New(ErrCodeInvalidInput, "%s", err.(*Error).Message)
	}
	if !slugRegex.MatchString(slug) {
		return New(ErrCodeInvalidInput, "invalid slug: %q", slug)
	}
	return nil
}

// ValidateURL requires an http or https URL. Schemes compare
// case-insensitively.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "malformed URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return New(ErrCodeInvalidInput, "URL must use http or https scheme")
}

// ValidatePath checks a local file path such as a manifest or config file.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return New(ErrCodeInvalidPath, "path cannot be empty")
	case len(path) > maxPath:
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPath)
	case strings.IndexFunc(path, unicode.IsControl) >= 0:
		return New(ErrCodeInvalidPath, "path contains invalid characters")
	}
	return nil
}
