package integrations

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/httputil"
)

var (
	// ErrWouldBlock is returned by the non-blocking request path when the
	// rate-limit window has not elapsed yet. No request was sent; the caller
	// decides when to try again.
	ErrWouldBlock = apperrors.New(apperrors.ErrCodeRateLimited, "request would block: rate limit window still open")

	// ErrInvalidUTF8 is wrapped in a [DecodeError] for text bodies that are not UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")

	// ErrTrailingData is wrapped in a [DecodeError] when a JSON document is followed by more data.
	ErrTrailingData = errors.New("unexpected data after JSON document")

	// ErrNullDocument is wrapped in a [DecodeError] when the body is the JSON literal null.
	ErrNullDocument = errors.New("null document")

	// ErrMissingKey is wrapped in a [DecodeError] when a key listed by [Shape] is absent or null.
	ErrMissingKey = errors.New("missing required key")
)

// TransportError reports that the server could not be reached or the
// response could not be read. See [httputil.TransportError].
type TransportError = httputil.TransportError

// DecodeError reports a response body that does not have the expected shape:
// invalid JSON, an error envelope from the registry, or non-UTF-8 text.
// Retrying does not help; the server answered, just not with what was asked for.
type DecodeError struct {
	Target string // Go type or "text"
	Err    error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Target, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Code classifies the error for [apperrors.GetCode].
func (e *DecodeError) Code() apperrors.Code { return apperrors.ErrCodeDecode }

// APIError is the error envelope returned by crates.io instead of the
// requested document, e.g. {"errors":[{"detail":"Not Found"}]}.
// It is always delivered wrapped in a [DecodeError].
type APIError struct {
	Details []string
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return "registry error"
	}
	return "registry error: " + strings.Join(e.Details, "; ")
}

// NotFound reports whether the registry said the resource does not exist.
func (e *APIError) NotFound() bool {
	for _, d := range e.Details {
		if strings.Contains(strings.ToLower(d), "not found") {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err carries a registry "not found" envelope.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"git@gitlab.com:", "https://gitlab.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}
