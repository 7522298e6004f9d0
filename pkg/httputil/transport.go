package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/observability"
)

// DefaultTimeout bounds a single round trip made by [NewTransport]'s default client.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 64 << 20

// ErrBodyTooLarge is wrapped in a [TransportError] when a response exceeds the body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// TransportError reports a failed round trip: a malformed URL, a connection
// failure or a broken response body. HTTP status codes are not transport
// errors; the body of a 404 is returned like any other.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("GET %s: %v", e.URL, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Code classifies the error for [apperrors.GetCode].
func (e *TransportError) Code() apperrors.Code { return apperrors.ErrCodeNetwork }

// Fetcher performs one GET round trip and returns the full body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, userAgent string) ([]byte, error)
}

// Transport is the production [Fetcher] built on net/http.
// It performs exactly one request per call and never retries.
type Transport struct {
	http *http.Client
}

// NewTransport wraps client. A nil client selects an http.Client with [DefaultTimeout].
func NewTransport(client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Transport{http: client}
}

// Fetch sends GET rawURL with the User-Agent header set to userAgent and
// returns the response body. Every failure is a *[TransportError].
func (t *Transport) Fetch(ctx context.Context, rawURL, userAgent string) ([]byte, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, u.Host, u.Path)
	start := time.Now()

	resp, err := t.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, u.Host, u.Path, err)
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err == nil && len(body) > maxBodySize {
		err = ErrBodyTooLarge
	}
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, u.Host, u.Path, err)
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	hooks.OnResponse(ctx, http.MethodGet, u.Host, u.Path, resp.StatusCode, time.Since(start))
	return body, nil
}

// ParseURL parses rawURL and requires an absolute http or https URL with a host.
func ParseURL(rawURL string) (*url.URL, error) {
	if err := apperrors.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "malformed URL")
	}
	if u.Host == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "URL has no host: %q", rawURL)
	}
	return u, nil
}

var _ Fetcher = (*Transport)(nil)
