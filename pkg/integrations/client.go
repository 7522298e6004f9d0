package integrations

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/httputil"
	"github.com/matzehuels/consecrates/pkg/observability"
)

const (
	// DefaultMinInterval is the smallest interval between requests tolerated by crates.io.
	DefaultMinInterval = time.Second

	// DefaultPollInterval is how long the blocking path sleeps after a denied admission.
	DefaultPollInterval = 100 * time.Millisecond
)

// Client is the rate-limited request gate shared by registry API clients.
//
// It combines an [httputil.Admitter] with an [httputil.Fetcher] into two
// access modes:
//
//   - [Client.Fetch] waits until the limiter admits the request
//   - [Client.TryFetch] returns [ErrWouldBlock] instead of waiting
//
// and layers typed decoding on top ([Client.Get], [Client.GetText] and their
// Try variants). The base URL and user agent are fixed at construction; the
// limiter owns the only mutable state. All methods are safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	userAgent string
	limiter   httputil.Admitter
	fetcher   httputil.Fetcher
	poll      time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithLimiter replaces the default in-memory limiter, for example with an
// [httputil.RedisLimiter] shared between processes.
func WithLimiter(a httputil.Admitter) Option {
	return func(c *Client) {
		if a != nil {
			c.limiter = a
		}
	}
}

// WithMinInterval sets the minimum interval of the default in-memory limiter.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.limiter = httputil.NewLimiter(d) }
}

// WithFetcher replaces the transport. Intended for tests and instrumentation.
func WithFetcher(f httputil.Fetcher) Option {
	return func(c *Client) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithHTTPClient uses hc for the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.fetcher = httputil.NewTransport(hc) }
}

// WithPollInterval sets the sleep between admission attempts of the blocking path.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

// NewClient creates a gate for the API rooted at baseURL.
//
// userAgent is mandatory: registries such as crates.io reject anonymous
// crawlers. Good values identify the tool and a contact, e.g.
// "my_crawler (help@my_crawler.com)".
//
// Without options the client uses a [httputil.Limiter] with
// [DefaultMinInterval], a [httputil.Transport] with the default timeout and
// [DefaultPollInterval].
func NewClient(baseURL, userAgent string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "user agent is required")
	}
	u, err := httputil.ParseURL(baseURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "invalid base URL")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath, u.RawQuery, u.Fragment = "", "", ""

	c := &Client{
		baseURL:   u,
		userAgent: userAgent,
		limiter:   httputil.NewLimiter(DefaultMinInterval),
		fetcher:   httputil.NewTransport(nil),
		poll:      DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root, always ending in a slash.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// UserAgent returns the User-Agent header sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// URL joins path segments onto the base URL and attaches query.
// Each segment is path-escaped, so a segment can never introduce a new path level.
func (c *Client) URL(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL.String())
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// Fetch waits for admission, then performs the request and returns the raw body.
//
// Rate limiting never makes Fetch fail: a denied admission is followed by a
// sleep of the poll interval and another attempt, for as long as it takes.
// Cancel ctx or give it a deadline to bound the wait; Fetch then returns
// ctx.Err(). Transport failures are returned as *[TransportError].
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	hooks := observability.Limiter()
	start := time.Now()
	for {
		ok, err := c.limiter.Admit(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			hooks.OnAdmit(ctx, rawURL, time.Since(start))
			return c.fetcher.Fetch(ctx, rawURL, c.userAgent)
		}
		hooks.OnDeny(ctx, rawURL, c.next())
		if err := sleep(ctx, c.poll); err != nil {
			return nil, err
		}
	}
}

// TryFetch asks the limiter once. If the window is still closed it returns
// [ErrWouldBlock] immediately, without sleeping and without touching the
// network; otherwise it performs the request like [Client.Fetch].
func (c *Client) TryFetch(ctx context.Context, rawURL string) ([]byte, error) {
	ok, err := c.limiter.Admit(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.Limiter().OnWouldBlock(ctx, rawURL)
		return nil, ErrWouldBlock
	}
	observability.Limiter().OnAdmit(ctx, rawURL, 0)
	return c.fetcher.Fetch(ctx, rawURL, c.userAgent)
}

// Get fetches rawURL through the blocking path and JSON-decodes the body into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	data, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return decodeInto(data, v)
}

// TryGet is the non-blocking counterpart of [Client.Get].
func (c *Client) TryGet(ctx context.Context, rawURL string, v any) error {
	data, err := c.TryFetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return decodeInto(data, v)
}

// GetText fetches rawURL through the blocking path and returns the body as text.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	data, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// TryGetText is the non-blocking counterpart of [Client.GetText].
func (c *Client) TryGetText(ctx context.Context, rawURL string) (string, error) {
	data, err := c.TryFetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// GetJSON is the generic form of [Client.Get].
func GetJSON[T any](ctx context.Context, c *Client, rawURL string) (T, error) {
	data, err := c.Fetch(ctx, rawURL)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](data)
}

// TryGetJSON is the generic form of [Client.TryGet].
func TryGetJSON[T any](ctx context.Context, c *Client, rawURL string) (T, error) {
	data, err := c.TryFetch(ctx, rawURL)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](data)
}

// Next reports when the limiter's window reopens, if the limiter can tell.
func (c *Client) Next() (time.Time, bool) {
	t := c.next()
	return t, !t.IsZero()
}

func (c *Client) next() time.Time {
	if n, ok := c.limiter.(interface{ Next() time.Time }); ok {
		return n.Next()
	}
	return time.Time{}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
