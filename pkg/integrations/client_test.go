package integrations

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/httputil"
	"github.com/matzehuels/consecrates/pkg/observability"
)

const testAgent = "consecrates-test (test@example.com)"

// fakeFetcher records every call and answers with a fixed body or error.
type fakeFetcher struct {
	mu     sync.Mutex
	body   []byte
	err    error
	calls  []time.Time
	agents []string
	urls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, userAgent string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, time.Now())
	f.agents = append(f.agents, userAgent)
	f.urls = append(f.urls, rawURL)
	return f.body, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingAdmitter wraps a Limiter and records the exact instant of every admission.
type recordingAdmitter struct {
	mu       sync.Mutex
	limiter  *httputil.Limiter
	admitted []time.Time
}

func (r *recordingAdmitter) Admit(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.limiter.Allow() {
		return false, nil
	}
	r.admitted = append(r.admitted, r.limiter.Next().Add(-r.limiter.Interval()))
	return true, nil
}

// stuckAdmitter never admits.
type stuckAdmitter struct{}

func (stuckAdmitter) Admit(context.Context) (bool, error) { return false, nil }

type failingAdmitter struct{ err error }

func (f failingAdmitter) Admit(context.Context) (bool, error) { return false, f.err }

func testClient(t *testing.T, f httputil.Fetcher, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithFetcher(f), WithPollInterval(2 * time.Millisecond)}, opts...)
	c, err := NewClient("https://crates.io/api/v1", testAgent, opts...)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("https://crates.io/api/v1?x=1#frag", testAgent)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if got := c.BaseURL(); got != "https://crates.io/api/v1/" {
		t.Errorf("BaseURL() = %q", got)
	}
	if c.UserAgent() != testAgent {
		t.Errorf("UserAgent() = %q", c.UserAgent())
	}
	if c.poll != DefaultPollInterval {
		t.Errorf("poll = %v, want %v", c.poll, DefaultPollInterval)
	}
	l, ok := c.limiter.(*httputil.Limiter)
	if !ok {
		t.Fatalf("default limiter is %T, want *httputil.Limiter", c.limiter)
	}
	if l.Interval() != DefaultMinInterval {
		t.Errorf("Interval() = %v, want %v", l.Interval(), DefaultMinInterval)
	}
}

func TestNewClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		agent   string
	}{
		{"empty agent", "https://crates.io/api/v1/", ""},
		{"blank agent", "https://crates.io/api/v1/", "   "},
		{"empty url", "", testAgent},
		{"relative url", "api/v1", testAgent},
		{"bad scheme", "ftp://crates.io/", testAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.baseURL, tt.agent)
			if !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) {
				t.Errorf("NewClient() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestClientURL(t *testing.T) {
	c := testClient(t, &fakeFetcher{})

	tests := []struct {
		name     string
		query    map[string][]string
		segments []string
		want     string
	}{
		{"root", nil, nil, "https://crates.io/api/v1/"},
		{"crate", nil, []string{"crates", "serde"}, "https://crates.io/api/v1/crates/serde"},
		{"escaped segment", nil, []string{"crates", "a/b"}, "https://crates.io/api/v1/crates/a%2Fb"},
		{"category slug", nil, []string{"categories", "web-programming::http-client"}, "https://crates.io/api/v1/categories/web-programming::http-client"},
		{"query", map[string][]string{"q": {"async io"}, "page": {"2"}}, []string{"crates"}, "https://crates.io/api/v1/crates?page=2&q=async+io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.URL(tt.query, tt.segments...); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchSendsUserAgent(t *testing.T) {
	f := &fakeFetcher{body: []byte("ok")}
	c := testClient(t, f)

	body, err := c.Fetch(context.Background(), c.URL(nil, "summary"))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if f.agents[0] != testAgent {
		t.Errorf("user agent = %q, want %q", f.agents[0], testAgent)
	}
	if f.urls[0] != "https://crates.io/api/v1/summary" {
		t.Errorf("url = %q", f.urls[0])
	}
}

func TestFetchBackToBackIsSpaced(t *testing.T) {
	const interval = 50 * time.Millisecond
	f := &fakeFetcher{body: []byte("{}")}
	rec := &recordingAdmitter{limiter: httputil.NewLimiter(interval)}
	c := testClient(t, f, WithLimiter(rec))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(ctx, "https://crates.io/api/v1/summary"); err != nil {
			t.Fatalf("Fetch() #%d error: %v", i, err)
		}
	}

	if f.count() != 2 {
		t.Fatalf("transport calls = %d, want 2", f.count())
	}
	if gap := f.calls[1].Sub(rec.admitted[0]); gap < interval {
		t.Errorf("second fetch %v after first admission, want >= %v", gap, interval)
	}
}

func TestTryFetchWouldBlock(t *testing.T) {
	f := &fakeFetcher{body: []byte("{}")}
	c := testClient(t, f, WithMinInterval(time.Hour))

	ctx := context.Background()
	if _, err := c.TryFetch(ctx, "https://crates.io/api/v1/summary"); err != nil {
		t.Fatalf("first TryFetch() error: %v", err)
	}

	start := time.Now()
	_, err := c.TryFetch(ctx, "https://crates.io/api/v1/summary")
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("second TryFetch() error = %v, want ErrWouldBlock", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("TryFetch() should return immediately")
	}
	if apperrors.GetCode(err) != apperrors.ErrCodeRateLimited {
		t.Errorf("GetCode() = %q, want %q", apperrors.GetCode(err), apperrors.ErrCodeRateLimited)
	}
	if f.count() != 1 {
		t.Errorf("transport calls = %d, want 1", f.count())
	}
}

func TestTryGetWouldBlockSkipsDecode(t *testing.T) {
	f := &fakeFetcher{body: []byte("{}")}
	c := testClient(t, f, WithLimiter(stuckAdmitter{}))

	var v map[string]any
	if err := c.TryGet(context.Background(), "https://crates.io/api/v1/summary", &v); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("TryGet() error = %v, want ErrWouldBlock", err)
	}
	if _, err := c.TryGetText(context.Background(), "https://crates.io/api/v1/summary"); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("TryGetText() error = %v, want ErrWouldBlock", err)
	}
	if _, err := TryGetJSON[map[string]any](context.Background(), c, "https://crates.io/api/v1/summary"); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("TryGetJSON() error = %v, want ErrWouldBlock", err)
	}
	if f.count() != 0 {
		t.Errorf("transport calls = %d, want 0", f.count())
	}
}

func TestConcurrentFetchOnePerWindow(t *testing.T) {
	const (
		interval = 30 * time.Millisecond
		workers  = 5
	)
	f := &fakeFetcher{body: []byte("{}")}
	rec := &recordingAdmitter{limiter: httputil.NewLimiter(interval)}
	c := testClient(t, f, WithLimiter(rec))

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), "https://crates.io/api/v1/summary")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
	}
	if f.count() != workers {
		t.Fatalf("transport calls = %d, want %d", f.count(), workers)
	}

	admitted := append([]time.Time(nil), rec.admitted...)
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
	for i := 1; i < len(admitted); i++ {
		if gap := admitted[i].Sub(admitted[i-1]); gap < interval {
			t.Errorf("admission %d only %v after previous, want >= %v", i, gap, interval)
		}
	}
}

func TestConcurrentFetchWallClock(t *testing.T) {
	if testing.Short() {
		t.Skip("waits two full windows")
	}
	f := &fakeFetcher{body: []byte("{}")}
	c := testClient(t, f, WithMinInterval(time.Second), WithPollInterval(DefaultPollInterval))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), "https://crates.io/api/v1/summary"); err != nil {
				t.Errorf("Fetch() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Errorf("three fetches took %v, want >= 2s", elapsed)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	f := &fakeFetcher{body: []byte("{}")}
	c := testClient(t, f, WithLimiter(stuckAdmitter{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "https://crates.io/api/v1/summary")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
	if f.count() != 0 {
		t.Errorf("transport calls = %d, want 0", f.count())
	}
}

func TestFetchPropagatesErrors(t *testing.T) {
	boom := errors.New("redis down")
	transportErr := &TransportError{URL: "https://crates.io/api/v1/summary", Err: errors.New("connection refused")}

	tests := []struct {
		name  string
		opts  []Option
		fetch *fakeFetcher
		want  error
	}{
		{"admitter", []Option{WithLimiter(failingAdmitter{err: boom})}, &fakeFetcher{}, boom},
		{"transport", nil, &fakeFetcher{err: transportErr}, transportErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, tt.fetch, tt.opts...)
			if _, err := c.Fetch(context.Background(), "https://crates.io/api/v1/summary"); !errors.Is(err, tt.want) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.want)
			}
			c = testClient(t, tt.fetch, tt.opts...)
			if _, err := c.TryFetch(context.Background(), "https://crates.io/api/v1/summary"); !errors.Is(err, tt.want) {
				t.Errorf("TryFetch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransportErrorIsNotDecodeError(t *testing.T) {
	f := &fakeFetcher{err: &TransportError{URL: "x", Err: errors.New("refused")}}
	c := testClient(t, f)

	var v map[string]any
	err := c.Get(context.Background(), "https://crates.io/api/v1/summary", &v)
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		t.Error("transport failure must not surface as DecodeError")
	}
	if apperrors.GetCode(err) != apperrors.ErrCodeNetwork {
		t.Errorf("GetCode() = %q, want %q", apperrors.GetCode(err), apperrors.ErrCodeNetwork)
	}
}

func TestGetDecodes(t *testing.T) {
	type meta struct {
		Total int `json:"total"`
	}
	type listing struct {
		Names []string `json:"names"`
		Meta  meta     `json:"meta"`
	}

	f := &fakeFetcher{body: []byte(`{"names":["serde","tokio"],"meta":{"total":2},"extra":true}`)}
	c := testClient(t, f, WithMinInterval(0))

	var got listing
	if err := c.Get(context.Background(), "https://crates.io/api/v1/crates", &got); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := listing{Names: []string{"serde", "tokio"}, Meta: meta{Total: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	generic, err := GetJSON[listing](context.Background(), c, "https://crates.io/api/v1/crates")
	if err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if diff := cmp.Diff(want, generic); diff != "" {
		t.Errorf("GetJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetText(t *testing.T) {
	f := &fakeFetcher{body: []byte("# serde\n\nSerialization framework. ✓")}
	c := testClient(t, f, WithMinInterval(0))

	text, err := c.GetText(context.Background(), "https://crates.io/api/v1/crates/serde/1.0.0/readme")
	if err != nil {
		t.Fatalf("GetText() error: %v", err)
	}
	if !strings.HasPrefix(text, "# serde") {
		t.Errorf("GetText() = %q", text)
	}
}

func TestDecodeErrors(t *testing.T) {
	type crate struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name     string
		body     string
		notFound bool
	}{
		{"empty", "", false},
		{"truncated", `{"name":"ser`, false},
		{"not json", "<html>502 Bad Gateway</html>", false},
		{"wrong shape", `{"name": 42}`, false},
		{"trailing data", `{"name":"serde"} {"name":"tokio"}`, false},
		{"envelope", `{"errors":[{"detail":"Not Found"}]}`, true},
		{"envelope other", `{"errors":[{"detail":"crate name is invalid"}]}`, false},
		{"null", "null", false},
		{"null padded", "  null\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("DecodeJSON panicked: %v", r)
				}
			}()

			_, err := DecodeJSON[crate]([]byte(tt.body))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("DecodeJSON(%q) error = %v, want *DecodeError", tt.body, err)
			}
			if apperrors.GetCode(err) != apperrors.ErrCodeDecode {
				t.Errorf("GetCode() = %q, want %q", apperrors.GetCode(err), apperrors.ErrCodeDecode)
			}
			if IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", IsNotFound(err), tt.notFound)
			}
		})
	}
}

// crateDoc mirrors the crate endpoint's required keys.
type crateDoc struct {
	Crate struct {
		Name string `json:"name"`
	} `json:"crate"`
}

func (crateDoc) RequiredKeys() []string { return []string{"crate", "crate.name"} }

func TestDecodeJSONRequiredKeys(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"empty object", `{}`, ErrMissingKey},
		{"unrelated object", `{"unrelated":true}`, ErrMissingKey},
		{"null member", `{"crate":null}`, ErrMissingKey},
		{"missing nested", `{"crate":{}}`, ErrMissingKey},
		{"nested null", `{"crate":{"name":null}}`, ErrMissingKey},
		{"null document", `null`, ErrNullDocument},
		{"complete", `{"crate":{"name":"serde"},"versions":[]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON[crateDoc]([]byte(tt.body))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("DecodeJSON() error: %v", err)
				}
				if got.Crate.Name != "serde" {
					t.Errorf("Crate.Name = %q, want serde", got.Crate.Name)
				}
				return
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("DecodeJSON(%q) error = %v, want *DecodeError", tt.body, err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeJSON(%q) error = %v, want %v", tt.body, err, tt.wantErr)
			}
			if apperrors.GetCode(err) != apperrors.ErrCodeDecode {
				t.Errorf("GetCode() = %q, want %q", apperrors.GetCode(err), apperrors.ErrCodeDecode)
			}
		})
	}
}

func TestGetJSONRequiredKeys(t *testing.T) {
	c := testClient(t, &fakeFetcher{body: []byte(`{"unrelated":true}`)})
	_, err := GetJSON[crateDoc](context.Background(), c, "https://crates.io/api/v1/crates/serde")
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("GetJSON() error = %v, want ErrMissingKey", err)
	}
}

func TestDecodeJSONErrorsKeyIsNotAlwaysEnvelope(t *testing.T) {
	type report struct {
		Errors int `json:"errors"`
	}
	got, err := DecodeJSON[report]([]byte(`{"errors": 3}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error: %v", err)
	}
	if got.Errors != 3 {
		t.Errorf("Errors = %d, want 3", got.Errors)
	}
}

func TestDecodeTextInvalidUTF8(t *testing.T) {
	_, err := DecodeText([]byte{0xff, 0xfe, 'a'})
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("DecodeText() error = %v, want ErrInvalidUTF8", err)
	}
	if apperrors.GetCode(err) != apperrors.ErrCodeDecode {
		t.Errorf("GetCode() = %q", apperrors.GetCode(err))
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"git@github.com:tokio-rs/tokio.git", "https://github.com/tokio-rs/tokio"},
		{"git://github.com/tokio-rs/tokio", "https://github.com/tokio-rs/tokio"},
		{"git+https://github.com/tokio-rs/tokio.git", "https://github.com/tokio-rs/tokio"},
		{"git@gitlab.com:group/proj.git", "https://gitlab.com/group/proj"},
		{"  https://github.com/tokio-rs/tokio  ", "https://github.com/tokio-rs/tokio"},
	}
	for _, tt := range tests {
		if got := NormalizeRepoURL(tt.in); got != tt.want {
			t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type recordingLimiterHooks struct {
	observability.NoopLimiterHooks
	mu         sync.Mutex
	admits     int
	denies     int
	wouldBlock int
}

func (h *recordingLimiterHooks) OnAdmit(context.Context, string, time.Duration) {
	h.mu.Lock()
	h.admits++
	h.mu.Unlock()
}

func (h *recordingLimiterHooks) OnDeny(context.Context, string, time.Time) {
	h.mu.Lock()
	h.denies++
	h.mu.Unlock()
}

func (h *recordingLimiterHooks) OnWouldBlock(context.Context, string) {
	h.mu.Lock()
	h.wouldBlock++
	h.mu.Unlock()
}

func TestLimiterHooks(t *testing.T) {
	hooks := &recordingLimiterHooks{}
	observability.SetLimiterHooks(hooks)
	t.Cleanup(observability.Reset)

	f := &fakeFetcher{body: []byte("{}")}
	c := testClient(t, f, WithMinInterval(20*time.Millisecond))
	ctx := context.Background()

	if _, err := c.TryFetch(ctx, "https://crates.io/api/v1/summary"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.TryFetch(ctx, "https://crates.io/api/v1/summary"); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("TryFetch() error = %v", err)
	}
	if _, err := c.Fetch(ctx, "https://crates.io/api/v1/summary"); err != nil {
		t.Fatal(err)
	}

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if hooks.admits != 2 {
		t.Errorf("admits = %d, want 2", hooks.admits)
	}
	if hooks.wouldBlock != 1 {
		t.Errorf("wouldBlock = %d, want 1", hooks.wouldBlock)
	}
	if hooks.denies == 0 {
		t.Error("blocking fetch inside the window should report denials")
	}
}

func TestClientNext(t *testing.T) {
	c := testClient(t, &fakeFetcher{}, WithMinInterval(time.Hour))
	if _, err := c.TryFetch(context.Background(), "https://crates.io/api/v1/summary"); err != nil {
		t.Fatal(err)
	}
	next, ok := c.Next()
	if !ok {
		t.Fatal("Next() should be known for the in-memory limiter")
	}
	if until := time.Until(next); until < 59*time.Minute {
		t.Errorf("window reopens in %v, want about 1h", until)
	}

	c = testClient(t, &fakeFetcher{}, WithLimiter(stuckAdmitter{}))
	if _, ok := c.Next(); ok {
		t.Error("Next() should be unknown for limiters without Next")
	}
}
