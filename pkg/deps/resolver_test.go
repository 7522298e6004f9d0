package deps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/consecrates/pkg/dag"
	"github.com/matzehuels/consecrates/pkg/integrations"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// fakeRegistry maps crate name to "version dep1@req dep2@req ...".
type fakeRegistry struct {
	mu      sync.Mutex
	crates  map[string]string
	fetched []string
}

func (f *fakeRegistry) FetchCrate(ctx context.Context, name string) (*crates.CrateInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, name)
	f.mu.Unlock()

	spec, ok := f.crates[name]
	if !ok {
		return nil, fmt.Errorf("crate %s: not found", name)
	}
	fields := strings.Fields(spec)
	info := &crates.CrateInfo{Name: name, Version: fields[0]}
	for _, dep := range fields[1:] {
		n, req, _ := strings.Cut(dep, "@")
		info.Dependencies = append(info.Dependencies, n)
		info.Requirements = append(info.Requirements, req)
	}
	return info, nil
}

func (f *fakeRegistry) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

var registryFixture = map[string]string{
	"app":        "0.1.0 serde@^1 tokio@^1.40",
	"serde":      "1.0.210 serde_derive@=1.0.210",
	"tokio":      "1.40.0 mio@^1 bytes@^1.1",
	"mio":        "1.0.2 libc@^0.2",
	"bytes":      "1.7.2",
	"libc":       "0.2.159",
	"serde_json": "1.0.128 serde@^1.0.194 itoa@^1",
}

type nodeSummary struct {
	ID      string
	Version string
	Depth   int
	Fetched bool
}

func summarize(g *dag.DAG) []nodeSummary {
	var out []nodeSummary
	for _, n := range g.Nodes() {
		out = append(out, nodeSummary{n.ID, n.Version, n.Depth, n.Fetched})
	}
	return out
}

func TestResolveDepthOne(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}
	g, err := NewResolver(reg).Resolve(context.Background(), "app", Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []nodeSummary{
		{"app", "0.1.0", 0, true},
		{"serde", "", 1, false},
		{"tokio", "", 1, false},
	}
	if diff := cmp.Diff(want, summarize(g)); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if reg.fetchCount() != 1 {
		t.Errorf("fetched %d crates, want 1", reg.fetchCount())
	}

	wantEdges := []dag.Edge{
		{From: "app", To: "serde", Req: "^1", Kind: "normal"},
		{From: "app", To: "tokio", Req: "^1.40", Kind: "normal"},
	}
	if diff := cmp.Diff(wantEdges, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTransitive(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}
	g, err := NewResolver(reg).Resolve(context.Background(), "app", Options{MaxDepth: 10})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []nodeSummary{
		{"app", "0.1.0", 0, true},
		{"serde", "1.0.210", 1, true},
		{"tokio", "1.40.0", 1, true},
		{"bytes", "1.7.2", 2, true},
		{"mio", "1.0.2", 2, true},
		{"serde_derive", "", 2, false},
		{"libc", "0.2.159", 3, true},
	}
	if diff := cmp.Diff(want, summarize(g)); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestResolveMaxNodes(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}
	_, err := NewResolver(reg).Resolve(context.Background(), "app", Options{MaxDepth: 10, MaxNodes: 2})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if reg.fetchCount() != 2 {
		t.Errorf("fetched %d crates, want 2", reg.fetchCount())
	}
}

func TestResolveLogsDependencyFailures(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}

	var mu sync.Mutex
	var logs []string
	logger := func(format string, args ...any) {
		mu.Lock()
		logs = append(logs, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	g, err := NewResolver(reg).Resolve(context.Background(), "serde", Options{MaxDepth: 2, Logger: logger})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if n, _ := g.Node("serde_derive"); n.Fetched {
		t.Error("serde_derive should not be fetched")
	}
	if len(logs) != 1 || !strings.Contains(logs[0], "serde_derive") {
		t.Errorf("logs = %v", logs)
	}
}

func TestResolveRootFailure(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}
	if _, err := NewResolver(reg).Resolve(context.Background(), "missing", Options{}); err == nil {
		t.Error("Resolve() should fail when the root cannot be fetched")
	}
}

func TestResolveCanceled(t *testing.T) {
	reg := &fakeRegistry{crates: registryFixture}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewResolver(reg).Resolve(ctx, "app", Options{MaxDepth: 5}); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestResolveThroughGate(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()

		switch r.URL.Path {
		case "/api/v1/crates/app":
			fmt.Fprint(w, `{"crate": {"id": "app", "name": "app", "max_version": "0.1.0", "downloads": 0, "links": {}, "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}, "versions": [], "keywords": [], "categories": []}`)
		case "/api/v1/crates/app/0.1.0/dependencies":
			fmt.Fprint(w, `{"dependencies": [{"crate_id": "libc", "kind": "normal", "req": "^0.2", "optional": false, "default_features": true, "features": [], "id": 1, "version_id": 1, "downloads": 0}]}`)
		case "/api/v1/crates/libc":
			fmt.Fprint(w, `{"crate": {"id": "libc", "name": "libc", "max_version": "0.2.159", "downloads": 0, "links": {}, "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}, "versions": [], "keywords": [], "categories": []}`)
		case "/api/v1/crates/libc/0.2.159/dependencies":
			fmt.Fprint(w, `{"dependencies": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors":[{"detail":"Not Found"}]}`)
		}
	}))
	defer server.Close()

	const interval = 20 * time.Millisecond
	client, err := crates.NewClientWithBaseURL(server.URL+"/api/v1/", "deps-test (test@example.com)",
		integrations.WithHTTPClient(server.Client()),
		integrations.WithMinInterval(interval),
		integrations.WithPollInterval(2*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	g, err := NewResolver(client).Resolve(context.Background(), "app", Options{MaxDepth: 2, Workers: 8})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if n, _ := g.Node("libc"); !n.Fetched || n.Version != "0.2.159" {
		t.Errorf("libc = %+v", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 4 {
		t.Fatalf("server saw %d requests, want 4", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		// Request arrival trails admission, so allow a little slack.
		if gap := hits[i].Sub(hits[i-1]); gap < interval/2 {
			t.Errorf("requests %d and %d only %v apart", i-1, i, gap)
		}
	}
}
