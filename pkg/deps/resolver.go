package deps

import (
	"context"
	"sync"

	"github.com/matzehuels/consecrates/pkg/dag"
	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// Resolver builds dependency graphs by crawling a registry.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver creates a Resolver that fetches crates through f.
func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve fetches root and its normal dependencies down to opts.MaxDepth.
//
// Dependencies at the last level are added to the graph without being
// fetched. A failure to fetch root is returned; failures below it are
// reported through opts.Logger and leave the node unfetched.
func (r *Resolver) Resolve(ctx context.Context, root string, opts Options) (*dag.DAG, error) {
	c := &crawler{
		ctx:     ctx,
		opts:    opts.WithDefaults(),
		fetch:   r.fetcher.FetchCrate,
		g:       dag.New(root),
		visited: make(map[string]bool),
		jobs:    make(chan job),
		results: make(chan result),
		done:    make(chan struct{}),
	}
	return c.run(root)
}

// crawler state is owned by the collecting goroutine; workers only fetch.
type crawler struct {
	ctx   context.Context
	opts  Options
	fetch func(context.Context, string) (*crates.CrateInfo, error)

	g       *dag.DAG
	visited map[string]bool
	pending int

	jobs    chan job
	results chan result
	done    chan struct{}
	wg      sync.WaitGroup
}

type job struct {
	name  string
	depth int
}

type result struct {
	job
	info *crates.CrateInfo
	err  error
}

func (c *crawler) run(root string) (*dag.DAG, error) {
	for range c.opts.Workers {
		c.wg.Add(1)
		go c.worker()
	}

	_ = c.g.AddNode(dag.Node{ID: root})
	c.enqueue(job{name: root})
	err := c.collect(root)

	close(c.done)
	c.wg.Wait()
	if err != nil {
		return nil, err
	}

	c.g.SetDepths()
	return c.g, nil
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for {
		select {
		case j := <-c.jobs:
			info, err := c.fetch(c.ctx, j.name)
			select {
			case c.results <- result{job: j, info: info, err: err}:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *crawler) enqueue(j job) {
	c.visited[j.name] = true
	c.pending++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case c.jobs <- j:
		case <-c.done:
		}
	}()
}

func (c *crawler) collect(root string) error {
	for c.pending > 0 {
		select {
		case r := <-c.results:
			c.pending--
			if err := c.handle(r, root); err != nil {
				return err
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
	return nil
}

func (c *crawler) handle(r result, root string) error {
	if r.err != nil {
		if r.name == root {
			return r.err
		}
		c.opts.Logger("fetch failed: %s: %v", r.name, r.err)
		return nil
	}

	n, _ := c.g.Node(r.name)
	n.Version = r.info.Version
	n.Fetched = true

	c.addDeps(r)
	return nil
}

func (c *crawler) addDeps(r result) {
	next := r.depth + 1
	for i, dep := range r.info.Dependencies {
		if _, ok := c.g.Node(dep); !ok {
			_ = c.g.AddNode(dag.Node{ID: dep})
		}
		e := dag.Edge{From: r.name, To: dep, Kind: "normal"}
		if i < len(r.info.Requirements) {
			e.Req = r.info.Requirements[i]
		}
		_ = c.g.AddEdge(e)

		if next < c.opts.MaxDepth && !c.visited[dep] && len(c.visited) < c.opts.MaxNodes {
			c.enqueue(job{name: dep, depth: next})
		}
	}
}
