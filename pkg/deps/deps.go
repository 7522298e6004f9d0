package deps

import (
	"context"

	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

const (
	DefaultMaxDepth = 1   // Direct dependencies only
	DefaultMaxNodes = 500 // Default maximum crates to fetch
	DefaultWorkers  = 4   // Concurrent fetches queued on the gate
)

// Options configures dependency resolution behavior.
type Options struct {
	MaxDepth int                  // Levels below the root to include (default: 1)
	MaxNodes int                  // Maximum crates to fetch (default: 500)
	Workers  int                  // Concurrent fetchers (default: 4)
	Logger   func(string, ...any) // Progress/error callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Fetcher retrieves a crate at its latest version. [*crates.Client]
// implements it.
type Fetcher interface {
	FetchCrate(ctx context.Context, name string) (*crates.CrateInfo, error)
}

// CrateFetcher retrieves a crate record. [*crates.Client] implements it.
type CrateFetcher interface {
	Crate(ctx context.Context, name string) (*crates.CrateResponse, error)
}
