// Package deps resolves crate dependencies through the rate-limited
// crates.io client.
//
// # Dependency graphs
//
// [Resolver] crawls a crate's normal dependencies with a small worker pool.
// Every fetch goes through the same [crates.Client], so the workers queue
// on its gate and the registry still sees at most one request per window:
//
//	client, _ := crates.NewClient("my_crawler (help@my_crawler.com)")
//	g, err := deps.NewResolver(client).Resolve(ctx, "serde_json", deps.Options{
//	    MaxDepth: 2,
//	})
//
// Each fetched crate costs two requests (the crate record and the
// dependency list of its newest version). Dependencies at the last level
// are added as unfetched nodes, so MaxDepth 1 needs only the root.
//
// # Cargo manifests
//
// [ParseManifest] extracts registry dependencies from a Cargo.toml, and
// [CheckOutdated] compares each requirement with the newest stable release:
//
//	m, _ := deps.ParseManifest("Cargo.toml")
//	reports, err := deps.CheckOutdated(ctx, client, m.Dependencies, nil)
//
// Path, git and workspace-inherited dependencies have no registry version
// and are listed in [Manifest.Skipped].
package deps
