// Package crates provides an HTTP client for the crates.io API.
//
// # Overview
//
// This package fetches crate metadata from crates.io (https://crates.io),
// the Rust community's package registry. Requests pass through an
// [integrations.Client], which spaces them at least one second apart and
// attaches the mandatory User-Agent.
//
// # Usage
//
//	client, err := crates.NewClient("my_crawler (help@my_crawler.com)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	page, err := client.Crates(ctx, crates.ParseQuery("http cat=web sort=dl"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range page.Crates {
//	    fmt.Println(c.Name, c.MaxVersion)
//	}
//
// # Blocking and Non-blocking Calls
//
// Endpoint methods wait for the rate-limit window by default. A scheduler
// that prefers to decide on its own when to retry uses the non-blocking view:
//
//	nb := client.NonBlocking()
//	readme, err := nb.Readme(ctx, "serde", "1.0.193")
//	if errors.Is(err, integrations.ErrWouldBlock) {
//	    // try again later
//	}
//
// # Queries
//
// [ParseQuery] reads the search mini-language used by the CLI:
//
//	api cat=web sort=update      // "api" in web-programming, recently updated first
//	net cat=gamedev sort=rdl     // "net" in game-development, by recent downloads
//
// # CrateInfo
//
// [Client.FetchCrate] returns a [CrateInfo] with the latest version and its
// normal (non-optional, non-dev) dependencies.
//
// [integrations.Client]: github.com/matzehuels/consecrates/pkg/integrations.Client
package crates
