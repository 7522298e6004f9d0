// Package integrations provides the rate-limited request core shared by
// registry API clients.
//
// # Overview
//
// Registries such as crates.io ask crawlers to send at most one request per
// second and to identify themselves with a User-Agent. [Client] enforces both:
// every request passes an admission check against a minimum interval before
// it reaches the network.
//
// The registry-specific client lives in a subpackage:
//
//   - [crates]: Rust crates.io
//
// # Client Pattern
//
//	client, err := integrations.NewClient("https://crates.io/api/v1/", "my_crawler (help@my_crawler.com)")
//	body, err := client.Fetch(ctx, client.URL(nil, "summary"))
//
// Two access modes exist for every call:
//
//   - Blocking ([Client.Fetch], [Client.Get], [GetJSON]): waits, polling the
//     limiter every [DefaultPollInterval], until admitted. Rate limiting never
//     makes it fail; only ctx can end the wait early.
//   - Non-blocking ([Client.TryFetch], [Client.TryGet], [TryGetJSON]): asks
//     once and returns [ErrWouldBlock] if the window is closed. No request is
//     sent and nothing sleeps.
//
// # Errors
//
// Errors stay distinguishable so callers can tell "server unreachable" from
// "server answered with something unexpected":
//
//   - *[TransportError]: malformed URL, connection failure, broken body
//   - [ErrWouldBlock]: non-blocking call inside the window
//   - *[DecodeError]: invalid JSON, registry error envelope (*[APIError]) or
//     non-UTF-8 text
//
// Each also carries an [errors.Code] for [errors.GetCode]. Nothing is logged
// or retried here; observers register [observability.LimiterHooks] and
// [observability.HTTPHooks] instead.
//
// # Shared Windows
//
// The default limiter is per client. Pass an [httputil.RedisLimiter] with
// [WithLimiter] to share one window between processes.
//
// [crates]: github.com/matzehuels/consecrates/pkg/integrations/crates
// [errors.Code]: github.com/matzehuels/consecrates/pkg/errors.Code
// [errors.GetCode]: github.com/matzehuels/consecrates/pkg/errors.GetCode
// [observability.LimiterHooks]: github.com/matzehuels/consecrates/pkg/observability.LimiterHooks
// [observability.HTTPHooks]: github.com/matzehuels/consecrates/pkg/observability.HTTPHooks
// [httputil.RedisLimiter]: github.com/matzehuels/consecrates/pkg/httputil.RedisLimiter
package integrations
