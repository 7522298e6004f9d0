// Package httputil provides the low-level HTTP plumbing shared by registry clients.
//
// # Overview
//
// Two pieces live here:
//
//   - [Limiter]: a minimum-interval admission window (one request per interval)
//   - [Transport]: a single GET round trip returning the raw body
//
// [RedisLimiter] offers the same admission semantics with the window stored
// in Redis, for several processes sharing one crawler identity.
//
// Both are composed by [integrations.Client], which adds the blocking and
// non-blocking request paths and typed decoding.
//
// # Limiter
//
// The limiter remembers the instant of the last admission and nothing else:
//
//	l := httputil.NewLimiter(time.Second)
//	l.Allow() // true: the first window starts open
//	l.Allow() // false: less than one second elapsed
//
// # Transport
//
// [Transport.Fetch] performs exactly one request, attaches the User-Agent
// header and reads the whole body. It does not interpret status codes and
// never retries; failures are reported as *[TransportError].
//
// [integrations.Client]: github.com/matzehuels/consecrates/pkg/integrations.Client
package httputil
