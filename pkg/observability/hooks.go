// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about outbound HTTP calls and rate-limiter admissions.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// The request core never logs on its own; hooks are the only way it reports
// what it is doing. The registry holds observers only. Rate-limit state lives
// on each client.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    observability.SetLimiterHooks(&myLimiterHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.HTTP().OnRequest(ctx, "GET", host, path)
//	observability.Limiter().OnDeny(ctx, url, nextWindow)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// Limiter Hooks
// =============================================================================

// LimiterHooks receives events from the request gate.
type LimiterHooks interface {
	// OnAdmit records a request admitted by the rate limiter.
	// waited is the time spent in the blocking path before admission.
	OnAdmit(ctx context.Context, url string, waited time.Duration)

	// OnDeny records a denied admission. next is the earliest instant the
	// window may reopen, or zero when the limiter cannot tell.
	OnDeny(ctx context.Context, url string, next time.Time)

	// OnWouldBlock records a non-blocking request rejected by the limiter.
	OnWouldBlock(ctx context.Context, url string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// NoopLimiterHooks is a no-op implementation of LimiterHooks.
type NoopLimiterHooks struct{}

func (NoopLimiterHooks) OnAdmit(context.Context, string, time.Duration) {}
func (NoopLimiterHooks) OnDeny(context.Context, string, time.Time)      {}
func (NoopLimiterHooks) OnWouldBlock(context.Context, string)           {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	limiterHooks LimiterHooks = NoopLimiterHooks{}
	hooksMu      sync.RWMutex
)

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// SetLimiterHooks registers custom limiter hooks.
func SetLimiterHooks(h LimiterHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		limiterHooks = h
	}
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Limiter returns the registered limiter hooks.
func Limiter() LimiterHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return limiterHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	httpHooks = NoopHTTPHooks{}
	limiterHooks = NoopLimiterHooks{}
}
