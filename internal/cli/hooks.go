package cli

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// logHooks traces HTTP requests and rate-limit decisions at debug level.
// A request waiting for the window logs one line when it starts waiting,
// not one per poll.
type logHooks struct {
	logger *log.Logger

	mu      sync.Mutex
	waiting map[string]bool
}

func newLogHooks(logger *log.Logger) *logHooks {
	return &logHooks{logger: logger, waiting: make(map[string]bool)}
}

func (h *logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug(method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("Response", "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("Request failed", "path", path, "err", err)
}

func (h *logHooks) OnAdmit(_ context.Context, url string, waited time.Duration) {
	h.mu.Lock()
	delete(h.waiting, url)
	h.mu.Unlock()
	if waited > 0 {
		h.logger.Debug("Admitted", "url", url, "waited", waited.Round(time.Millisecond))
	}
}

func (h *logHooks) OnDeny(_ context.Context, url string, next time.Time) {
	h.mu.Lock()
	first := !h.waiting[url]
	h.waiting[url] = true
	h.mu.Unlock()
	if !first {
		return
	}
	if next.IsZero() {
		h.logger.Debug("Waiting for rate limit window", "url", url)
		return
	}
	h.logger.Debug("Waiting for rate limit window", "url", url, "in", time.Until(next).Round(time.Millisecond))
}

func (h *logHooks) OnWouldBlock(_ context.Context, url string) {
	h.logger.Debug("Rate limit window closed", "url", url)
}
