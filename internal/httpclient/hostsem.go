package httpclient

import (
	"context"
	"net/url"
	"sync"
)

// HostSemaphore is a per-host concurrency limiter. All workers in a pipeline
// share one semaphore for a given host, preventing thundering-herd when many
// goroutines hit the same upstream at once. It bounds in-flight requests;
// minimum inter-request spacing is the rate limiter's job.
//
// Usage: acquire before sending a request, release when the response arrives.
//
//	release, err := sem.Acquire(ctx, host)
//	if err != nil { ... }
//	defer release()
//
// Each pipeline run owns its own HostSemaphore; there is no process-global
// instance, so concurrent runs pace independently.
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// NewHostSemaphore returns a limiter allowing up to concurrency in-flight
// requests per host.
func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for host or ctx is cancelled,
// returning a release func. host should be the scheme+host (e.g.
// "http://example.com:8080"); full URLs are normalised.
func (h *HostSemaphore) Acquire(ctx context.Context, host string) (func(), error) {
	sem := h.semFor(host)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HostSemaphore) semFor(host string) chan struct{} {
	// Normalise: strip path/query, keep scheme+host.
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	s, ok := h.sems[host]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[host] = s
	}
	h.mu.Unlock()
	return s
}
