package pipeline

import (
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vodharvest/vod-harvest/internal/httpclient"
)

// pacedTransport spaces requests per upstream host and bounds how
// many are in flight at once. Every fetch the pipeline makes goes
// through one shared instance, so listing walks, episode walks and
// resolution calls all draw from the same budget.
type pacedTransport struct {
	base     http.RoundTripper
	sem      *httpclient.HostSemaphore
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPacedTransport(base http.RoundTripper, perHostDelay time.Duration, perHostConcurrency int) *pacedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &pacedTransport{
		base:     base,
		sem:      httpclient.NewHostSemaphore(perHostConcurrency),
		interval: perHostDelay,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Scheme + "://" + req.URL.Host
	if t.interval > 0 {
		if err := t.limiterFor(host).Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	release, err := t.sem.Acquire(req.Context(), host)
	if err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		release()
		return nil, err
	}
	// the slot stays taken until the caller drains the body
	resp.Body = &releaseOnClose{rc: resp.Body, release: release}
	return resp, nil
}

func (t *pacedTransport) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[host] = l
	}
	return l
}

type releaseOnClose struct {
	rc      io.ReadCloser
	once    sync.Once
	release func()
}

func (r *releaseOnClose) Read(p []byte) (int, error) { return r.rc.Read(p) }

func (r *releaseOnClose) Close() error {
	err := r.rc.Close()
	r.once.Do(r.release)
	return err
}
