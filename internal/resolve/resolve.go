// Package resolve turns a watch-page URL into a playable stream URL
// by trying an ordered chain of extraction strategies against the
// fetched page. Failures are classified so callers can tell a dead
// item from a flaky network from a provider we refuse to serve.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/safeurl"
)

// Strategy is one way of locating a stream URL on a page. Fn returns
// ("", nil) when the page shape does not match; the resolver then
// moves on to the next strategy.
type Strategy struct {
	Name string
	Fn   func(ctx context.Context, client *http.Client, doc *fetch.Document) (string, error)
}

// Result is a successful resolution.
type Result struct {
	StreamURL string
	Strategy  string
	Attempts  int
}

// Resolver runs a fixed strategy chain for one source.
type Resolver struct {
	client     *http.Client
	strategies []Strategy
	denyHosts  map[string]bool
	timeout    time.Duration
	headers    map[string]string
}

// New builds a resolver. Hosts in denyHosts (matched case-insensitively
// against the resolved stream URL) are refused as unsupported.
func New(client *http.Client, strategies []Strategy, denyHosts []string) *Resolver {
	deny := make(map[string]bool, len(denyHosts))
	for _, h := range denyHosts {
		deny[safeurl.Host("https://"+h)] = true
	}
	return &Resolver{client: client, strategies: strategies, denyHosts: deny}
}

// WithRequest sets per-request headers and timeout for page fetches.
func (r *Resolver) WithRequest(headers map[string]string, timeout time.Duration) *Resolver {
	r.headers = headers
	r.timeout = timeout
	return r
}

// Resolve fetches pageURL and tries each strategy in order, stopping
// at the first match. It returns a classified *Error on failure:
// transient for network trouble, unsupported for denied providers,
// not found when the whole chain came up empty. Strategies after a
// match are never invoked.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (Result, error) {
	doc, err := fetch.Fetch(ctx, r.client, fetch.Request{
		URL:     pageURL,
		Headers: r.headers,
		Timeout: r.timeout,
	})
	if err != nil {
		return Result{}, &Error{Kind: KindTransient, PageURL: pageURL, Err: err}
	}

	attempts := 0
	for _, s := range r.strategies {
		attempts++
		streamURL, err := r.runStrategy(ctx, s, doc)
		if err != nil {
			kind := KindTransient
			if errors.Is(err, ErrUnsupportedProvider) {
				kind = KindUnsupported
			}
			return Result{}, &Error{Kind: kind, PageURL: pageURL, Err: fmt.Errorf("%s: %w", s.Name, err)}
		}
		if streamURL == "" {
			continue
		}
		if !safeurl.IsHTTPOrHTTPS(streamURL) {
			continue
		}
		if r.denyHosts[safeurl.Host(streamURL)] {
			return Result{}, &Error{
				Kind:    KindUnsupported,
				PageURL: pageURL,
				Err:     fmt.Errorf("%s: denied host %s", s.Name, safeurl.Host(streamURL)),
			}
		}
		return Result{StreamURL: streamURL, Strategy: s.Name, Attempts: attempts}, nil
	}
	return Result{}, &Error{Kind: KindNotFound, PageURL: pageURL}
}

// runStrategy bounds one strategy by the per-request timeout, so a
// strategy's own fetches (companion media APIs) cannot stall a worker
// past what a page fetch is allowed.
func (r *Resolver) runStrategy(ctx context.Context, s Strategy, doc *fetch.Document) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return s.Fn(ctx, r.client, doc)
}
