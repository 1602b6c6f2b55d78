// Package metrics exposes harvest run counters over Prometheus.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the counters one harvest process maintains.
type Set struct {
	registry *prometheus.Registry

	PagesFetched   prometheus.Counter
	FetchErrors    *prometheus.CounterVec
	ItemsFound     prometheus.Counter
	EpisodesFound  prometheus.Counter
	ResolveOK      prometheus.Counter
	ResolveFailed  *prometheus.CounterVec
	ItemsSkipped   prometheus.Counter
	CacheHits      prometheus.Counter
	StreamsEmitted prometheus.Counter
}

// New builds a counter set on its own registry.
func New() *Set {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Set{
		registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_pages_fetched_total",
			Help: "Listing and detail pages fetched.",
		}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_fetch_errors_total",
			Help: "Fetch failures by error kind.",
		}, []string{"kind"}),
		ItemsFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_items_found_total",
			Help: "Catalog items discovered across all sources.",
		}),
		EpisodesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_episodes_found_total",
			Help: "Episode references discovered under series items.",
		}),
		ResolveOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_resolve_success_total",
			Help: "Items resolved to a stream URL.",
		}),
		ResolveFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_resolve_failed_total",
			Help: "Resolution failures by kind.",
		}, []string{"kind"}),
		ItemsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_items_skipped_total",
			Help: "Items dropped as duplicates before emission.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_cache_hits_total",
			Help: "Items served from the stream cache without resolving.",
		}),
		StreamsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvest_streams_emitted_total",
			Help: "Streams handed to the output sink.",
		}),
	}
}

// Handler returns the /metrics handler for this set's registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background. Errors other than
// a clean shutdown are logged, not fatal: the harvest itself does not
// depend on the metrics listener.
func (s *Set) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics[serve]: %v", err)
		}
	}()
	return srv
}
