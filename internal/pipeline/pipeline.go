// Package pipeline orchestrates a harvest run: it walks every
// configured source's listing, expands series into episodes, resolves
// each terminal item to a stream URL under bounded concurrency, and
// hands deduplicated results to the sink.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/dedup"
	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/httpclient"
	"github.com/vodharvest/vod-harvest/internal/metrics"
	"github.com/vodharvest/vod-harvest/internal/paginate"
	"github.com/vodharvest/vod-harvest/internal/resolve"
	"github.com/vodharvest/vod-harvest/internal/sink"
	"github.com/vodharvest/vod-harvest/internal/source"
	"github.com/vodharvest/vod-harvest/internal/streamcache"
)

// Status is the terminal state of a run.
type Status string

const (
	// StatusDone means enumeration and resolution both completed.
	StatusDone Status = "done"
	// StatusCancelled means the run stopped early on context
	// cancellation; everything emitted before the cancel stands.
	StatusCancelled Status = "cancelled"
	// StatusFatal means no source produced even a first page.
	StatusFatal Status = "fatal"
)

// RetryNone turns transient retries off entirely. A RetryMax of zero
// means unset and falls back to the default of one retry.
const RetryNone = -1

// Options tunes one run. Zero values fall back to workable defaults.
type Options struct {
	Concurrency        int           // resolution workers (default 4)
	MaxPages           int           // per-walk page cap for sources without one
	PageTimeout        time.Duration // per-request bound (default 20s)
	PerHostDelay       time.Duration // minimum spacing between requests to one host
	PerHostConcurrency int           // in-flight requests per host (default 2)
	RetryMax           int           // extra attempts after a transient failure (default 1, RetryNone disables)
	RetryBackoff       time.Duration // sleep before the first retry, doubled each attempt
	CacheTTL           time.Duration // 0 = cached entries never expire
	EmitUnresolved     bool          // emit page URLs for items the chain could not resolve
	Cache              *streamcache.Cache
	Metrics            *metrics.Set
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 20 * time.Second
	}
	if o.PerHostConcurrency < 1 {
		o.PerHostConcurrency = 2
	}
	if o.RetryMax == 0 {
		o.RetryMax = 1
	} else if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	return o
}

// Result is what a finished (or stopped) run reports.
type Result struct {
	Status Status
	Stats  *Stats
}

type job struct {
	src      *source.Source
	resolver *resolve.Resolver
	item     catalog.Item
	id       string
	title    string
	imageURL string
	season   int
	episode  int
	pageURL  string
}

type run struct {
	opts   Options
	client *http.Client
	sink   sink.Sink
	seen   *dedup.Set
	stats  *Stats
	m      *metrics.Set
}

// Run executes a full harvest over sources and emits into out. It
// returns StatusCancelled when ctx ends the run early and StatusFatal
// (with an error) when not a single source's first page was
// reachable. The caller owns closing the sink.
func Run(ctx context.Context, sources []source.Source, out sink.Sink, opts Options) (Result, error) {
	opts = opts.withDefaults()
	p := &run{
		opts:   opts,
		client: httpclient.WithTransport(newPacedTransport(nil, opts.PerHostDelay, opts.PerHostConcurrency), 0),
		sink:   out,
		seen:   dedup.New(),
		stats:  &Stats{},
		m:      opts.Metrics,
	}

	jobs := make(chan job, 2*opts.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					continue // drain without resolving
				}
				p.process(ctx, j)
			}
		}()
	}

	log.Printf("pipeline[run]: enumerating %d source(s), %d worker(s)", len(sources), opts.Concurrency)
	reachable := 0
	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		src := &sources[i]
		pages, err := p.enumerateSource(ctx, src, jobs)
		if pages > 0 {
			reachable++
		}
		if err != nil && ctx.Err() == nil {
			log.Printf("pipeline[enumerate]: source %s: %v", src.Name, err)
		}
	}
	close(jobs)
	log.Printf("pipeline[run]: enumeration finished, draining")
	wg.Wait()

	result := Result{Status: StatusDone, Stats: p.stats}
	switch {
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		log.Printf("pipeline[run]: cancelled: %s", p.stats)
		return result, nil
	case reachable == 0:
		result.Status = StatusFatal
		return result, fmt.Errorf("no source reachable")
	default:
		log.Printf("pipeline[run]: done: %s", p.stats)
		return result, nil
	}
}

// enumerateSource walks one source's catalog, expanding series into
// episode jobs and queueing movies directly. It returns the number of
// listing pages fetched.
func (p *run) enumerateSource(ctx context.Context, src *source.Source, jobs chan<- job) (int, error) {
	resolver := src.Resolver(p.client, p.opts.PageTimeout)
	strategies := src.ItemStrategies()
	w := paginate.NewWalker(p.client, src.WalkerConfig(p.opts.PageTimeout, p.opts.MaxPages), func(doc *fetch.Document) []catalog.Item {
		return extract.Items(doc, strategies)
	})
	pages, err := w.Walk(ctx, func(batch []catalog.Item) bool {
		for _, it := range batch {
			p.stats.Items.Add(1)
			p.m.ItemsFound.Inc()
			if it.Kind.Terminal() {
				p.enqueue(ctx, jobs, job{
					src:      src,
					resolver: resolver,
					item:     it,
					id:       src.Name + "/" + it.ID,
					title:    it.Title,
					imageURL: it.ImageURL,
					pageURL:  it.DetailURL,
				})
				continue
			}
			p.enumerateEpisodes(ctx, src, resolver, it, jobs)
		}
		return ctx.Err() == nil
	})
	p.stats.Pages.Add(int64(pages))
	p.m.PagesFetched.Add(float64(pages))
	if err != nil {
		if k := fetch.KindOf(err); k != "" {
			p.m.FetchErrors.WithLabelValues(string(k)).Inc()
		}
	}
	return pages, err
}

// enumerateEpisodes walks one series item's episode listing and
// queues a job per episode, ordered by season then episode.
func (p *run) enumerateEpisodes(ctx context.Context, src *source.Source, resolver *resolve.Resolver, it catalog.Item, jobs chan<- job) {
	strategies := src.EpisodeStrategies(it.ID)
	w := paginate.NewWalker(p.client, src.EpisodeWalkerConfig(it, p.opts.PageTimeout, p.opts.MaxPages), func(doc *fetch.Document) []catalog.EpisodeRef {
		return extract.Episodes(doc, strategies)
	})
	var refs []catalog.EpisodeRef
	pages, err := w.Walk(ctx, func(batch []catalog.EpisodeRef) bool {
		refs = append(refs, batch...)
		return ctx.Err() == nil
	})
	p.stats.Pages.Add(int64(pages))
	p.m.PagesFetched.Add(float64(pages))
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("pipeline[episodes]: %s: %v", it.ID, err)
		}
		if k := fetch.KindOf(err); k != "" {
			p.m.FetchErrors.WithLabelValues(string(k)).Inc()
		}
		return
	}
	catalog.SortEpisodeRefs(refs)
	for _, ref := range refs {
		p.stats.Episodes.Add(1)
		p.m.EpisodesFound.Inc()
		title := ref.Title
		if title == "" {
			title = fmt.Sprintf("%s S%dE%d", it.Title, ref.Season, ref.Episode)
		}
		image := ref.ImageURL
		if image == "" {
			image = it.ImageURL
		}
		p.enqueue(ctx, jobs, job{
			src:      src,
			resolver: resolver,
			item:     it,
			id:       fmt.Sprintf("%s/%s/s%02de%02d", src.Name, it.ID, ref.Season, ref.Episode),
			title:    title,
			imageURL: image,
			season:   ref.Season,
			episode:  ref.Episode,
			pageURL:  ref.PageURL,
		})
	}
}

func (p *run) enqueue(ctx context.Context, jobs chan<- job, j job) {
	select {
	case jobs <- j:
	case <-ctx.Done():
	}
}

func (p *run) process(ctx context.Context, j job) {
	if !p.seen.ShouldEmit(j.id) {
		p.stats.Duplicates.Add(1)
		p.m.ItemsSkipped.Inc()
		return
	}

	if p.opts.Cache != nil {
		cached, ok, err := p.opts.Cache.Get(ctx, j.id, p.opts.CacheTTL)
		if err != nil {
			log.Printf("pipeline[cache]: get %s: %v", j.id, err)
		} else if ok {
			p.stats.CacheHits.Add(1)
			p.m.CacheHits.Inc()
			p.emit(j, cached.StreamURL)
			return
		}
	}

	res, err := p.resolveWithRetry(ctx, j)
	if err != nil {
		p.stats.Failed.Add(1)
		p.m.ResolveFailed.WithLabelValues(string(resolve.KindOf(err))).Inc()
		if ctx.Err() != nil {
			return
		}
		log.Printf("pipeline[resolve]: %s: %v", j.id, err)
		if p.opts.EmitUnresolved && resolve.IsKind(err, resolve.KindNotFound) {
			p.emit(j, j.pageURL)
		}
		return
	}
	p.stats.Resolved.Add(1)
	p.m.ResolveOK.Inc()
	if p.opts.Cache != nil {
		if err := p.opts.Cache.Put(context.Background(), j.stream(res.StreamURL)); err != nil {
			log.Printf("pipeline[cache]: put %s: %v", j.id, err)
		}
	}
	p.emit(j, res.StreamURL)
}

func (p *run) resolveWithRetry(ctx context.Context, j job) (resolve.Result, error) {
	backoff := p.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		res, err := j.resolver.Resolve(ctx, j.pageURL)
		if err == nil {
			return res, nil
		}
		if !resolve.Retryable(err) || attempt >= p.opts.RetryMax || ctx.Err() != nil {
			return resolve.Result{}, err
		}
		log.Printf("pipeline[retry]: %s after attempt %d: %v", j.id, attempt+1, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return resolve.Result{}, err
		}
		backoff *= 2
	}
}

func (j job) stream(streamURL string) catalog.ResolvedStream {
	return catalog.ResolvedStream{
		ID:         j.id,
		Title:      j.title,
		ImageURL:   j.imageURL,
		StreamURL:  streamURL,
		GroupLabel: j.item.Title,
		Season:     j.season,
		Episode:    j.episode,
	}
}

func (p *run) emit(j job, streamURL string) {
	s := j.stream(streamURL)
	if err := p.sink.Emit(j.item, s); err != nil {
		log.Printf("pipeline[emit]: %s: %v", j.id, err)
		return
	}
	p.stats.Emitted.Add(1)
	p.m.StreamsEmitted.Inc()
}
