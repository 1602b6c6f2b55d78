// Command vod-harvest: walk remote media catalogs and resolve every
// item to a playable stream.
//
//	run      Full harvest: enumerate all sources, resolve, write outputs. For cron/systemd.
//	probe    Fetch page 1 of each source's listing and report reachability
//	resolve  Resolve one watch-page URL through a source's strategy chain
//	export   Rebuild playlists and group files from a saved catalog (no network)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/config"
	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/httpclient"
	"github.com/vodharvest/vod-harvest/internal/metrics"
	"github.com/vodharvest/vod-harvest/internal/paginate"
	"github.com/vodharvest/vod-harvest/internal/pipeline"
	"github.com/vodharvest/vod-harvest/internal/sink"
	"github.com/vodharvest/vod-harvest/internal/source"
	"github.com/vodharvest/vod-harvest/internal/streamcache"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[vod-harvest] ")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runSources := runCmd.String("sources", "", "Source definitions JSON (default: HARVEST_SOURCES)")
	runOut := runCmd.String("out", "", "Output directory (default: HARVEST_OUTPUT_DIR)")
	runTimeout := runCmd.Duration("timeout", 0, "Overall run deadline (default: HARVEST_RUN_TIMEOUT; 0 = none)")
	runConcurrency := runCmd.Int("concurrency", 0, "Resolution workers (default: HARVEST_CONCURRENCY)")
	runEmitUnresolved := runCmd.Bool("emit-unresolved", false, "Also emit items the chain could not resolve, with their page URL")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeSources := probeCmd.String("sources", "", "Source definitions JSON (default: HARVEST_SOURCES)")
	probeTimeout := probeCmd.Duration("timeout", 15*time.Second, "Timeout per source")

	resolveCmd := flag.NewFlagSet("resolve", flag.ExitOnError)
	resolveSources := resolveCmd.String("sources", "", "Source definitions JSON (default: HARVEST_SOURCES)")
	resolveSource := resolveCmd.String("source", "", "Source name whose strategy chain to use")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportCatalog := exportCmd.String("catalog", "", "Saved catalog JSON (default: HARVEST_CATALOG)")
	exportOut := exportCmd.String("out", "", "Output directory (default: HARVEST_OUTPUT_DIR)")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|probe|resolve|export> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run      Enumerate all sources, resolve streams, write playlists\n")
		fmt.Fprintf(os.Stderr, "  probe    Fetch page 1 of each source and report reachability\n")
		fmt.Fprintf(os.Stderr, "  resolve  Resolve one watch-page URL (resolve -source NAME URL)\n")
		fmt.Fprintf(os.Stderr, "  export   Rebuild output files from a saved catalog, no network\n")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("Config invalid: %v", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		if *runSources != "" {
			cfg.SourcesPath = *runSources
		}
		if *runOut != "" {
			cfg.OutputDir = *runOut
		}
		if *runTimeout > 0 {
			cfg.RunTimeout = *runTimeout
		}
		if *runConcurrency > 0 {
			cfg.Concurrency = *runConcurrency
		}
		if *runEmitUnresolved {
			cfg.EmitUnresolved = true
		}
		os.Exit(runHarvest(cfg))

	case "probe":
		_ = probeCmd.Parse(os.Args[2:])
		if *probeSources != "" {
			cfg.SourcesPath = *probeSources
		}
		os.Exit(probe(cfg, *probeTimeout))

	case "resolve":
		_ = resolveCmd.Parse(os.Args[2:])
		if *resolveSources != "" {
			cfg.SourcesPath = *resolveSources
		}
		if *resolveSource == "" || resolveCmd.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Usage: resolve -source NAME URL")
			os.Exit(1)
		}
		os.Exit(resolveOne(cfg, *resolveSource, resolveCmd.Arg(0)))

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		if *exportCatalog != "" {
			cfg.CatalogPath = *exportCatalog
		}
		if *exportOut != "" {
			cfg.OutputDir = *exportOut
		}
		os.Exit(export(cfg))

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

// runHarvest executes one full harvest and maps the pipeline status
// to an exit code: 0 done, 2 cancelled, 1 fatal.
func runHarvest(cfg *config.Config) int {
	sources, err := source.LoadFile(cfg.SourcesPath)
	if err != nil {
		log.Printf("Load sources failed: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	retryMax := cfg.RetryMax
	if retryMax == 0 {
		retryMax = pipeline.RetryNone
	}
	opts := pipeline.Options{
		Concurrency:        cfg.Concurrency,
		MaxPages:           cfg.MaxPages,
		PageTimeout:        cfg.PageTimeout,
		PerHostDelay:       cfg.PerHostDelay,
		PerHostConcurrency: cfg.PerHostConcurrency,
		RetryMax:           retryMax,
		RetryBackoff:       cfg.RetryBackoff,
		CacheTTL:           cfg.CacheTTL,
		EmitUnresolved:     cfg.EmitUnresolved,
	}

	if cfg.CachePath != "" {
		cache, err := streamcache.Open(cfg.CachePath)
		if err != nil {
			log.Printf("Open stream cache failed: %v", err)
			return 1
		}
		defer cache.Close()
		opts.Cache = cache
	}

	m := metrics.New()
	opts.Metrics = m
	if cfg.MetricsAddr != "" {
		srv := m.Serve(cfg.MetricsAddr)
		defer srv.Close()
		log.Printf("Metrics on %s/metrics", cfg.MetricsAddr)
	}

	dirSink, err := sink.NewDir(cfg.OutputDir)
	if err != nil {
		log.Printf("Open output dir failed: %v", err)
		return 1
	}
	out := sink.Multi{dirSink, sink.NewCatalog(cfg.CatalogPath)}

	res, err := pipeline.Run(ctx, sources, out, opts)
	if closeErr := out.Close(); closeErr != nil {
		log.Printf("Write outputs failed: %v", closeErr)
		return 1
	}
	switch res.Status {
	case pipeline.StatusDone:
		return 0
	case pipeline.StatusCancelled:
		log.Printf("Run cancelled, partial outputs kept")
		return 2
	default:
		log.Printf("Run failed: %v", err)
		return 1
	}
}

// probe fetches page 1 of each source's listing and reports how many
// items the extraction chain sees there.
func probe(cfg *config.Config, timeout time.Duration) int {
	sources, err := source.LoadFile(cfg.SourcesPath)
	if err != nil {
		log.Printf("Load sources failed: %v", err)
		return 1
	}
	client := httpclient.Default()
	ok := 0
	for i := range sources {
		src := &sources[i]
		strategies := src.ItemStrategies()
		wcfg := src.WalkerConfig(timeout, 1)
		wcfg.MaxPages = 1
		w := paginate.NewWalker(client, wcfg, func(doc *fetch.Document) []catalog.Item {
			return extract.Items(doc, strategies)
		})
		items := 0
		_, err := w.Walk(context.Background(), func(batch []catalog.Item) bool {
			items += len(batch)
			return false
		})
		switch {
		case err != nil:
			log.Printf("Probe %s: FAIL (%v)", src.Name, err)
		case items == 0:
			log.Printf("Probe %s: page 1 reachable but no items matched", src.Name)
		default:
			log.Printf("Probe %s: OK (%d items on page 1)", src.Name, items)
			ok++
		}
	}
	if ok == 0 {
		return 1
	}
	return 0
}

// resolveOne runs a single page URL through one source's chain and
// prints the stream URL. Handy when writing a new source definition.
func resolveOne(cfg *config.Config, name, pageURL string) int {
	sources, err := source.LoadFile(cfg.SourcesPath)
	if err != nil {
		log.Printf("Load sources failed: %v", err)
		return 1
	}
	var src *source.Source
	for i := range sources {
		if sources[i].Name == name {
			src = &sources[i]
			break
		}
	}
	if src == nil {
		log.Printf("No source named %q", name)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := src.Resolver(httpclient.Default(), cfg.PageTimeout).Resolve(ctx, pageURL)
	if err != nil {
		log.Printf("Resolve failed: %v", err)
		return 1
	}
	log.Printf("Resolved via %s (attempt %d)", res.Strategy, res.Attempts)
	fmt.Println(res.StreamURL)
	return 0
}

// export rebuilds the output directory from a saved catalog snapshot.
func export(cfg *config.Config) int {
	c := catalog.New()
	if err := c.Load(cfg.CatalogPath); err != nil {
		log.Printf("Load catalog failed: %v", err)
		return 1
	}
	out, err := sink.NewDir(cfg.OutputDir)
	if err != nil {
		log.Printf("Open output dir failed: %v", err)
		return 1
	}
	n := 0
	for _, g := range c.Snapshot() {
		for _, s := range g.Streams {
			if err := out.Emit(g.Item, s); err != nil {
				log.Printf("Emit %s failed: %v", s.ID, err)
				return 1
			}
			n++
		}
	}
	if err := out.Close(); err != nil {
		log.Printf("Write outputs failed: %v", err)
		return 1
	}
	log.Printf("Exported %d streams to %s", n, cfg.OutputDir)
	return 0
}
