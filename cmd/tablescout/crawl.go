package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/engine"
	"github.com/IshaanNene/TableScout/internal/fetcher"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/pipeline"
	"github.com/IshaanNene/TableScout/internal/record"
	"github.com/IshaanNene/TableScout/internal/spider"
	"github.com/IshaanNene/TableScout/internal/storage"
)

var (
	outputPath  string
	outputTypes string
	sections    string
	concurrent  int
	depth       int
	maxRequests int
	maxRetries  int
	fetcherType string
	seenStore   string
	withMetrics bool
	freshSeen   bool
)

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [place...]",
		Short: "Crawl the restaurants of one or more places",
		Long: `Crawl starts at the listing page of every place (for example "amsterdam"),
follows the restaurant and review pages it links to and stores the records
extracted from them. Places default to spider.places from the config.`,
		RunE: runCrawl,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory for file storage")
	cmd.Flags().StringVarP(&outputTypes, "storage", "s", "", "comma-separated storage types: jsonl, csv, mongo, postgres, kafka")
	cmd.Flags().StringVar(&sections, "sections", "", "comma-separated sections: info, reviews, comments, listing")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of concurrent workers")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum crawl depth (-1 = config default)")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 0, "maximum total requests (0 = unlimited)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed request (-1 = config default)")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "fetcher: http or browser")
	cmd.Flags().StringVar(&seenStore, "seen-store", "", "seen-set backend: memory or redis")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "serve Prometheus metrics")
	cmd.Flags().BoolVar(&freshSeen, "fresh", false, "clear the redis seen-set before crawling")

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyCrawlOverrides applies command-line flag values to the config.
func applyCrawlOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputTypes != "" {
		cfg.Storage.Types = splitList(strings.ToLower(outputTypes))
	}
	if sections != "" {
		cfg.Spider.Sections = splitList(strings.ToLower(sections))
	}
	if concurrent > 0 {
		cfg.Crawler.Concurrency = concurrent
	}
	if depth >= 0 {
		cfg.Crawler.MaxDepth = depth
	}
	if maxRequests > 0 {
		cfg.Crawler.MaxRequests = maxRequests
	}
	if maxRetries >= 0 {
		cfg.Crawler.MaxRetries = maxRetries
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = fetcherType
	}
	if seenStore != "" {
		cfg.Crawler.SeenStore = seenStore
	}
	if withMetrics {
		cfg.Metrics.Enabled = true
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(applyCrawlOverrides)
	if err != nil {
		return err
	}

	places := args
	if len(places) == 0 {
		places = cfg.Spider.Places
	}
	if len(places) == 0 {
		return errors.New("no places to crawl: pass them as arguments or set spider.places")
	}
	secs, err := record.ParseSections(cfg.Spider.Sections)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer metrics.Close()
	}

	eng := engine.New(cfg, logger)
	eng.SetMetrics(metrics)

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	eng.SetFetcher(f.Type(), f)

	if cfg.Crawler.SeenStore == "redis" {
		seen, err := engine.NewRedisSeenSet(cfg.Redis)
		if err != nil {
			f.Close()
			return err
		}
		if freshSeen {
			n, err := seen.Reset(ctx)
			if err != nil {
				f.Close()
				seen.Close()
				return err
			}
			logger.Info("seen-set cleared", "keys", n)
		}
		eng.SetSeenSet(seen)
	}

	eng.SetPipeline(pipeline.Default(logger))

	store, err := storage.New(ctx, cfg, metrics, logger)
	if err != nil {
		f.Close()
		return fmt.Errorf("create storage: %w", err)
	}
	eng.SetStorage(store)

	iens := spider.NewIens(cfg.Spider.BaseURL, secs, metrics, logger)
	iens.Register(eng)
	if err := iens.Seed(eng, places); err != nil {
		logger.Warn("some places were not queued", "error", err)
	}

	logger.Info("starting crawl",
		"places", places,
		"sections", cfg.Spider.Sections,
		"storage", cfg.Storage.Types,
		"concurrency", cfg.Crawler.Concurrency,
	)

	go func() {
		<-ctx.Done()
		eng.Stop()
	}()

	start := time.Now()
	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	eng.Wait()

	stats := eng.Stats().Snapshot()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nCrawl complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(w, "   Requests:  %v sent, %v failed\n", stats["requests_sent"], stats["requests_failed"])
	fmt.Fprintf(w, "   Records:   %v emitted, %v rejected, %v stored\n",
		stats["records_emitted"], stats["records_rejected"], stats["records_stored"])
	fmt.Fprintf(w, "   Data:      %v bytes downloaded\n", stats["bytes_downloaded"])
	fmt.Fprintf(w, "   Storage:   %s\n", strings.Join(cfg.Storage.Types, ", "))
	return nil
}
