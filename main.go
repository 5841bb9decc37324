package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tesla-finder/config"
	"tesla-finder/metrics"
	"tesla-finder/models"
	"tesla-finder/report"
	"tesla-finder/scraper"
	"tesla-finder/services"
	"tesla-finder/storage"
	"tesla-finder/summarizer"
	"tesla-finder/utils"
)

const usage = `Usage: tesla-finder <command> [options]

Commands:
  digest [--urls a,b] [--output file.json] [--html] [--html-output path] [--limit N]
        Search every configured source and write a consolidated report.
  search <url> [--output file.json]
        Analyse a single listing page.
  urls-list
        Print the configured source URLs.
  help
        Show this message.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	logger := utils.NewLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 1
	}
	logger.SetDebug(cfg.LogLevel == "debug")

	switch args[0] {
	case "digest":
		return runDigest(ctx, cfg, logger, args[1:], stdout)
	case "search":
		return runSearch(ctx, cfg, logger, args[1:], stdout)
	case "urls-list":
		for i, u := range cfg.SourceURLs {
			fmt.Fprintf(stdout, "%d. %s\n", i+1, u)
		}
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		logger.Error("Unknown command %q", args[0])
		fmt.Fprint(stdout, usage)
		return 1
	}
}

func runDigest(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	urls := fs.String("urls", "", "comma-separated source URLs (overrides SOURCE_URLS)")
	output := fs.String("output", cfg.JSONOutputPath, "JSON report path")
	withHTML := fs.Bool("html", false, "also write the HTML report")
	htmlOutput := fs.String("html-output", cfg.HTMLOutputPath, "HTML report path")
	limit := fs.Int("limit", cfg.TopLimit, "number of top listings to keep")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		logger.Error("Unexpected arguments: %s", strings.Join(fs.Args(), " "))
		return 1
	}
	if *limit < 1 {
		logger.Error("--limit must be at least 1, got %d", *limit)
		return 1
	}

	sources := cfg.SourceURLs
	if *urls != "" {
		sources = config.SplitList(*urls)
	}
	sources = scraper.CleanURLs(sources, logger)
	if len(sources) == 0 {
		logger.Error("No valid source URLs configured.")
		return 1
	}

	logger.Info("=== Tesla Finder digest starting ===")
	logger.Info("Config | sources: %d | concurrency: %d | rate: %dms | retries: %d | extractor: %s",
		len(sources), cfg.MaxConcurrency, cfg.RateLimitMs, cfg.MaxRetries, cfg.Extractor)

	p, err := newPipeline(ctx, cfg, logger, *limit)
	if err != nil {
		logger.Error("Failed to start pipeline: %v", err)
		return 1
	}
	defer p.Close()

	results, err := p.runner.Run(ctx, sources)
	if err != nil {
		logger.Error("Digest failed: %v", err)
		return 1
	}

	summary := p.aggregator.Aggregate(ctx, results)
	doc := report.BuildDocument(summary)
	p.publish(ctx, summary)

	if err := report.WriteJSON(*output, doc); err != nil {
		logger.Error("Failed to write JSON report: %v", err)
	} else {
		logger.Info("JSON report saved to %s", *output)
	}
	if *withHTML {
		if err := report.WriteHTML(*htmlOutput, doc); err != nil {
			logger.Error("Failed to write HTML report: %v", err)
		} else {
			logger.Info("HTML report saved to %s", *htmlOutput)
		}
	}

	report.RenderText(stdout, doc)
	return 0
}

func runSearch(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	output := fs.String("output", "", "optional JSON report path")

	var target string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		target, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if target == "" && fs.NArg() > 0 {
		target = fs.Arg(0)
	}
	if err := scraper.ValidateURL(target); err != nil {
		logger.Error("search needs an absolute http(s) URL: %v", err)
		return 1
	}

	p, err := newPipeline(ctx, cfg, logger, cfg.TopLimit)
	if err != nil {
		logger.Error("Failed to start pipeline: %v", err)
		return 1
	}
	defer p.Close()

	result, err := p.runner.Search(ctx, target)
	if err != nil {
		logger.Error("Search failed: %v", err)
		return 1
	}

	summary := p.aggregator.Aggregate(ctx, []models.SourceResult{result})
	doc := report.BuildDocument(summary)
	p.publish(ctx, summary)

	if *output != "" {
		if err := report.WriteJSON(*output, doc); err != nil {
			logger.Error("Failed to write JSON report: %v", err)
		} else {
			logger.Info("JSON report saved to %s", *output)
		}
	}
	report.RenderText(stdout, doc)
	return 0
}

// pipeline holds the wired components of one run and the sinks that must
// be closed afterwards.
type pipeline struct {
	cfg        *config.Config
	logger     *utils.Logger
	runner     *scraper.Runner
	aggregator *services.Aggregator
	runs       storage.RunWriter
	events     storage.EventPublisher
	closers    []func()
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *utils.Logger, limit int) (*pipeline, error) {
	p := &pipeline{cfg: cfg, logger: logger}

	extractor, err := p.newExtractor()
	if err != nil {
		p.Close()
		return nil, err
	}

	var rawSink scraper.RawSink
	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Warn("[storage] CSV writer disabled: %v", err)
		} else {
			rawSink = csvWriter
			p.closers = append(p.closers, func() { csvWriter.Close() })
		}
	}

	cleaner := services.NewCleaner(logger, cfg.Normalization())
	adapter := scraper.NewAdapter(extractor, cleaner, logger, scraper.AdapterOptions{
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.MaxRetries,
		RawSink:    rawSink,
	})
	p.runner = scraper.NewRunner(adapter, logger, cfg.MaxConcurrency, cfg.RateLimitMs)

	var narrator services.Summarizer = summarizer.NewTemplate()
	if cfg.SummarizerURL != "" {
		narrator = &summarizer.Fallback{
			Primary:   summarizer.NewService(cfg.SummarizerURL, cfg.FetchTimeout),
			Secondary: summarizer.NewTemplate(),
			Logger:    logger,
		}
	}
	p.aggregator = services.NewAggregator(logger, services.AggregateOptions{
		Limit:      limit,
		Vocabulary: cfg.ModelVocabulary,
	}, narrator)

	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN())
		if err != nil {
			logger.Warn("[storage] PostgreSQL disabled: %v", err)
		} else {
			p.runs = pg
		}
	}
	if cfg.NATSUrl != "" {
		pub, err := storage.NewNATSPublisher(cfg.NATSUrl, cfg.NATSSubject, logger)
		if err != nil {
			logger.Warn("[storage] NATS publishing disabled: %v", err)
		} else {
			p.events = pub
		}
	}
	return p, nil
}

func (p *pipeline) newExtractor() (scraper.Extractor, error) {
	var extractor scraper.Extractor
	switch p.cfg.Extractor {
	case config.ExtractorStatic:
		extractor = scraper.NewStaticExtractor(p.logger, p.cfg.FetchTimeout)
	case config.ExtractorService:
		svc, err := scraper.NewServiceExtractor(p.cfg.ExtractionServiceURL, p.cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		extractor = svc
	default:
		browser, err := scraper.NewBrowserExtractor(p.logger, p.cfg.ChromeBin)
		if err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		p.closers = append(p.closers, browser.Close)
		extractor = browser
	}

	if p.cfg.CacheDBPath == "" {
		return extractor, nil
	}
	cache, err := storage.NewCache(p.cfg.CacheDBPath, p.cfg.CacheTTL, p.logger)
	if err != nil {
		p.logger.Warn("[cache] Extraction cache disabled: %v", err)
		return extractor, nil
	}
	p.closers = append(p.closers, func() { cache.Close() })
	return scraper.NewCachedExtractor(extractor, cache, p.logger), nil
}

// publish hands the summary to every optional sink. Sink failures are
// logged and never change the exit code.
func (p *pipeline) publish(ctx context.Context, summary *models.ConsolidatedSummary) {
	metrics.LastDigestListings.Set(float64(summary.TotalListings))
	if p.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(p.cfg.MetricsTextfile); err != nil {
			p.logger.Warn("[metrics] Textfile write failed: %v", err)
		}
	}

	if p.runs != nil {
		switch err := p.runs.WriteRun(ctx, summary); {
		case errors.Is(err, storage.ErrRunExists):
			p.logger.Warn("[storage] Run %s already stored", summary.RunID)
		case err != nil:
			p.logger.Error("PostgreSQL write failed: %v", err)
		default:
			p.logger.Info("Run %s stored in PostgreSQL (%d listings)", summary.RunID, len(summary.RankedListings))
		}
	}

	if p.events != nil {
		if err := p.events.PublishDigest(ctx, summary); err != nil {
			p.logger.Warn("[storage] NATS publish failed: %v", err)
		}
	}
}

func (p *pipeline) Close() {
	if p.runs != nil {
		p.runs.Close()
	}
	if p.events != nil {
		p.events.Close()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}
