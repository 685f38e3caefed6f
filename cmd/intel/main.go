package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/database"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/enrich"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/events"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/scraper"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/storage"
)

func main() {
	var (
		targetName     = flag.String("target", "books_toscrape", "Target website to scrape")
		maxProducts    = flag.Int("max-products", 0, "Maximum number of products to scrape (0 uses MAX_PRODUCTS)")
		skipScraping   = flag.Bool("skip-scraping", false, "Skip scraping and reuse the existing raw artifact")
		skipEnrichment = flag.Bool("skip-enrichment", false, "Skip AI enrichment")
		listTargets    = flag.Bool("list-targets", false, "List all available scraping targets")
		headless       = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if *listTargets {
		printTargets(cfg)
		return
	}

	target, err := cfg.Target(*targetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unknown target %q, available: %s\n",
			*targetName, strings.Join(cfg.TargetNames(), ", "))
		os.Exit(1)
	}

	if *maxProducts > 0 {
		cfg.Scraper.MaxProducts = *maxProducts
	}
	cfg.Browser.Headless = *headless && cfg.Browser.Headless

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	// The provider is resolved before any browser work so a missing API key
	// fails the run without burning a scrape.
	var provider enrich.Provider
	if !*skipEnrichment {
		provider, err = enrich.NewProvider(cfg.AI)
		if err != nil {
			logger.Error("failed to configure AI provider", "error", err)
			os.Exit(1)
		}
	}

	scrapeMetrics := scraper.NewMetrics()
	enrichMetrics := enrich.NewMetrics()
	metricsSrv := startMetricsServer(cfg.Server.MetricsAddr, logger, scrapeMetrics, enrichMetrics)

	runID := uuid.New()
	logger.Info("starting pipeline", "run_id", runID.String(), "target", target.Name)

	store := storage.New(cfg.Output.RawPath, cfg.Output.EnrichedPath)

	var raw *models.RawResult
	if *skipScraping {
		logger.Info("skipping scraping, using existing raw artifact", "path", store.RawPath())
		raw, err = store.LoadRaw()
		if err != nil {
			logger.Error("failed to load raw artifact", "error", err)
			os.Exit(1)
		}
	} else {
		orch := scraper.New(cfg, target, scrapeMetrics, logger)
		raw, err = orch.Run(ctx, runID.String())
		if err != nil {
			logger.Error("scraping failed", "error", err)
			os.Exit(1)
		}
		if len(raw.Products) == 0 {
			logger.Error("scrape yielded nothing, check the target configuration",
				"error", scraper.ErrNoProducts, "target", target.Name)
			os.Exit(1)
		}
		if err := store.SaveRaw(raw); err != nil {
			logger.Error("failed to save raw artifact", "error", err)
			os.Exit(1)
		}
		logger.Info("raw artifact saved", "path", store.RawPath(), "products", len(raw.Products))
	}

	var result *models.EnrichedResult
	if *skipEnrichment {
		logger.Info("skipping AI enrichment")
	} else {
		engine := enrich.NewEngine(provider, cfg.AI, enrichMetrics, logger)
		enriched, err := engine.Enrich(ctx, raw.Products)
		if err != nil {
			logger.Error("enrichment aborted", "error", err)
			os.Exit(1)
		}

		r := models.BuildEnrichedResult(enriched, provider.Name(), time.Now())
		if err := store.SaveEnriched(&r); err != nil {
			logger.Error("failed to save enriched artifact", "error", err)
			os.Exit(1)
		}
		result = &r
		logger.Info("enriched artifact saved", "path", store.EnrichedPath(), "products", len(r.Products))
	}

	recordRun(ctx, cfg, store, logger, runID, target.Name, raw, result)
	printReport(store, logger)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("pipeline completed", "run_id", runID.String())
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printTargets(cfg *config.Config) {
	fmt.Println("Available scraping targets:")
	for _, name := range cfg.TargetNames() {
		target := cfg.Targets[name]
		fmt.Printf("  %s\n", name)
		fmt.Printf("    URL:  %s\n", target.URL)
		fmt.Printf("    Kind: %s\n", target.Kind)
	}
}

// startMetricsServer exposes the pipeline counters for scrapes long enough to
// be worth watching. No-op when no address is configured.
func startMetricsServer(addr string, logger *slog.Logger, scrapeMetrics *scraper.Metrics, enrichMetrics *enrich.Metrics) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{scrapeMetrics.Registry, enrichMetrics.Registry},
		promhttp.HandlerOpts{},
	))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// recordRun feeds the optional sinks: the postgres run archive and the redis
// event stream. Both are best-effort; a sink failure never fails the run.
func recordRun(ctx context.Context, cfg *config.Config, store *storage.Store, logger *slog.Logger,
	runID uuid.UUID, target string, raw *models.RawResult, result *models.EnrichedResult) {

	var products []models.EnrichedProduct
	provider := ""
	var distribution map[string]int
	var enrichedAt *time.Time
	enrichedPath := ""

	if result != nil {
		products = result.Products
		provider = result.Metadata.AIProvider
		distribution = result.Metadata.CategoryDistribution
		ts := result.Metadata.EnrichedAt
		enrichedAt = &ts
		enrichedPath = store.EnrichedPath()
	} else {
		products = make([]models.EnrichedProduct, 0, len(raw.Products))
		for _, p := range raw.Products {
			products = append(products, models.EnrichedProduct{Product: p})
		}
	}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn("run archive unavailable", "error", err)
		} else {
			defer db.Close()

			run := &database.Run{
				ID:                   runID,
				Target:               target,
				TotalProducts:        len(products),
				AIProvider:           provider,
				CategoryDistribution: distribution,
				RawPath:              store.RawPath(),
				EnrichedPath:         enrichedPath,
				ScrapedAt:            raw.Metadata.ScrapedAt,
				EnrichedAt:           enrichedAt,
			}

			if err := db.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to ensure archive schema", "error", err)
			} else if err := db.SaveRun(ctx, run, products); err != nil {
				logger.Warn("failed to archive run", "error", err)
			} else {
				logger.Info("run archived", "run_id", runID.String())
			}
		}
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher := events.NewPublisher(client, cfg.Redis.Stream, logger)
		defer publisher.Close()

		payload := &events.RunCompletedPayload{
			RunID:                runID.String(),
			Target:               target,
			TotalProducts:        len(products),
			AIProvider:           provider,
			CategoryDistribution: distribution,
			RawPath:              store.RawPath(),
			EnrichedPath:         enrichedPath,
		}
		if err := publisher.PublishRunCompleted(ctx, payload); err != nil {
			logger.Warn("failed to publish run event", "error", err)
		}
	}
}

// printReport summarizes the enriched artifact the way an operator wants to
// read it after a run. Missing artifact is not an error; scrape-only runs
// have nothing to report.
func printReport(store *storage.Store, logger *slog.Logger) {
	result, err := store.LoadEnriched()
	if err != nil {
		if errors.Is(err, storage.ErrArtifactMissing) {
			logger.Warn("no enriched artifact to report on")
			return
		}
		logger.Error("failed to load enriched artifact for report", "error", err)
		return
	}

	fmt.Println()
	fmt.Println("Run summary")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Total products analyzed: %d\n", result.Metadata.TotalProducts)
	fmt.Printf("AI provider:             %s\n", strings.ToUpper(result.Metadata.AIProvider))

	if len(result.Metadata.CategoryDistribution) > 0 {
		fmt.Println()
		fmt.Println("Category distribution:")
		categories := make([]string, 0, len(result.Metadata.CategoryDistribution))
		for category := range result.Metadata.CategoryDistribution {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Printf("  %-10s %d\n", category, result.Metadata.CategoryDistribution[category])
		}
	}

	products := make([]models.Product, 0, len(result.Products))
	for _, ep := range result.Products {
		products = append(products, ep.Product)
	}
	if stats, ok := models.ComputePriceStats(products); ok {
		fmt.Println()
		fmt.Println("Price analysis:")
		fmt.Printf("  Lowest:  $%.2f\n", stats.Min)
		fmt.Printf("  Highest: $%.2f\n", stats.Max)
		fmt.Printf("  Average: $%.2f\n", stats.Avg)
	}
	fmt.Println()
}
