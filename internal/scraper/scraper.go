// Package scraper composes the browser session, behavior simulation and
// field extraction into one run against a configured target.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/behavior"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/browser"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/extract"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

var (
	ErrNoProducts   = errors.New("no products extracted")
	ErrElementEmpty = errors.New("element yielded no extractable fields")
)

// session is the browser surface the orchestrator drives. *browser.Session
// implements it; tests substitute a fake.
type session interface {
	behavior.Page
	Navigate(url string) error
	Content() (string, error)
	Close() error
}

type Orchestrator struct {
	cfg        *config.Config
	target     config.Target
	metrics    *Metrics
	logger     *slog.Logger
	newSession func(opts *browser.Options, logger *slog.Logger) (session, error)
}

func New(cfg *config.Config, target config.Target, metrics *Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		target:  target,
		metrics: metrics,
		logger:  logger.With("component", "scraper"),
		newSession: func(opts *browser.Options, logger *slog.Logger) (session, error) {
			return browser.New(opts, logger)
		},
	}
}

// Run executes one full scrape: open a session, navigate, warm up with
// browsing behavior, force lazy content on dynamic pages, then extract up to
// the configured number of products. The session is torn down on every exit
// path. An element that yields nothing is skipped and logged; the run goes on.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*models.RawResult, error) {
	start := time.Now()
	logger := o.logger.With("run_id", runID, "target", o.target.Name)
	logger.Info("starting scrape run", "url", o.target.URL, "kind", o.target.Kind)

	sess, err := o.newSession(sessionOptions(o.cfg.Browser), logger)
	if err != nil {
		o.metrics.IncRun(o.target.Name, "error")
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Error("failed to close browser session", "error", cerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		o.metrics.IncRun(o.target.Name, "canceled")
		return nil, err
	}

	if err := sess.Navigate(o.target.URL); err != nil {
		o.metrics.IncRun(o.target.Name, "error")
		return nil, err
	}

	sim := behavior.New(sess, o.cfg.Behavior, logger)

	logger.Info("simulating browsing behavior", "rounds", o.cfg.Scraper.WarmupRounds)
	if err := sim.SimulateBrowsing(o.cfg.Scraper.WarmupRounds); err != nil {
		o.metrics.IncRun(o.target.Name, "error")
		return nil, fmt.Errorf("browsing warm-up: %w", err)
	}

	if o.target.Kind == config.KindDynamic {
		logger.Info("triggering lazy-loaded content")
		if err := sim.ScrollToBottom(o.cfg.Behavior.ScrollPause); err != nil {
			o.metrics.IncRun(o.target.Name, "error")
			return nil, fmt.Errorf("scroll to bottom: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		o.metrics.IncRun(o.target.Name, "canceled")
		return nil, err
	}

	html, err := sess.Content()
	if err != nil {
		o.metrics.IncRun(o.target.Name, "error")
		return nil, err
	}

	products, err := o.extractFromHTML(html, logger)
	if err != nil {
		o.metrics.IncRun(o.target.Name, "error")
		return nil, err
	}

	o.metrics.IncRun(o.target.Name, "ok")
	o.metrics.ObserveRunDuration(time.Since(start))
	logger.Info("scrape run finished", "products", len(products), "duration", time.Since(start).String())

	return &models.RawResult{
		Metadata: models.RawMetadata{
			Target:        o.target.Name,
			TotalProducts: len(products),
			ScrapedAt:     time.Now(),
		},
		Products: products,
	}, nil
}

// extractFromHTML parses the serialized page and extracts up to the
// configured maximum of products from matched container elements. Ordinals
// are positional: a skipped element leaves a gap in the id sequence.
func (o *Orchestrator) extractFromHTML(html string, logger *slog.Logger) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	containers := doc.Find(o.target.Selectors.Container)
	total := containers.Length()
	logger.Info("found product elements", "count", total)

	limit := total
	if o.cfg.Scraper.MaxProducts < limit {
		limit = o.cfg.Scraper.MaxProducts
	}

	products := make([]models.Product, 0, limit)
	for i := 0; i < limit; i++ {
		o.metrics.IncElementSeen(o.target.Name)

		product, err := o.extractProduct(containers.Eq(i), i+1)
		if err != nil {
			o.metrics.IncSkipped(o.target.Name)
			logger.Warn("skipping element", "ordinal", i+1, "error", err)
			continue
		}

		o.metrics.IncProduct(o.target.Name)
		products = append(products, product)

		if (i+1)%10 == 0 {
			logger.Debug("extraction progress", "processed", i+1)
		}
	}

	return products, nil
}

// extractProduct builds one Product from a container element. Individual
// field misses degrade to sentinels; an element where every field missed is
// reported as an error so the caller can skip it.
func (o *Orchestrator) extractProduct(element *goquery.Selection, ordinal int) (models.Product, error) {
	sel := o.target.Selectors

	product := models.NewProduct(o.target.Name, o.target.URL, ordinal)
	product.Name = extract.Text(element, sel.Name)
	product.PriceRaw = extract.Text(element, sel.Price)
	product.RatingRaw = extract.Text(element, sel.Rating)
	availability := extract.Text(element, sel.Availability)

	product.Price = extract.Price(product.PriceRaw)
	product.Rating = extract.Rating(product.RatingRaw)
	product.StockInfo = extract.Stock(availability)

	if product.Name == models.NotAvailable &&
		product.PriceRaw == models.NotAvailable &&
		product.RatingRaw == models.NotAvailable &&
		availability == models.NotAvailable {
		return models.Product{}, ErrElementEmpty
	}

	return product, nil
}

func sessionOptions(cfg config.BrowserConfig) *browser.Options {
	return &browser.Options{
		Headless:        cfg.Headless,
		WaitUntil:       cfg.NavigationWait,
		NavTimeout:      cfg.NavTimeout,
		UserAgents:      cfg.UserAgents,
		RotateUserAgent: cfg.RotateUserAgent,
		ViewportWidth:   cfg.ViewportWidth,
		ViewportHeight:  cfg.ViewportHeight,
		Locale:          cfg.Locale,
		TimezoneID:      cfg.TimezoneID,
		AcceptLanguage:  cfg.AcceptLanguage,
	}
}
