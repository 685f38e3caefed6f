package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

// batchSize bounds prompt size and limits a provider failure to one batch.
const batchSize = 20

const (
	reasonFallbackMissing     = "Fallback categorization based on price"
	reasonFallbackUnavailable = "Rule-based categorization (AI unavailable)"
)

// batchStatus tracks a batch through its lifecycle. Every batch ends
// finalized: parsed batches reconcile missing ids through the price rule,
// failed batches finalize entirely through it.
type batchStatus string

const (
	batchPending           batchStatus = "pending"
	batchProviderAttempted batchStatus = "provider_attempted"
	batchParsed            batchStatus = "parsed"
	batchFailed            batchStatus = "failed"
	batchFinalized         batchStatus = "finalized"
)

type batch struct {
	ordinal  int
	products []models.Product
	status   batchStatus
}

type Engine struct {
	provider Provider
	cfg      config.AIConfig
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(provider Provider, cfg config.AIConfig, metrics *Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "enrich"),
		now:      time.Now,
	}
}

// Enrich assigns a category to every priced product. Unpriced products pass
// through untouched and are appended after the enriched ones, so relative
// order across the whole set is not preserved. Provider failures never abort
// the pass; they degrade one batch at a time to the rule-based fallback.
func (e *Engine) Enrich(ctx context.Context, products []models.Product) ([]models.EnrichedProduct, error) {
	priced, unpriced := partition(products)

	if len(priced) == 0 {
		e.logger.Warn("no priced products to enrich", "total", len(products))
		return passthrough(products), nil
	}

	stats, _ := models.ComputePriceStats(priced)
	e.logger.Info("price statistics",
		"priced", len(priced),
		"min", stats.Min,
		"max", stats.Max,
		"avg", stats.Avg)

	enriched := make([]models.EnrichedProduct, 0, len(products))
	for _, b := range makeBatches(priced) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.logger.Info("processing batch", "batch", b.ordinal, "size", len(b.products))
		enriched = append(enriched, e.enrichBatch(ctx, b, stats)...)
	}

	for _, p := range unpriced {
		enriched = append(enriched, models.EnrichedProduct{Product: p})
	}

	e.logger.Info("enrichment finished", "enriched", len(priced), "passed_through", len(unpriced))
	return enriched, nil
}

func makeBatches(priced []models.Product) []*batch {
	batches := make([]*batch, 0, (len(priced)+batchSize-1)/batchSize)
	for start := 0; start < len(priced); start += batchSize {
		end := start + batchSize
		if end > len(priced) {
			end = len(priced)
		}
		batches = append(batches, &batch{
			ordinal:  len(batches) + 1,
			products: priced[start:end],
			status:   batchPending,
		})
	}
	return batches
}

// enrichBatch walks one batch through the lifecycle. Products the provider
// answered for keep its category and reasoning; products it skipped get the
// rule-based category. A failed call or an unusable response marks the batch
// failed and drops it whole to the fallback.
func (e *Engine) enrichBatch(ctx context.Context, b *batch, stats models.PriceStats) []models.EnrichedProduct {
	prompt, err := buildPrompt(b.products, stats)
	if err != nil {
		e.logger.Warn("failed to build prompt, falling back", "batch", b.ordinal, "error", err)
		b.status = batchFailed
		return e.finalize(b, e.applyFallback(b.products, stats))
	}

	b.status = batchProviderAttempted
	response, err := e.provider.Complete(ctx, prompt, e.cfg.Temperature, e.cfg.MaxTokens)
	if err != nil {
		e.logger.Warn("provider call failed, falling back to rule-based categorization", "batch", b.ordinal, "error", err)
		e.metrics.IncProviderError()
		b.status = batchFailed
		return e.finalize(b, e.applyFallback(b.products, stats))
	}

	byID, err := parseCategorizations(response)
	if err != nil {
		e.logger.Warn("unusable provider response, falling back to rule-based categorization", "batch", b.ordinal, "error", err)
		e.metrics.IncProviderError()
		b.status = batchFailed
		return e.finalize(b, e.applyFallback(b.products, stats))
	}
	b.status = batchParsed

	now := e.now()
	enriched := make([]models.EnrichedProduct, 0, len(b.products))
	for _, product := range b.products {
		ep := models.EnrichedProduct{Product: product, EnrichedAt: &now}
		if cat, ok := byID[product.ID]; ok {
			ep.AICategory = cat.Category
			ep.AIReasoning = cat.Reasoning
			e.metrics.IncProduct("provider")
		} else {
			ep.AICategory = fallbackCategory(product, stats)
			ep.AIReasoning = reasonFallbackMissing
			e.metrics.IncProduct("fallback")
		}
		enriched = append(enriched, ep)
	}

	return e.finalize(b, enriched)
}

// finalize stamps the batch terminal and reports its outcome.
func (e *Engine) finalize(b *batch, enriched []models.EnrichedProduct) []models.EnrichedProduct {
	outcome := "parsed"
	if b.status == batchFailed {
		outcome = "fallback"
	}
	b.status = batchFinalized
	e.metrics.IncBatch(outcome)
	return enriched
}

func (e *Engine) applyFallback(products []models.Product, stats models.PriceStats) []models.EnrichedProduct {
	now := e.now()
	enriched := make([]models.EnrichedProduct, 0, len(products))
	for _, product := range products {
		enriched = append(enriched, models.EnrichedProduct{
			Product:     product,
			AICategory:  fallbackCategory(product, stats),
			AIReasoning: reasonFallbackUnavailable,
			EnrichedAt:  &now,
		})
		e.metrics.IncProduct("fallback")
	}
	return enriched
}

// fallbackCategory applies the deterministic price-ratio rule: below 0.7x
// the average is Budget, below 1.3x is Mid Range, the rest is High End.
func fallbackCategory(product models.Product, stats models.PriceStats) string {
	price := 0.0
	if product.Price != nil {
		price = *product.Price
	}

	switch {
	case price < stats.Avg*0.7:
		return models.CategoryBudget
	case price < stats.Avg*1.3:
		return models.CategoryMidRange
	default:
		return models.CategoryHighEnd
	}
}

func partition(products []models.Product) (priced, unpriced []models.Product) {
	for _, p := range products {
		if p.HasPrice() {
			priced = append(priced, p)
		} else {
			unpriced = append(unpriced, p)
		}
	}
	return priced, unpriced
}

func passthrough(products []models.Product) []models.EnrichedProduct {
	out := make([]models.EnrichedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, models.EnrichedProduct{Product: p})
	}
	return out
}
