package models

import "time"

// Pricing tiers assigned during enrichment. The strings are the wire format
// and must match what providers are instructed to return.
const (
	CategoryBudget   = "Budget"
	CategoryMidRange = "Mid Range"
	CategoryHighEnd  = "High End"
	CategoryUnknown  = "Unknown"
)

type EnrichedProduct struct {
	Product
	AICategory  string     `json:"ai_category,omitempty"`
	AIReasoning string     `json:"ai_reasoning,omitempty"`
	EnrichedAt  *time.Time `json:"enriched_at,omitempty"`
}

// PriceStats summarizes the priced subset of one run. Derived per run,
// never persisted on its own.
type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

type EnrichedMetadata struct {
	TotalProducts        int            `json:"total_products"`
	EnrichedAt           time.Time      `json:"enriched_at"`
	AIProvider           string         `json:"ai_provider"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

type EnrichedResult struct {
	Metadata EnrichedMetadata  `json:"metadata"`
	Products []EnrichedProduct `json:"products"`
}

// BuildEnrichedResult assembles the enriched artifact. Products that passed
// through without a category (no price) are counted under "Unknown".
func BuildEnrichedResult(products []EnrichedProduct, provider string, now time.Time) EnrichedResult {
	distribution := make(map[string]int)
	for _, p := range products {
		category := p.AICategory
		if category == "" {
			category = CategoryUnknown
		}
		distribution[category]++
	}

	return EnrichedResult{
		Metadata: EnrichedMetadata{
			TotalProducts:        len(products),
			EnrichedAt:           now,
			AIProvider:           provider,
			CategoryDistribution: distribution,
		},
		Products: products,
	}
}

// ComputePriceStats derives min/max/avg over products that carry a price.
// Returns false when no product is priced.
func ComputePriceStats(products []Product) (PriceStats, bool) {
	var stats PriceStats
	var sum float64
	count := 0

	for _, p := range products {
		if p.Price == nil {
			continue
		}
		price := *p.Price
		if count == 0 {
			stats.Min = price
			stats.Max = price
		} else {
			if price < stats.Min {
				stats.Min = price
			}
			if price > stats.Max {
				stats.Max = price
			}
		}
		sum += price
		count++
	}

	if count == 0 {
		return PriceStats{}, false
	}
	stats.Avg = sum / float64(count)
	return stats, true
}
