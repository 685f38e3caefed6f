package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

const promptTemplate = `
Analyze these e-commerce products and categorize each into a pricing tier.

PRICE STATISTICS:
- Min: $%.2f
- Max: $%.2f
- Average: $%.2f

PRODUCTS:
%s

TASK:
For each product, determine its category based on:
1. Price relative to the range
2. Rating (if available)
3. Product name/features

CATEGORIES:
- "Budget" - Lower-priced options (typically below average)
- "Mid Range" - Moderately priced (around average)
- "High End" - Premium/expensive (well above average)

Respond ONLY with valid JSON in this exact format:
{
  "categorizations": [
    {
      "id": "product_id",
      "category": "Budget|Mid Range|High End",
      "reasoning": "brief explanation"
    }
  ]
}
`

// productSummary is the slice of each product the provider sees.
type productSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Rating *float64 `json:"rating"`
}

func buildPrompt(products []models.Product, stats models.PriceStats) (string, error) {
	summaries := make([]productSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, productSummary{
			ID:     p.ID,
			Name:   p.Name,
			Price:  p.Price,
			Rating: p.Rating,
		})
	}

	payload, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode product summaries: %w", err)
	}

	return fmt.Sprintf(promptTemplate, stats.Min, stats.Max, stats.Avg, payload), nil
}

type categorization struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

type categorizationResponse struct {
	Categorizations []categorization `json:"categorizations"`
}

// parseCategorizations decodes the provider's response and keys it by
// product id. Models wrap JSON in markdown fences often enough that we strip
// them first. Any response that is still not the requested JSON shape is an
// error; the caller falls back at batch granularity.
func parseCategorizations(response string) (map[string]categorization, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed categorizationResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}
	if parsed.Categorizations == nil {
		return nil, errors.New("provider response missing categorizations")
	}

	byID := make(map[string]categorization, len(parsed.Categorizations))
	for _, c := range parsed.Categorizations {
		byID[c.ID] = c
	}
	return byID, nil
}
