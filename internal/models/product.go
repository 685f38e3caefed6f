package models

import (
	"fmt"
	"time"
)

// NotAvailable is the sentinel stored in raw fields when extraction found nothing.
const NotAvailable = "N/A"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     *float64  `json:"price"`
	PriceRaw  string    `json:"price_raw"`
	Rating    *float64  `json:"rating"`
	RatingRaw string    `json:"rating_raw"`
	StockInfo StockInfo `json:"stock_info"`
	Source    string    `json:"source"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

type StockInfo struct {
	InStock        *bool   `json:"in_stock"`
	ScarcitySignal *string `json:"scarcity_signal"`
	RawText        string  `json:"raw_text,omitempty"`
}

type RawMetadata struct {
	Target        string    `json:"target"`
	TotalProducts int       `json:"total_products"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

type RawResult struct {
	Metadata RawMetadata `json:"metadata"`
	Products []Product   `json:"products"`
}

// NewProduct seeds a product with its ordinal id and provenance fields.
// Ordinals are 1-based and follow element order on the page.
func NewProduct(target, url string, ordinal int) Product {
	return Product{
		ID:        fmt.Sprintf("%s_%d", target, ordinal),
		Source:    target,
		SourceURL: url,
		ScrapedAt: time.Now(),
	}
}

func (p *Product) HasPrice() bool {
	return p.Price != nil
}
