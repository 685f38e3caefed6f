// Package extract turns raw element text into typed product fields.
// Every function is total: a miss degrades to a sentinel or nil, never an error.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

var (
	numberPattern   = regexp.MustCompile(`[\d,]+\.?\d*`)
	ratingPattern   = regexp.MustCompile(`\d+\.?\d*`)
	scarcityPattern = regexp.MustCompile(`only (\d+) left`)
)

// ratingWords maps spelled-out star counts, checked in ascending order.
var ratingWords = []struct {
	word  string
	value float64
}{
	{"one", 1.0},
	{"two", 2.0},
	{"three", 3.0},
	{"four", 4.0},
	{"five", 5.0},
}

var stockPhrases = []string{"in stock", "available", "ready to ship"}

// Text returns the trimmed text of the first descendant matching selector,
// or the N/A sentinel when the selector misses or the node is empty.
func Text(sel *goquery.Selection, selector string) string {
	node := sel.Find(selector).First()
	if node.Length() == 0 {
		return models.NotAvailable
	}
	text := strings.TrimSpace(node.Text())
	if text == "" {
		return models.NotAvailable
	}
	return text
}

// Price parses the first numeric token out of a price string such as
// "$1,234.56". Thousands separators are stripped before matching.
func Price(text string) *float64 {
	if text == "" || text == models.NotAvailable {
		return nil
	}

	match := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return nil
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &price
}

// Rating parses a star rating from text like "4.5 out of 5 stars" or "Three".
// Numeric values are capped at 5.0. Word ratings are matched case-insensitively.
func Rating(text string) *float64 {
	if text == "" || text == models.NotAvailable {
		return nil
	}

	if match := ratingPattern.FindString(text); match != "" {
		if rating, err := strconv.ParseFloat(match, 64); err == nil {
			rating = math.Min(rating, 5.0)
			return &rating
		}
	}

	lower := strings.ToLower(text)
	for _, w := range ratingWords {
		if strings.Contains(lower, w.word) {
			value := w.value
			return &value
		}
	}

	return nil
}

// Stock classifies availability text. Unknown input yields a zero StockInfo
// so in_stock serializes as null rather than a false guess.
func Stock(text string) models.StockInfo {
	if text == "" || text == models.NotAvailable {
		return models.StockInfo{}
	}

	lower := strings.ToLower(text)

	inStock := false
	for _, phrase := range stockPhrases {
		if strings.Contains(lower, phrase) {
			inStock = true
			break
		}
	}

	info := models.StockInfo{
		InStock: &inStock,
		RawText: text,
	}

	if match := scarcityPattern.FindString(lower); match != "" {
		info.ScarcitySignal = &match
	}

	return info
}
