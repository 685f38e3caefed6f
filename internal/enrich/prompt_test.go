package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	products := pricedProducts(10, 30)
	rating := 4.5
	products[0].Rating = &rating

	prompt, err := buildPrompt(products, models.PriceStats{Min: 10, Max: 30, Avg: 20})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- Min: $10.00")
	assert.Contains(t, prompt, "- Max: $30.00")
	assert.Contains(t, prompt, "- Average: $20.00")

	assert.Contains(t, prompt, `"id": "books_toscrape_1"`)
	assert.Contains(t, prompt, `"id": "books_toscrape_2"`)
	assert.Contains(t, prompt, `"rating": 4.5`)
	assert.Contains(t, prompt, `"rating": null`)

	assert.Contains(t, prompt, `"Budget" - Lower-priced options`)
	assert.Contains(t, prompt, `"Mid Range" - Moderately priced`)
	assert.Contains(t, prompt, `"High End" - Premium/expensive`)
	assert.Contains(t, prompt, "Respond ONLY with valid JSON")
	assert.Contains(t, prompt, `"categorizations"`)
}

func TestParseCategorizations(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		byID, err := parseCategorizations(`{
			"categorizations": [
				{"id": "a_1", "category": "Budget", "reasoning": "low price"},
				{"id": "a_2", "category": "High End", "reasoning": "premium brand"}
			]
		}`)
		require.NoError(t, err)
		require.Len(t, byID, 2)
		assert.Equal(t, "Budget", byID["a_1"].Category)
		assert.Equal(t, "premium brand", byID["a_2"].Reasoning)
	})

	t.Run("empty list is usable", func(t *testing.T) {
		byID, err := parseCategorizations(`{"categorizations": []}`)
		require.NoError(t, err)
		assert.Empty(t, byID)
	})

	t.Run("prose is unusable", func(t *testing.T) {
		_, err := parseCategorizations("Sure! Here are the categories you asked for.")
		require.Error(t, err)
	})

	t.Run("markdown fences are stripped", func(t *testing.T) {
		byID, err := parseCategorizations("```json\n{\"categorizations\": [{\"id\": \"a_1\", \"category\": \"Budget\", \"reasoning\": \"cheap\"}]}\n```")
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, "Budget", byID["a_1"].Category)
	})

	t.Run("bare fences are stripped", func(t *testing.T) {
		byID, err := parseCategorizations("```\n{\"categorizations\": []}\n```")
		require.NoError(t, err)
		assert.Empty(t, byID)
	})

	t.Run("truncated json is unusable", func(t *testing.T) {
		_, err := parseCategorizations(`{"categorizations": [{"id": "a_1", "cat`)
		require.Error(t, err)
	})

	t.Run("missing categorizations key", func(t *testing.T) {
		_, err := parseCategorizations(`{"results": []}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "categorizations")
	})
}
