// Package database archives completed pipeline runs in Postgres. The archive
// is an optional sink: the pipeline works entirely from JSON artifacts, and
// rows here exist so runs can be compared after the artifacts are overwritten.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id UUID PRIMARY KEY,
	target TEXT NOT NULL,
	total_products INTEGER NOT NULL,
	ai_provider TEXT NOT NULL DEFAULT '',
	category_distribution JSONB,
	raw_path TEXT NOT NULL DEFAULT '',
	enriched_path TEXT NOT NULL DEFAULT '',
	scraped_at TIMESTAMPTZ NOT NULL,
	enriched_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS run_products (
	run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION,
	rating DOUBLE PRECISION,
	in_stock BOOLEAN,
	scarcity_signal TEXT,
	ai_category TEXT NOT NULL DEFAULT '',
	ai_reasoning TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Run is one archived pipeline execution.
type Run struct {
	ID                   uuid.UUID      `json:"id"`
	Target               string         `json:"target"`
	TotalProducts        int            `json:"total_products"`
	AIProvider           string         `json:"ai_provider"`
	CategoryDistribution map[string]int `json:"category_distribution,omitempty"`
	RawPath              string         `json:"raw_path"`
	EnrichedPath         string         `json:"enriched_path"`
	ScrapedAt            time.Time      `json:"scraped_at"`
	EnrichedAt           *time.Time     `json:"enriched_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// RunProduct is the archived slice of one product. Raw strings stay in the
// JSON artifacts; the archive keeps only the comparable fields.
type RunProduct struct {
	ProductID      string   `json:"product_id"`
	Name           string   `json:"name"`
	Price          *float64 `json:"price"`
	Rating         *float64 `json:"rating"`
	InStock        *bool    `json:"in_stock"`
	ScarcitySignal *string  `json:"scarcity_signal"`
	AICategory     string   `json:"ai_category,omitempty"`
	AIReasoning    string   `json:"ai_reasoning,omitempty"`
}

// EnsureSchema creates the archive tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// SaveRun archives a run and its products in a single transaction. A failed
// product insert rolls back the run row too.
func (db *DB) SaveRun(ctx context.Context, run *Run, products []models.EnrichedProduct) error {
	distribution, err := json.Marshal(run.CategoryDistribution)
	if err != nil {
		return fmt.Errorf("failed to marshal category distribution: %w", err)
	}

	return db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO runs (
				id, target, total_products, ai_provider, category_distribution,
				raw_path, enriched_path, scraped_at, enriched_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)
			RETURNING created_at`

		err := tx.QueryRow(ctx, query,
			run.ID, run.Target, run.TotalProducts, run.AIProvider, distribution,
			run.RawPath, run.EnrichedPath, run.ScrapedAt, run.EnrichedAt,
		).Scan(&run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		productQuery := `
			INSERT INTO run_products (
				run_id, product_id, name, price, rating,
				in_stock, scarcity_signal, ai_category, ai_reasoning
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)`

		for _, p := range products {
			_, err := tx.Exec(ctx, productQuery,
				run.ID, p.ID, p.Name, p.Price, p.Rating,
				p.StockInfo.InStock, p.StockInfo.ScarcitySignal,
				p.AICategory, p.AIReasoning,
			)
			if err != nil {
				return fmt.Errorf("failed to insert run product %s: %w", p.ID, err)
			}
		}

		return nil
	})
}

// RecentRuns returns the newest archived runs, most recent first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, target, total_products, ai_provider, category_distribution,
			   raw_path, enriched_path, scraped_at, enriched_at, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a single archived run. Returns nil without error when the
// id is unknown.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, target, total_products, ai_provider, category_distribution,
			   raw_path, enriched_path, scraped_at, enriched_at, created_at
		FROM runs
		WHERE id = $1`

	run, err := scanRun(db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// RunProducts returns the archived products of one run, ordered by product id.
func (db *DB) RunProducts(ctx context.Context, runID uuid.UUID) ([]RunProduct, error) {
	query := `
		SELECT product_id, name, price, rating,
			   in_stock, scarcity_signal, ai_category, ai_reasoning
		FROM run_products
		WHERE run_id = $1
		ORDER BY product_id ASC`

	rows, err := db.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run products: %w", err)
	}
	defer rows.Close()

	var products []RunProduct
	for rows.Next() {
		var p RunProduct
		err := rows.Scan(
			&p.ProductID, &p.Name, &p.Price, &p.Rating,
			&p.InStock, &p.ScarcitySignal, &p.AICategory, &p.AIReasoning,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	var distribution []byte

	err := row.Scan(
		&run.ID, &run.Target, &run.TotalProducts, &run.AIProvider, &distribution,
		&run.RawPath, &run.EnrichedPath, &run.ScrapedAt, &run.EnrichedAt, &run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if len(distribution) > 0 {
		if err := json.Unmarshal(distribution, &run.CategoryDistribution); err != nil {
			return nil, fmt.Errorf("failed to decode category distribution: %w", err)
		}
	}

	return run, nil
}
