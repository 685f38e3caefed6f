package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/database"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
	"github.com/ammaran620-de/stealth-market-intelligence/internal/storage"
)

// recentRunsLimit caps the run listing.
const recentRunsLimit = 50

// Archive is the slice of the run archive the API reads. A nil Archive means
// no database was configured; the run endpoints answer 503.
type Archive interface {
	RecentRuns(ctx context.Context, limit int) ([]*database.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error)
	RunProducts(ctx context.Context, runID uuid.UUID) ([]database.RunProduct, error)
}

type Handlers struct {
	store   *storage.Store
	archive Archive
	logger  *slog.Logger
}

func NewHandlers(store *storage.Store, archive Archive, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		archive: archive,
		logger:  logger.With("component", "api"),
	}
}

// Routes wires the read-only endpoints. Middleware and /metrics are the
// server's business.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.GetProducts)
		r.Get("/products/raw", h.GetRawProducts)
		r.Get("/stats", h.GetStats)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
	})

	return r
}

// Healthz reports process health plus which data sources are available.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"artifacts": map[string]bool{
			"raw":      fileExists(h.store.RawPath()),
			"enriched": fileExists(h.store.EnrichedPath()),
		},
		"archive": h.archive != nil,
	})
}

// GetProducts serves the enriched artifact.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.LoadEnriched()
	if err != nil {
		h.respondArtifactError(w, "enriched", err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// GetRawProducts serves the raw scrape artifact.
func (h *Handlers) GetRawProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.LoadRaw()
	if err != nil {
		h.respondArtifactError(w, "raw", err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// StatsResponse summarizes the enriched artifact.
type StatsResponse struct {
	TotalProducts        int                `json:"total_products"`
	AIProvider           string             `json:"ai_provider"`
	EnrichedAt           time.Time          `json:"enriched_at"`
	CategoryDistribution map[string]int     `json:"category_distribution"`
	PriceStats           *models.PriceStats `json:"price_stats,omitempty"`
}

// GetStats serves enrichment metadata plus price statistics recomputed from
// the enriched artifact.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.LoadEnriched()
	if err != nil {
		h.respondArtifactError(w, "enriched", err)
		return
	}

	resp := StatsResponse{
		TotalProducts:        result.Metadata.TotalProducts,
		AIProvider:           result.Metadata.AIProvider,
		EnrichedAt:           result.Metadata.EnrichedAt,
		CategoryDistribution: result.Metadata.CategoryDistribution,
	}

	products := make([]models.Product, 0, len(result.Products))
	for _, ep := range result.Products {
		products = append(products, ep.Product)
	}
	if stats, ok := models.ComputePriceStats(products); ok {
		resp.PriceStats = &stats
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ListRuns serves the most recent archived runs.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	runs, err := h.archive.RecentRuns(r.Context(), recentRunsLimit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*database.Run{}
	}

	h.respondJSON(w, http.StatusOK, runs)
}

// RunResponse pairs an archived run with its products.
type RunResponse struct {
	Run      *database.Run         `json:"run"`
	Products []database.RunProduct `json:"products"`
}

// GetRun serves one archived run with its products.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := h.archive.GetRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "error", err, "run_id", runID)
		h.respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	products, err := h.archive.RunProducts(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run products", "error", err, "run_id", runID)
		h.respondError(w, http.StatusInternalServerError, "failed to get run products")
		return
	}
	if products == nil {
		products = []database.RunProduct{}
	}

	h.respondJSON(w, http.StatusOK, RunResponse{Run: run, Products: products})
}

func (h *Handlers) respondArtifactError(w http.ResponseWriter, artifact string, err error) {
	if errors.Is(err, storage.ErrArtifactMissing) {
		h.respondError(w, http.StatusNotFound, artifact+" artifact not found, run the pipeline first")
		return
	}
	h.logger.Error("failed to load artifact", "artifact", artifact, "error", err)
	h.respondError(w, http.StatusInternalServerError, "failed to load "+artifact+" artifact")
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
