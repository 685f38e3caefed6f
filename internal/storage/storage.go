// Package storage persists run artifacts as JSON files on disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/models"
)

var ErrArtifactMissing = errors.New("artifact file missing")

// Store reads and writes the raw and enriched product artifacts.
type Store struct {
	rawPath      string
	enrichedPath string
}

func New(rawPath, enrichedPath string) *Store {
	return &Store{
		rawPath:      rawPath,
		enrichedPath: enrichedPath,
	}
}

func (s *Store) RawPath() string      { return s.rawPath }
func (s *Store) EnrichedPath() string { return s.enrichedPath }

func (s *Store) SaveRaw(result *models.RawResult) error {
	return writeJSON(s.rawPath, result)
}

// LoadRaw reads the raw artifact back. A missing file is reported as
// ErrArtifactMissing so callers can treat it as fatal input absence.
func (s *Store) LoadRaw() (*models.RawResult, error) {
	var result models.RawResult
	if err := readJSON(s.rawPath, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) SaveEnriched(result *models.EnrichedResult) error {
	return writeJSON(s.enrichedPath, result)
}

func (s *Store) LoadEnriched() (*models.EnrichedResult, error) {
	var result models.EnrichedResult
	if err := readJSON(s.enrichedPath, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// writeJSON writes to a temp file and renames it into place so readers
// never observe a half-written artifact.
func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	return nil
}
