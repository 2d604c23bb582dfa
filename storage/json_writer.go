package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finn-deal-finder/models"
)

const exportSource = "FINN Deal Finder"

// JSONExport is the document written by the JSON exporter.
type JSONExport struct {
	ExportInfo JSONExportInfo         `json:"exportInfo"`
	Statistics models.PriceStats      `json:"statistics"`
	Items      []models.ScoredListing `json:"items"`
}

type JSONExportInfo struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	TotalItems  int             `json:"totalItems"`
	Category    models.Category `json:"category,omitempty"`
	SearchURL   string          `json:"searchUrl,omitempty"`
	Source      string          `json:"source"`
}

// JSONWriter writes each result as an indented JSON document, replacing
// the previous file contents.
type JSONWriter struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewJSONWriter prepares a writer for path, creating its directory.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{path: path, now: time.Now}, nil
}

func (j *JSONWriter) Write(_ context.Context, result *models.SearchResult, category models.Category) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Create(j.path)
	if err != nil {
		return fmt.Errorf("json: create file %q: %w", j.path, err)
	}
	if err := WriteJSON(f, result, category, j.now()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (j *JSONWriter) Close() error { return nil }

// WriteJSON renders result as a JSON export document.
func WriteJSON(w io.Writer, result *models.SearchResult, category models.Category, generatedAt time.Time) error {
	doc := JSONExport{
		ExportInfo: JSONExportInfo{
			GeneratedAt: generatedAt.UTC(),
			Category:    category,
			Source:      exportSource,
		},
		Items: []models.ScoredListing{},
	}
	if result != nil {
		doc.ExportInfo.TotalItems = len(result.Listings)
		doc.ExportInfo.SearchURL = result.SearchURL
		doc.Statistics = result.Stats
		if result.Listings != nil {
			doc.Items = result.Listings
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("json: encode export: %w", err)
	}
	return nil
}
