package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"finn-deal-finder/models"
)

// utf8BOM makes spreadsheet tools read æ, ø and å correctly.
const utf8BOM = "\xEF\xBB\xBF"

var csvHeader = []string{
	"id", "title", "price", "location", "url",
	"deal_score", "deal_band", "price_unknown", "average_price", "savings",
}

// CSVWriter writes scored listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w, err := startCSV(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends every listing of result to the file.
func (c *CSVWriter) Write(_ context.Context, result *models.SearchResult, _ models.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeRows(c.writer, result)
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteCSV renders result as a complete CSV document, header included.
func WriteCSV(w io.Writer, result *models.SearchResult) error {
	cw, err := startCSV(w)
	if err != nil {
		return err
	}
	return writeRows(cw, result)
}

func startCSV(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return nil, fmt.Errorf("csv: write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	return cw, cw.Error()
}

func writeRows(w *csv.Writer, result *models.SearchResult) error {
	if result == nil {
		return nil
	}

	avg := ""
	if result.Stats.Average != nil {
		avg = strconv.FormatFloat(*result.Stats.Average, 'f', 2, 64)
	}

	for _, l := range result.Listings {
		row := []string{
			safeCell(l.ID),
			safeCell(l.Title),
			optInt(l.Price),
			safeCell(optString(l.Location)),
			safeCell(l.URL),
			strconv.Itoa(l.DealScore),
			string(l.DealBand),
			strconv.FormatBool(l.PriceUnknown),
			avg,
			optInt(l.Savings),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// safeCell keeps spreadsheet programs from evaluating scraped text as a
// formula.
func safeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
