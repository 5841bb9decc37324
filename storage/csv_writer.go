package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tesla-finder/models"
)

var rawHeader = []string{
	"source_url", "title", "raw_price", "raw_mileage", "raw_year", "location", "url", "image_url", "scraped_at",
}

// CSVWriter writes raw (unnormalised) listings to a CSV file.
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

	w := csv.NewWriter(f)
	if err := w.Write(rawHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends raw listings exactly as the extractor captured them.
func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if l == nil {
			continue
		}
		scrapedAt := ""
		if !l.ScrapedAt.IsZero() {
			scrapedAt = l.ScrapedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			l.SourceURL,
			l.Title,
			l.RawPrice,
			l.RawMileage,
			l.RawYear,
			l.Location,
			l.URL,
			l.ImageURL,
			scrapedAt,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
