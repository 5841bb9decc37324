package storage

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"tesla-finder/models"
	"tesla-finder/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, false) }

func TestCSVWriterWritesRawFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	err = w.WriteRaw([]*models.RawListing{
		{Title: "Tesla Model 3, Long Range", RawPrice: "AED 89,900", RawMileage: "45,000 km", RawYear: "2021",
			URL: "https://dubizzle.com/car/1", SourceURL: "https://dubizzle.com/", ScrapedAt: at},
		nil,
		{Title: "Tesla Model Y", RawPrice: "Call for price"},
	})
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "Tesla Model 3, Long Range" || rows[1][2] != "AED 89,900" || rows[1][3] != "45,000 km" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[1][8] != "2025-06-01T10:00:00Z" {
		t.Errorf("scraped_at = %q", rows[1][8])
	}
	if rows[2][8] != "" {
		t.Errorf("zero scraped_at should be empty, got %q", rows[2][8])
	}
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	c, err := NewCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour, newTestLogger())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer c.Close()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok := c.Get(ctx, "https://kavak.com/ae/preowned"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set(ctx, "https://kavak.com/ae/preowned", []*models.RawListing{
		{Title: "Tesla Model 3", RawPrice: "AED 99,000"},
	})

	got, ok := c.Get(ctx, "https://KAVAK.com/ae/preowned/")
	if !ok || len(got) != 1 || got[0].RawPrice != "AED 99,000" {
		t.Fatalf("Get = %v, %v; want the stored listing", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "https://kavak.com/ae/preowned"); ok {
		t.Error("entry older than the TTL should miss")
	}
}

func TestNewDigestCompleted(t *testing.T) {
	lo, hi := int64(45000), int64(180000)
	s := &models.ConsolidatedSummary{
		RunID:         uuid.New(),
		SourceURLs:    []string{"https://a.example/", "https://b.example/"},
		Failures:      []*models.FailureDescriptor{{URL: "https://a.example/", Kind: models.FailureTimeout}},
		TotalListings: 2,
		PriceRange:    "AED 45,000 - AED 180,000",
		MinPrice:      &lo,
		MaxPrice:      &hi,
		TopListings:   []*models.Listing{{Title: "x", URL: "https://b.example/1"}, {Title: "y"}},
	}

	ev := NewDigestCompleted(s)
	if ev.RunID != s.RunID.String() {
		t.Errorf("RunID = %s", ev.RunID)
	}
	if ev.SucceededSources != 1 || len(ev.FailedSources) != 1 {
		t.Errorf("succeeded = %d, failed = %v", ev.SucceededSources, ev.FailedSources)
	}
	if len(ev.TopURLs) != 1 || ev.TopURLs[0] != "https://b.example/1" {
		t.Errorf("TopURLs = %v", ev.TopURLs)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(12, 3); got != "($13,$14,$15)" {
		t.Errorf("placeholders(12, 3) = %q", got)
	}
}
