package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tesla-finder/models"
)

func listing(title, source string, price, mileage int64, year int) *models.Listing {
	l := &models.Listing{
		Title:     title,
		Price:     models.Price{Currency: "AED", Display: "Call for price"},
		SourceURL: source,
	}
	if price >= 0 {
		l.Price.Amount = &price
		l.Price.Display = ""
	}
	if mileage >= 0 {
		l.MileageKm = &mileage
	}
	if year > 0 {
		l.Year = &year
	}
	return l
}

func sampleSummary() *models.ConsolidatedSummary {
	ranked := []*models.Listing{
		listing("Tesla Model 3 Highland", "https://www.dubizzle.com/tesla", 150000, 5000, 2024),
		listing("Tesla Model 3", "https://www.dubizzle.com/tesla", 90000, 40000, 2021),
		listing("Tesla Model Y", "https://carswitch.com/uae", 120000, 30000, 2022),
		listing("Tesla Roadster", "https://carswitch.com/uae", -1, -1, 0),
		listing("Tesla Model S", "https://www.dubizzle.com/tesla", 100000, -1, 2020),
	}
	ranked[0].URL = "https://dubizzle.com/car/1"
	ranked[0].ImageURL = "https://img.example/1.jpg"
	ranked[0].Location = "Dubai"

	return &models.ConsolidatedSummary{
		RunID:      uuid.MustParse("7f8c5a1e-2b3d-4e5f-8a9b-0c1d2e3f4a5b"),
		SourceURLs: []string{"https://www.dubizzle.com/tesla", "https://carswitch.com/uae", "https://kavak.com/ae"},
		Failures: []*models.FailureDescriptor{{
			URL: "https://kavak.com/ae", Kind: models.FailureTimeout, Detail: "no answer", Attempts: 3,
			OccurredAt: time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC),
		}},
		TotalListings:  5,
		PriceRange:     "AED 90,000 - AED 150,000",
		Models:         []string{"Model 3", "Model 3 Highland", "Model S", "Model Y"},
		Locations:      []string{"Dubai"},
		Limit:          2,
		TopListings:    ranked[:2],
		RankedListings: ranked,
		AllListings:    ranked,
		Summary:        "Found 5 Tesla listings.",
		AnalyzedAt:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.FixedZone("GST", 4*3600)),
	}
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(sampleSummary())
	m := doc.Metadata

	if m.GeneratedAt != "2025-06-01T06:00:00Z" {
		t.Errorf("GeneratedAt = %s; want RFC 3339 UTC", m.GeneratedAt)
	}
	if m.SourcesAnalyzed != 3 || m.SourcesFailed != 1 || len(m.Failures) != 1 {
		t.Errorf("sources = %d analysed, %d failed", m.SourcesAnalyzed, m.SourcesFailed)
	}
	if *m.PriceStats.Min != 90000 || *m.PriceStats.Max != 150000 || *m.PriceStats.Average != 115000 {
		t.Errorf("PriceStats = %d/%d/%d", *m.PriceStats.Min, *m.PriceStats.Max, *m.PriceStats.Average)
	}
	if *m.MileageStats.Average != 25000 {
		t.Errorf("MileageStats.Average = %d; want 25000", *m.MileageStats.Average)
	}

	wantModels := map[string]int{"Model 3": 1, "Model 3 Highland": 1, "Model S": 1, "Model Y": 1, OtherModel: 1}
	if len(m.ModelDistribution) != len(wantModels) {
		t.Fatalf("ModelDistribution = %+v", m.ModelDistribution)
	}
	for _, mc := range m.ModelDistribution {
		if wantModels[mc.Model] != mc.Count {
			t.Errorf("model %s count = %d; want %d", mc.Model, mc.Count, wantModels[mc.Model])
		}
	}

	if len(m.SourceBreakdown) != 2 || m.SourceBreakdown[0].Source != "dubizzle.com" || m.SourceBreakdown[0].ListingCount != 3 {
		t.Fatalf("SourceBreakdown = %+v", m.SourceBreakdown)
	}
	if *m.SourceBreakdown[0].MedianPrice != 100000 {
		t.Errorf("dubizzle median = %d; want 100000", *m.SourceBreakdown[0].MedianPrice)
	}
	if *m.SourceBreakdown[1].MedianPrice != 120000 || m.SourceBreakdown[1].AverageMileage == nil {
		t.Errorf("carswitch breakdown = %+v", m.SourceBreakdown[1])
	}

	if len(doc.Listings) != 5 || len(doc.TopEntries()) != 2 {
		t.Fatalf("listings = %d, top = %d", len(doc.Listings), len(doc.TopEntries()))
	}
	roadster := doc.Listings[3]
	if roadster.Price != "Call for price" || roadster.Mileage != "Mileage unknown" || roadster.YearLabel != "Year unknown" {
		t.Errorf("roadster labels = %q / %q / %q", roadster.Price, roadster.Mileage, roadster.YearLabel)
	}
	if roadster.ImageURL != "https://placehold.co/400x300/1f2937/ffffff?text=Tesla+Image+4" || roadster.HasImage {
		t.Errorf("roadster image = %q", roadster.ImageURL)
	}
	if roadster.ModelLabel != OtherModel || roadster.LinkText() != NoURL {
		t.Errorf("roadster model/link = %q / %q", roadster.ModelLabel, roadster.LinkText())
	}
	if doc.Listings[0].ModelLabel != "Model 3 Highland" || doc.Listings[0].Price != "AED 150,000" {
		t.Errorf("first entry = %+v", doc.Listings[0])
	}
}

func TestBuildDocumentEmpty(t *testing.T) {
	doc := BuildDocument(&models.ConsolidatedSummary{
		SourceURLs: []string{"https://a.example/"},
		PriceRange: models.NoPricingData,
		Summary:    models.NoListings,
	})
	if doc.Metadata.PriceStats.Min != nil || len(doc.Listings) != 0 {
		t.Errorf("empty document = %+v", doc)
	}
	if len(doc.Metadata.ModelDistribution) != 1 || doc.Metadata.ModelDistribution[0].Model != OtherModel {
		t.Errorf("ModelDistribution = %+v; want only Other", doc.Metadata.ModelDistribution)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, doc); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), models.NoListings) {
		t.Error("empty HTML report should state that nothing was found")
	}
	buf.Reset()
	RenderText(&buf, doc)
	if !strings.Contains(buf.String(), models.NoListings) {
		t.Error("empty text report should state that nothing was found")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "listings.json")
	if err := WriteJSON(path, BuildDocument(sampleSummary())); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		Metadata map[string]any `json:"metadata"`
		Listings []any          `json:"listings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"generatedAt", "totalListings", "globalPriceRange", "priceStats", "modelDistribution", "sourceBreakdown"} {
		if _, ok := raw.Metadata[key]; !ok {
			t.Errorf("metadata missing %q", key)
		}
	}
	if len(raw.Listings) != 5 {
		t.Errorf("listings = %d; want 5", len(raw.Listings))
	}
	if !strings.Contains(string(data), "?text=Tesla+Image+4") {
		t.Error("placeholder image URL should be written unescaped")
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, BuildDocument(sampleSummary())); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Tesla Model 3 Highland",
		`href="https://dubizzle.com/car/1"`,
		"https://img.example/1.jpg",
		NoURL,
		"AED 90,000 - AED 150,000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(out, "Tesla Roadster") {
		t.Error("HTML should only show the top listings")
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	RenderText(&buf, BuildDocument(sampleSummary()))
	out := buf.String()
	for _, want := range []string{"TESLA MARKET DIGEST", "Tesla Model 3 Highland", "https://kavak.com/ae", "dubizzle.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}
