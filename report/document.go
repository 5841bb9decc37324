package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tesla-finder/models"
	"tesla-finder/services"
	"tesla-finder/utils"
)

// PlaceholderImage is used for listings without an image; %d is the
// listing's position.
const PlaceholderImage = "https://placehold.co/400x300/1f2937/ffffff?text=Tesla+Image+%d"

// NoURL is shown when a listing has no detail page link.
const NoURL = "No direct URL available"

// OtherModel labels listings that match no known model.
const OtherModel = "Other"

// Document is the structured projection of a digest. Field names are
// stable across runs; listings are in ranked order.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Listings []Entry  `json:"listings"`
}

type Metadata struct {
	RunID              string        `json:"runId"`
	GeneratedAt        string        `json:"generatedAt"`
	TotalListings      int           `json:"totalListings"`
	SourcesAnalyzed    int           `json:"sourcesAnalyzed"`
	SourcesFailed      int           `json:"sourcesFailed"`
	GlobalPriceRange   string        `json:"globalPriceRange"`
	AvailableModels    []string      `json:"availableModels"`
	AvailableLocations []string      `json:"availableLocations"`
	SourceURLs         []string      `json:"sourceUrls"`
	Failures           []Failure     `json:"failures"`
	SortingCriteria    string        `json:"sortingCriteria"`
	TopLimit           int           `json:"topLimit"`
	Summary            string        `json:"summary"`
	PriceStats         Stats         `json:"priceStats"`
	MileageStats       Stats         `json:"mileageStats"`
	ModelDistribution  []ModelCount  `json:"modelDistribution"`
	SourceBreakdown    []SourceStats `json:"sourceBreakdown"`
}

type Failure struct {
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
	Attempts   int    `json:"attempts"`
	OccurredAt string `json:"occurredAt"`
}

type Stats struct {
	Min     *int64 `json:"min"`
	Max     *int64 `json:"max"`
	Average *int64 `json:"average"`
}

type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

type SourceStats struct {
	Source         string `json:"source"`
	ListingCount   int    `json:"listingCount"`
	AveragePrice   *int64 `json:"averagePrice"`
	MedianPrice    *int64 `json:"medianPrice"`
	MinPrice       *int64 `json:"minPrice"`
	MaxPrice       *int64 `json:"maxPrice"`
	AverageMileage *int64 `json:"averageMileage"`
}

type Entry struct {
	ID             int     `json:"id"`
	Top            bool    `json:"top"`
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	PriceNumeric   *int64  `json:"priceNumeric"`
	Currency       string  `json:"currency"`
	Year           *int    `json:"year"`
	YearLabel      string  `json:"yearLabel"`
	Mileage        string  `json:"mileage"`
	MileageNumeric *int64  `json:"mileageNumeric"`
	Location       string  `json:"location"`
	URL            string  `json:"url"`
	SourceURL      string  `json:"sourceUrl"`
	Source         string  `json:"source"`
	ImageURL       string  `json:"imageUrl"`
	HasImage       bool    `json:"hasImage"`
	ModelLabel     string  `json:"modelLabel"`
	BalanceScore   float64 `json:"balanceScore"`
	BalanceRating  string  `json:"balanceRating"`
	PriceZScore    float64 `json:"priceZScore"`
	YearZScore     float64 `json:"yearZScore"`
	MileageZScore  float64 `json:"mileageZScore"`
}

// LinkText is what a report shows for the listing's URL.
func (e Entry) LinkText() string {
	if e.URL == "" {
		return NoURL
	}
	return e.URL
}

// BuildDocument projects s into a Document. It reads s but never
// modifies it or the listings it references.
func BuildDocument(s *models.ConsolidatedSummary) Document {
	vocab := make([]string, len(s.Models))
	copy(vocab, s.Models)
	sort.SliceStable(vocab, func(i, j int) bool { return len(vocab[i]) > len(vocab[j]) })

	meta := Metadata{
		RunID:              s.RunID.String(),
		GeneratedAt:        s.AnalyzedAt.UTC().Format(time.RFC3339),
		TotalListings:      s.TotalListings,
		SourcesAnalyzed:    len(s.SourceURLs),
		SourcesFailed:      len(s.Failures),
		GlobalPriceRange:   s.PriceRange,
		AvailableModels:    nonNil(s.Models),
		AvailableLocations: nonNil(s.Locations),
		SourceURLs:         nonNil(s.SourceURLs),
		Failures:           make([]Failure, 0, len(s.Failures)),
		SortingCriteria:    services.SortingCriteria,
		TopLimit:           s.Limit,
		Summary:            s.Summary,
	}
	for _, f := range s.Failures {
		meta.Failures = append(meta.Failures, Failure{
			URL:        f.URL,
			Kind:       string(f.Kind),
			Detail:     f.Detail,
			Attempts:   f.Attempts,
			OccurredAt: f.OccurredAt.UTC().Format(time.RFC3339),
		})
	}

	scores := services.ScoreBalance(s.RankedListings)
	entries := make([]Entry, 0, len(s.RankedListings))

	modelCounts := make(map[string]int)
	type sourceAcc struct {
		count    int
		prices   []int64
		mileages []int64
	}
	var sourceOrder []string
	sources := make(map[string]*sourceAcc)
	var prices, mileages []int64

	for i, l := range s.RankedListings {
		model := services.MatchModel(l.Title, vocab)
		if model == "" {
			model = OtherModel
		}
		modelCounts[model]++

		source := utils.Domain(l.SourceURL)
		if source == "" {
			source = "unattributed"
		}
		acc, ok := sources[source]
		if !ok {
			acc = &sourceAcc{}
			sources[source] = acc
			sourceOrder = append(sourceOrder, source)
		}
		acc.count++
		if l.Price.Amount != nil {
			acc.prices = append(acc.prices, *l.Price.Amount)
			prices = append(prices, *l.Price.Amount)
		}
		if l.MileageKm != nil {
			acc.mileages = append(acc.mileages, *l.MileageKm)
			mileages = append(mileages, *l.MileageKm)
		}

		e := Entry{
			ID:             i + 1,
			Top:            i < len(s.TopListings),
			Title:          l.Title,
			Price:          l.PriceLabel(),
			PriceNumeric:   l.Price.Amount,
			Currency:       l.Price.Currency,
			Year:           l.Year,
			YearLabel:      l.YearLabel(),
			Mileage:        l.MileageLabel(),
			MileageNumeric: l.MileageKm,
			Location:       l.Location,
			URL:            l.URL,
			SourceURL:      l.SourceURL,
			Source:         source,
			ImageURL:       l.ImageURL,
			HasImage:       l.ImageURL != "",
			ModelLabel:     model,
		}
		if !e.HasImage {
			e.ImageURL = fmt.Sprintf(PlaceholderImage, i+1)
		}
		if i < len(scores) {
			e.BalanceScore = round2(scores[i].Composite)
			e.BalanceRating = scores[i].Rating
			e.PriceZScore = round2(scores[i].PriceZ)
			e.YearZScore = round2(scores[i].YearZ)
			e.MileageZScore = round2(scores[i].MileageZ)
		}
		entries = append(entries, e)
	}

	meta.PriceStats = stats(prices)
	meta.MileageStats = stats(mileages)

	for _, m := range s.Models {
		if modelCounts[m] > 0 {
			meta.ModelDistribution = append(meta.ModelDistribution, ModelCount{Model: m, Count: modelCounts[m]})
		}
	}
	meta.ModelDistribution = append(meta.ModelDistribution, ModelCount{Model: OtherModel, Count: modelCounts[OtherModel]})

	meta.SourceBreakdown = make([]SourceStats, 0, len(sourceOrder))
	for _, name := range sourceOrder {
		acc := sources[name]
		ps := stats(acc.prices)
		meta.SourceBreakdown = append(meta.SourceBreakdown, SourceStats{
			Source:         name,
			ListingCount:   acc.count,
			AveragePrice:   ps.Average,
			MedianPrice:    median(acc.prices),
			MinPrice:       ps.Min,
			MaxPrice:       ps.Max,
			AverageMileage: stats(acc.mileages).Average,
		})
	}
	sort.SliceStable(meta.SourceBreakdown, func(i, j int) bool {
		return meta.SourceBreakdown[i].ListingCount > meta.SourceBreakdown[j].ListingCount
	})

	return Document{Metadata: meta, Listings: entries}
}

// TopEntries returns the entries that belong to the top-N.
func (d Document) TopEntries() []Entry {
	n := 0
	for n < len(d.Listings) && d.Listings[n].Top {
		n++
	}
	return d.Listings[:n]
}

// WriteJSON writes doc to path, creating parent directories.
func WriteJSON(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return f.Close()
}

func stats(values []int64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	lo, hi, sum := values[0], values[0], float64(0)
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
	}
	avg := int64(math.Round(sum / float64(len(values))))
	return Stats{Min: &lo, Max: &hi, Average: &avg}
}

func median(values []int64) *int64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	m := sorted[mid]
	if len(sorted)%2 == 0 {
		m = int64(math.Round(float64(sorted[mid-1]+sorted[mid]) / 2))
	}
	return &m
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
