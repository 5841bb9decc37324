package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// DefaultModelVocabulary lists the model names looked for in titles.
var DefaultModelVocabulary = []string{
	"Model 3", "Model 3 Highland", "Model S", "Model X", "Model Y", "Cybertruck",
}

// Summarizer produces the narrative text of a digest. Implementations live
// in package summarizer; the aggregator only needs the text.
type Summarizer interface {
	Summarize(ctx context.Context, s *models.ConsolidatedSummary) (string, error)
}

// AggregateOptions configures one Aggregator.
type AggregateOptions struct {
	Limit      int
	Vocabulary []string
	Now        func() time.Time
}

// Aggregator merges per-source results into a ConsolidatedSummary.
type Aggregator struct {
	logger     *utils.Logger
	limit      int
	vocabulary []string
	summarizer Summarizer
	now        func() time.Time
}

// NewAggregator creates an Aggregator. A nil summarizer leaves the
// narrative to the built-in one-line fallback.
func NewAggregator(logger *utils.Logger, opts AggregateOptions, summarizer Summarizer) *Aggregator {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	vocab := opts.Vocabulary
	if len(vocab) == 0 {
		vocab = DefaultModelVocabulary
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		logger:     logger,
		limit:      limit,
		vocabulary: longestFirst(vocab),
		summarizer: summarizer,
		now:        now,
	}
}

// Aggregate concatenates the records of every successful source in the
// order results are given, computes statistics over that unsorted set and
// ranks it. It never fails: zero listings produce sentinel values.
func (a *Aggregator) Aggregate(ctx context.Context, results []models.SourceResult) *models.ConsolidatedSummary {
	s := &models.ConsolidatedSummary{
		RunID:      uuid.New(),
		SourceURLs: make([]string, 0, len(results)),
		Failures:   []*models.FailureDescriptor{},
		Limit:      a.limit,
		AnalyzedAt: a.now().UTC(),
	}

	all := make([]*models.Listing, 0)
	for _, r := range results {
		s.SourceURLs = append(s.SourceURLs, r.URL)
		if r.Failure != nil {
			s.Failures = append(s.Failures, r.Failure)
		}
		all = append(all, r.Records...)
	}

	s.AllListings = all
	s.TotalListings = len(all)
	s.MinPrice, s.MaxPrice, s.PriceRange = priceRange(all)
	s.Models = a.distinctModels(all)
	s.Locations = distinctLocations(all)
	s.RankedListings = SortAll(all)
	s.TopListings = s.RankedListings[:min(a.limit, len(s.RankedListings))]

	if s.TotalListings == 0 {
		s.Summary = models.NoListings
		a.logger.Warn("[aggregator] No listings from %d sources (%d failed)", len(results), len(s.Failures))
		return s
	}

	s.Summary = a.narrative(ctx, s)
	a.logger.Info("[aggregator] %d listings from %d/%d sources | range %s | top %d",
		s.TotalListings, s.SucceededSources(), len(s.SourceURLs), s.PriceRange, len(s.TopListings))
	return s
}

func (a *Aggregator) narrative(ctx context.Context, s *models.ConsolidatedSummary) string {
	if a.summarizer != nil {
		text, err := a.summarizer.Summarize(ctx, s)
		switch {
		case err != nil:
			a.logger.Warn("[aggregator] Summarizer unavailable, using short summary: %v", err)
		case strings.TrimSpace(text) == "":
			a.logger.Warn("[aggregator] Summarizer returned an empty summary, using short summary")
		default:
			return text
		}
	}
	return fmt.Sprintf("Found %d Tesla listings across %d sources. Price range: %s",
		s.TotalListings, len(s.SourceURLs), s.PriceRange)
}

// ModelFor returns the vocabulary entry found in title, or "".
func (a *Aggregator) ModelFor(title string) string {
	return MatchModel(title, a.vocabulary)
}

func (a *Aggregator) distinctModels(all []*models.Listing) []string {
	set := make(map[string]struct{})
	for _, l := range all {
		if m := a.ModelFor(l.Title); m != "" {
			set[m] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func distinctLocations(all []*models.Listing) []string {
	set := make(map[string]struct{})
	for _, l := range all {
		if l.Location != "" {
			set[l.Location] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// priceRange finds the cheapest and dearest known prices and formats them
// as "AED 45,000 - AED 120,000". Each end carries its own currency tag.
func priceRange(all []*models.Listing) (*int64, *int64, string) {
	var lo, hi *models.Listing
	for _, l := range all {
		if l.Price.Amount == nil {
			continue
		}
		if lo == nil || *l.Price.Amount < *lo.Price.Amount {
			lo = l
		}
		if hi == nil || *l.Price.Amount > *hi.Price.Amount {
			hi = l
		}
	}
	if lo == nil {
		return nil, nil, models.NoPricingData
	}
	text := fmt.Sprintf("%s %s - %s %s",
		lo.Price.Currency, humanize.Comma(*lo.Price.Amount),
		hi.Price.Currency, humanize.Comma(*hi.Price.Amount))
	return lo.Price.Amount, hi.Price.Amount, text
}

// MatchModel returns the first vocabulary entry contained in title,
// case-insensitively and not followed by a letter or digit. Pass the
// vocabulary longest-first so "Model 3 Highland" wins over "Model 3".
func MatchModel(title string, vocabulary []string) string {
	lower := strings.ToLower(title)
	for _, model := range vocabulary {
		needle := strings.ToLower(model)
		from := 0
		for {
			idx := strings.Index(lower[from:], needle)
			if idx < 0 {
				break
			}
			end := from + idx + len(needle)
			if end == len(lower) || !isWordRune(lower[end:]) {
				return model
			}
			from = from + idx + 1
		}
	}
	return ""
}

func isWordRune(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func longestFirst(vocab []string) []string {
	out := make([]string, len(vocab))
	copy(out, vocab)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
