package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel text used when a digest has nothing to report.
const (
	NoPricingData = "No pricing data available"
	NoListings    = "No Tesla listings found from any source."
)

var (
	// ErrNoURLs is returned when a digest is started without any source URL.
	ErrNoURLs = errors.New("no source URLs configured")
	// ErrEmptyOutput means a collaborator answered but produced no listings.
	ErrEmptyOutput = errors.New("extraction returned no listings")
	// ErrMalformedOutput means a collaborator answered with an unusable shape.
	ErrMalformedOutput = errors.New("extraction returned malformed output")
)

// FailureKind classifies a source-level failure.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureCancelled  FailureKind = "cancelled"
	FailureExtraction FailureKind = "extraction"
	FailureMalformed  FailureKind = "malformed_output"
	FailureEmpty      FailureKind = "empty_output"
)

// FailureDescriptor records why one source produced no usable listings.
// It is an error so callers can still wrap or compare it.
type FailureDescriptor struct {
	URL        string      `json:"url"`
	Kind       FailureKind `json:"kind"`
	Detail     string      `json:"detail"`
	Attempts   int         `json:"attempts"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (f *FailureDescriptor) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.URL, f.Kind, f.Detail)
}

// SourceResult is the outcome of extracting one source URL. Records is
// empty (never nil) when Failure is set.
type SourceResult struct {
	URL      string             `json:"url"`
	Records  []*Listing         `json:"records"`
	Failure  *FailureDescriptor `json:"failure,omitempty"`
	Dropped  int                `json:"dropped"`
	Duration time.Duration      `json:"duration"`
}

// OK reports whether the source produced listings without failure.
func (r SourceResult) OK() bool { return r.Failure == nil }

// ConsolidatedSummary is the read-only result of one digest run.
// AllListings keeps the unsorted, submission-ordered records the
// statistics were computed from; RankedListings is the full ranked order
// and TopListings its first Limit entries.
type ConsolidatedSummary struct {
	RunID          uuid.UUID            `json:"run_id"`
	SourceURLs     []string             `json:"source_urls"`
	Failures       []*FailureDescriptor `json:"failures"`
	TotalListings  int                  `json:"total_listings_found"`
	PriceRange     string               `json:"global_price_range"`
	MinPrice       *int64               `json:"min_price"`
	MaxPrice       *int64               `json:"max_price"`
	Models         []string             `json:"all_models"`
	Locations      []string             `json:"all_locations"`
	Limit          int                  `json:"limit"`
	TopListings    []*Listing           `json:"top_cheapest_cars"`
	RankedListings []*Listing           `json:"all_sorted_listings"`
	AllListings    []*Listing           `json:"-"`
	Summary        string               `json:"summary"`
	AnalyzedAt     time.Time            `json:"analyzed_at"`
}

// SucceededSources counts sources without a failure descriptor.
func (s *ConsolidatedSummary) SucceededSources() int {
	return len(s.SourceURLs) - len(s.Failures)
}
