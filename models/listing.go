package models

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// RawListing holds the untyped fields captured for one listing by an
// extraction collaborator. It is written to CSV before any normalisation.
type RawListing struct {
	Title      string    `json:"title" validate:"required"`
	RawPrice   string    `json:"price"`
	RawMileage string    `json:"mileage"`
	RawYear    string    `json:"year"`
	Location   string    `json:"location"`
	URL        string    `json:"url" validate:"omitempty,url"`
	ImageURL   string    `json:"image_url"`
	SourceURL  string    `json:"source_url"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// Price is a normalised asking price. Amount is nil when the text held no
// number ("Call for price"); Display always keeps the captured text.
type Price struct {
	Amount   *int64 `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// Known reports whether the price text parsed to an amount.
func (p Price) Known() bool { return p.Amount != nil }

// Listing is the canonical car listing. Nil pointers mean "unknown" and are
// never coerced to zero. A Listing is not modified after the normaliser
// builds it; ranking and aggregation only reorder or copy pointers.
type Listing struct {
	Title          string `json:"title"`
	Price          Price  `json:"price"`
	MileageKm      *int64 `json:"mileage_km"`
	MileageDisplay string `json:"mileage_display,omitempty"`
	Year           *int   `json:"year"`
	Location       string `json:"location,omitempty"`
	URL            string `json:"url"`
	SourceURL      string `json:"source_url"`
	ImageURL       string `json:"image_url,omitempty"`
}

// PriceLabel is the human text for the price: the captured text, or a
// formatted amount when the captured text was empty.
func (l *Listing) PriceLabel() string {
	if l.Price.Display != "" {
		return l.Price.Display
	}
	if l.Price.Amount != nil {
		return l.Price.Currency + " " + humanize.Comma(*l.Price.Amount)
	}
	return "Price unavailable"
}

// MileageLabel renders mileage or "Mileage unknown".
func (l *Listing) MileageLabel() string {
	if l.MileageKm == nil {
		return "Mileage unknown"
	}
	if l.MileageDisplay != "" {
		return l.MileageDisplay
	}
	return humanize.Comma(*l.MileageKm) + " km"
}

// YearLabel renders the model year or "Year unknown".
func (l *Listing) YearLabel() string {
	if l.Year == nil {
		return "Year unknown"
	}
	return strconv.Itoa(*l.Year)
}

// BalanceScore is the z-score "sweet spot" analysis of one listing relative
// to the rest of a digest. Lower Composite is closer to the ideal.
type BalanceScore struct {
	PriceZ    float64 `json:"price_z"`
	YearZ     float64 `json:"year_z"`
	MileageZ  float64 `json:"mileage_z"`
	Composite float64 `json:"composite"`
	Rating    string  `json:"rating"`
}
