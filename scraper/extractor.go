package scraper

import (
	"context"

	"tesla-finder/models"
)

// DefaultInstructions is handed to every extraction collaborator. Browser
// and static extractors ignore it; the extraction service uses it as the
// task description.
const DefaultInstructions = `Fetch the page with JavaScript rendering enabled and extract every individual Tesla listing.
For each listing return: title, price (as displayed, with currency), mileage (as displayed, e.g. "45,000 km", "28K miles", "30,000"),
year, location, the direct URL of the listing's detail page, and the main image URL.
Leave a field empty when the page does not show it. Do not invent values.`

// Extractor acquires a page and interprets it into raw listing fields.
// Implementations must honour ctx cancellation and must not normalise
// values: normalisation is the adapter's job.
type Extractor interface {
	FetchAndInterpret(ctx context.Context, url, instructions string) ([]*models.RawListing, error)
}

// ExtractorFunc lets a plain function act as an Extractor.
type ExtractorFunc func(ctx context.Context, url, instructions string) ([]*models.RawListing, error)

func (f ExtractorFunc) FetchAndInterpret(ctx context.Context, url, instructions string) ([]*models.RawListing, error) {
	return f(ctx, url, instructions)
}

// cardData is the shape both the browser script and the service return.
type cardData struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Mileage  string `json:"mileage"`
	Year     string `json:"year"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Image    string `json:"image"`
}

func (c cardData) raw(sourceURL string) *models.RawListing {
	return &models.RawListing{
		Title:      c.Title,
		RawPrice:   c.Price,
		RawMileage: c.Mileage,
		RawYear:    c.Year,
		Location:   c.Location,
		URL:        c.URL,
		ImageURL:   c.Image,
		SourceURL:  sourceURL,
	}
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
