package services

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// go-playground/validator/v10: struct tags on models.RawListing describe
// the minimum shape a captured listing needs to become a Listing.
var validate = validator.New()

// Rejection codes, used as metric labels.
const (
	RejectNil       = "nil"
	RejectInvalid   = "invalid"
	RejectDuplicate = "duplicate"
)

// Rejection records a raw listing the cleaner refused to build.
type Rejection struct {
	Title  string
	URL    string
	Code   string
	Reason string
}

// Cleaner turns RawListings from one source into canonical Listings.
type Cleaner struct {
	logger *utils.Logger
	opts   NormalizeOptions
}

// NewCleaner creates a Cleaner with the given logger and parser policy.
func NewCleaner(logger *utils.Logger, opts NormalizeOptions) *Cleaner {
	return &Cleaner{logger: logger, opts: opts}
}

// Clean validates, de-duplicates (by URL, within this source only) and
// normalises raw listings. Input order is preserved.
func (c *Cleaner) Clean(raw []*models.RawListing, sourceURL string) ([]*models.Listing, []Rejection) {
	seen := utils.NewURLSet()
	result := make([]*models.Listing, 0, len(raw))
	var rejected []Rejection

	for _, r := range raw {
		if r == nil {
			rejected = append(rejected, Rejection{Code: RejectNil, Reason: "nil listing"})
			continue
		}

		candidate := *r
		candidate.Title = normaliseText(candidate.Title)
		candidate.URL = resolveURL(sourceURL, candidate.URL)

		if err := validate.Struct(&candidate); err != nil {
			c.logger.Debug("[cleaner] Rejecting %q from %s: %v", candidate.Title, sourceURL, err)
			rejected = append(rejected, Rejection{Title: candidate.Title, URL: candidate.URL, Code: RejectInvalid, Reason: err.Error()})
			continue
		}

		if candidate.URL != "" && !seen.Add(candidate.URL) {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", candidate.URL)
			rejected = append(rejected, Rejection{Title: candidate.Title, URL: candidate.URL, Code: RejectDuplicate, Reason: "duplicate url"})
			continue
		}

		result = append(result, c.Build(&candidate, sourceURL))
	}

	c.logger.Info("[cleaner] %s: cleaned %d -> %d listings (dropped %d)",
		sourceURL, len(raw), len(result), len(rejected))
	return result, rejected
}

// Build normalises a single raw listing. It never fails: unparseable
// fields become absent values.
func (c *Cleaner) Build(r *models.RawListing, sourceURL string) *models.Listing {
	mileageText := normaliseText(r.RawMileage)

	listing := &models.Listing{
		Title:     normaliseText(r.Title),
		Price:     ParsePrice(r.RawPrice, c.opts),
		MileageKm: ParseMileage(mileageText, c.opts),
		Year:      ExtractYear(r.RawYear, r.Title, c.opts),
		Location:  normaliseLocation(r.Location),
		URL:       strings.TrimSpace(r.URL),
		SourceURL: sourceURL,
		ImageURL:  c.imageURL(sourceURL, r.ImageURL),
	}
	if listing.MileageKm != nil {
		listing.MileageDisplay = mileageText
	}
	return listing
}

// imageURL keeps an image only when it resolves to an absolute http(s) URL.
func (c *Cleaner) imageURL(sourceURL, raw string) string {
	resolved := resolveURL(sourceURL, raw)
	if resolved == "" {
		return ""
	}
	if err := validate.Var(resolved, "url,startswith=http"); err != nil {
		c.logger.Debug("[cleaner] Ignoring image %q: %v", raw, err)
		return ""
	}
	return resolved
}

// resolveURL makes ref absolute against base; "" stays "".
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// normaliseLocation collapses whitespace and drops placeholder values.
func normaliseLocation(s string) string {
	s = normaliseText(s)
	switch strings.ToLower(s) {
	case "", "n/a", "na", "-", "unknown":
		return ""
	}
	return s
}
