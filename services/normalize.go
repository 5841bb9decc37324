package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tesla-finder/models"
)

// KmPerMile converts statute miles to kilometres.
const KmPerMile = 1.60934

// MinVehicleYear is the earliest model year accepted from titles or fields.
const MinVehicleYear = 1990

// MileageUnit is the unit assumed for a mileage number with no unit token.
type MileageUnit string

const (
	UnitKilometers MileageUnit = "km"
	UnitMiles      MileageUnit = "mi"
)

// NormalizeOptions carries the policy knobs of the field parsers.
type NormalizeOptions struct {
	DefaultCurrency string
	// BareMileageUnit applies when mileage text has a number but no unit.
	// Kilometres by default; mile-denominated sites without a unit token
	// will be under-counted.
	BareMileageUnit MileageUnit
	// Now fixes the upper bound of plausible model years (current year + 1).
	Now func() time.Time
}

// DefaultNormalizeOptions returns AED / kilometres / wall clock.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		DefaultCurrency: "AED",
		BareMileageUnit: UnitKilometers,
		Now:             time.Now,
	}
}

func (o NormalizeOptions) maxYear() int {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().Year() + 1
}

var (
	// numberRegexp captures a numeric literal with any grouping separators.
	numberRegexp = regexp.MustCompile(`\d+(?:[.,'’]\d+|[ \x{00A0}\x{202F}]\d{3})*`)
	// suffixRegexp captures a K/M magnitude suffix directly after a number.
	suffixRegexp = regexp.MustCompile(`^\s*([kKmM])(?:[^\p{L}]|$)`)
	// digitRunRegexp finds maximal digit runs; year candidates are the
	// runs of exactly four.
	digitRunRegexp = regexp.MustCompile(`\d+`)

	kmRegexp    = regexp.MustCompile(`(?i)\b(?:km|kms|kilomet(?:er|re)s?)\b`)
	milesRegexp = regexp.MustCompile(`(?i)\b(?:mi|miles?)\b`)

	unknownMileageWords = []string{"unknown", "unavailable", "n/a", "not available", "not specified"}
)

// currencyMarkers are checked in order; the first hit wins.
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"AED", "AED"},
	{"درهم", "AED"},
	{"DHS", "AED"},
	{"USD", "USD"},
	{"US$", "USD"},
	{"$", "USD"},
	{"EUR", "EUR"},
	{"€", "EUR"},
	{"GBP", "GBP"},
	{"£", "GBP"},
	{"SAR", "SAR"},
}

// ParsePrice converts free price text into a Price. It never fails: text
// without a number yields a nil Amount with Display kept verbatim.
//
//	"AED 45,000"     -> 45000 AED
//	"65K AED"        -> 65000 AED
//	"$1.2M"          -> 1200000 USD
//	"Call for price" -> nil
func ParsePrice(text string, opts NormalizeOptions) models.Price {
	p := models.Price{
		Currency: detectCurrency(text, opts.DefaultCurrency),
		Display:  text,
	}

	value, rest, ok := parseNumber(text)
	if !ok {
		return p
	}

	if m := suffixRegexp.FindStringSubmatch(rest); m != nil {
		switch strings.ToUpper(m[1]) {
		case "K":
			value *= 1_000
		case "M":
			value *= 1_000_000
		}
	}

	if value < 0 || math.IsInf(value, 0) || math.IsNaN(value) || value > math.MaxInt64/2 {
		return p
	}
	amount := int64(math.Round(value))
	p.Amount = &amount
	return p
}

// ParseMileage converts mileage text into whole kilometres, or nil when the
// text states the mileage is unknown or carries no number.
//
//	"45,000 km"       -> 45000
//	"28K miles"       -> 45061
//	"Mileage unknown" -> nil
func ParseMileage(text string, opts NormalizeOptions) *int64 {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil
	}
	for _, w := range unknownMileageWords {
		if strings.Contains(lower, w) {
			return nil
		}
	}

	value, rest, ok := parseNumber(text)
	if !ok {
		return nil
	}

	// "k" only counts as thousands when it is not the start of "km".
	if m := suffixRegexp.FindStringSubmatch(rest); m != nil && strings.EqualFold(m[1], "k") {
		value *= 1_000
		rest = strings.TrimSpace(rest)[1:]
	}

	unit := opts.BareMileageUnit
	if unit == "" {
		unit = UnitKilometers
	}
	if u, ok := firstUnit(rest); ok {
		unit = u
	} else if u, ok := firstUnit(text); ok {
		unit = u
	}

	if unit == UnitMiles {
		value *= KmPerMile
	}
	if value < 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return nil
	}

	// Whole kilometres are truncated: 28K miles is 45061 km.
	km := int64(value)
	return &km
}

// ExtractYear prefers an explicit year field and falls back to the first
// plausible 4-digit token in the title. Years outside
// [MinVehicleYear, current year + 1] are ignored.
func ExtractYear(rawYear, title string, opts NormalizeOptions) *int {
	maxYear := opts.maxYear()

	if y, ok := parseYearField(rawYear); ok && y >= MinVehicleYear && y <= maxYear {
		return &y
	}

	for _, token := range digitRunRegexp.FindAllString(title, -1) {
		if len(token) != 4 {
			continue
		}
		y, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if y >= MinVehicleYear && y <= maxYear {
			return &y
		}
	}
	return nil
}

// firstUnit returns the unit whose token appears earliest in s.
func firstUnit(s string) (MileageUnit, bool) {
	mi := milesRegexp.FindStringIndex(s)
	km := kmRegexp.FindStringIndex(s)
	switch {
	case mi == nil && km == nil:
		return "", false
	case km == nil:
		return UnitMiles, true
	case mi == nil || km[0] < mi[0]:
		return UnitKilometers, true
	default:
		return UnitMiles, true
	}
}

// parseYearField accepts "2021", "2021.0" and " 2021 ".
func parseYearField(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return y, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) {
		return int(f), true
	}
	return 0, false
}

func detectCurrency(text, fallback string) string {
	upper := strings.ToUpper(text)
	for _, c := range currencyMarkers {
		if strings.Contains(upper, c.marker) {
			return c.code
		}
	}
	if fallback == "" {
		return "AED"
	}
	return fallback
}

// parseNumber finds the first numeric literal in text and returns its value
// and the text following it. Grouping styles handled: "45,000", "45.000",
// "1 200 000", "1'200'000", "1.234,50" and "1,234.50".
func parseNumber(text string) (float64, string, bool) {
	loc := numberRegexp.FindStringIndex(text)
	if loc == nil {
		return 0, "", false
	}

	end := trimSpaceGroups(text, loc[0], loc[1])
	literal := text[loc[0]:end]
	rest := text[end:]

	cleaned := strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "", "’", "").Replace(literal)
	normalized, ok := normalizeSeparators(cleaned)
	if !ok {
		return 0, "", false
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, "", false
	}
	return value, rest, true
}

// trimSpaceGroups drops trailing space-separated digit groups that run on
// into more digits ("45 0001" is 45 followed by "0001"), and returns the
// new end of the literal text[start:end].
func trimSpaceGroups(text string, start, end int) int {
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		literal := text[start:end]
		head := strings.TrimRight(literal, "0123456789")
		trimmed := strings.TrimRight(head, " \u00a0\u202f")
		if len(literal)-len(head) != 3 || trimmed == head {
			break
		}
		end = start + len(trimmed)
	}
	return end
}

// normalizeSeparators rewrites a digits-and-separators literal into a form
// strconv.ParseFloat accepts.
func normalizeSeparators(s string) (string, bool) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The later separator is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSingleSeparator(s, ".")
	}

	if strings.Count(s, ".") > 1 || s == "" {
		return "", false
	}
	return s, true
}

// resolveSingleSeparator decides whether sep groups thousands or marks
// decimals when it is the only separator kind present.
func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}
