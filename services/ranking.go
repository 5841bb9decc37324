package services

import (
	"sort"

	"tesla-finder/models"
)

// DefaultTopLimit is the size of the ranked subset shown in reports.
const DefaultTopLimit = 20

// SortingCriteria describes Rank's ordering for report headers.
const SortingCriteria = "Mileage ↑, Price ↑, Year ↓ (unknown values last)"

// Rank returns up to limit listings ordered by mileage ascending, then
// price ascending, then year descending. Unknown values sort after every
// known value on each key, and listings that tie on all three keep their
// input order. The input slice is left untouched.
func Rank(records []*models.Listing, limit int) []*models.Listing {
	sorted := SortAll(records)
	if limit < 0 {
		limit = 0
	}
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// SortAll is Rank without truncation.
func SortAll(records []*models.Listing) []*models.Listing {
	sorted := make([]*models.Listing, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareListings(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// CompareListings orders two listings by the ranking key and returns -1, 0
// or +1.
func CompareListings(a, b *models.Listing) int {
	if c := compareAscending(a.MileageKm, b.MileageKm); c != 0 {
		return c
	}
	if c := compareAscending(a.Price.Amount, b.Price.Amount); c != 0 {
		return c
	}
	return compareYearDescending(a.Year, b.Year)
}

func compareAscending(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func compareYearDescending(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}
