package services

import (
	"testing"

	"tesla-finder/models"
)

func TestRankScenario(t *testing.T) {
	in := []*models.Listing{
		car("a", 30000, 50000, 2020),
		car("b", 15000, 50000, 2022),
		car("c", 45000, 40000, 2019),
		car("d", 5000, 80000, 2023),
	}

	got := Rank(in, 4)
	want := []string{"d", "b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("len(Rank) = %d; want %d", len(got), len(want))
	}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("Rank[%d] = %s; want %s", i, got[i].Title, title)
		}
	}

	// input order is untouched
	if in[0].Title != "a" || in[3].Title != "d" {
		t.Errorf("Rank reordered its input: %s..%s", in[0].Title, in[3].Title)
	}
}

func TestRankUnknownMileageLast(t *testing.T) {
	in := []*models.Listing{
		car("no-mileage-cheap-new", -1, 1000, 2025),
		car("high-mileage", 250000, 90000, 2015),
		car("mid", 60000, -1, -1),
	}

	got := Rank(in, 10)
	if got[len(got)-1].Title != "no-mileage-cheap-new" {
		t.Errorf("last = %s; want the listing with unknown mileage", got[len(got)-1].Title)
	}
	if got[0].Title != "mid" {
		t.Errorf("first = %s; want mid", got[0].Title)
	}
}

func TestRankTieBreakers(t *testing.T) {
	in := []*models.Listing{
		car("unknown-price", 10000, -1, 2024),
		car("dear", 10000, 90000, 2024),
		car("cheap-old", 10000, 50000, 2019),
		car("cheap-unknown-year", 10000, 50000, -1),
		car("cheap-new", 10000, 50000, 2023),
	}

	got := Rank(in, 10)
	want := []string{"cheap-new", "cheap-old", "cheap-unknown-year", "dear", "unknown-price"}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("Rank[%d] = %s; want %s", i, got[i].Title, title)
		}
	}
}

func TestRankStableForEqualKeys(t *testing.T) {
	in := []*models.Listing{
		car("first", 20000, 60000, 2022),
		car("second", 20000, 60000, 2022),
		car("third", 20000, 60000, 2022),
		car("x", -1, -1, -1),
		car("y", -1, -1, -1),
	}

	got := Rank(in, 5)
	want := []string{"first", "second", "third", "x", "y"}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("Rank[%d] = %s; want %s", i, got[i].Title, title)
		}
	}
}

func TestRankLimit(t *testing.T) {
	in := []*models.Listing{
		car("a", 3, 1, 2020),
		car("b", 2, 1, 2020),
		car("c", 1, 1, 2020),
	}

	tests := []struct {
		limit, want int
	}{
		{0, 0},
		{-5, 0},
		{2, 2},
		{3, 3},
		{20, 3},
	}
	for _, tt := range tests {
		if got := Rank(in, tt.limit); len(got) != tt.want {
			t.Errorf("len(Rank(limit=%d)) = %d; want %d", tt.limit, len(got), tt.want)
		}
	}

	if got := Rank(nil, 20); len(got) != 0 {
		t.Errorf("Rank(nil) = %d listings; want 0", len(got))
	}
}

func TestRankOrderedAndIdempotent(t *testing.T) {
	in := []*models.Listing{
		car("a", 40000, -1, 2021),
		car("b", -1, 70000, 2020),
		car("c", 40000, 65000, -1),
		car("d", 12000, 65000, 2022),
		car("e", 12000, 65000, 2022),
		car("f", -1, -1, 2024),
		car("g", 99000, 30000, 2018),
	}

	first := Rank(in, 5)
	second := Rank(in, 5)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Rank not idempotent at %d: %s vs %s", i, first[i].Title, second[i].Title)
		}
	}

	all := SortAll(in)
	for i := 1; i < len(all); i++ {
		if CompareListings(all[i-1], all[i]) > 0 {
			t.Errorf("listings %s and %s are out of order", all[i-1].Title, all[i].Title)
		}
	}
}
