package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// RenderText prints the terminal report for doc.
func RenderText(w io.Writer, doc Document) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)
	m := doc.Metadata

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚗 TESLA MARKET DIGEST\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings found : \033[1m%d\033[0m\n", m.TotalListings)
	fmt.Fprintf(w, "  Sources analysed     : \033[1m%d\033[0m (%d failed)\n", m.SourcesAnalyzed, m.SourcesFailed)
	fmt.Fprintf(w, "  Price range          : \033[1;32m%s\033[0m\n", m.GlobalPriceRange)
	if m.MileageStats.Average != nil {
		fmt.Fprintf(w, "  Average mileage      : %s km\n", humanize.Comma(*m.MileageStats.Average))
	}
	fmt.Fprintf(w, "  Analysed at          : %s\n", m.GeneratedAt)
	fmt.Fprintln(w)

	if len(m.Failures) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Failed Sources\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, f := range m.Failures {
			fmt.Fprintf(w, "  \033[1;31m✗\033[0m %s (%s)\n", truncate(f.URL, 50), f.Kind)
		}
		fmt.Fprintln(w)
	}

	top := doc.TopEntries()
	fmt.Fprintf(w, "\033[1;33m  Top %d Listings\033[0m  %s\n", len(top), m.SortingCriteria)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(top) == 0 {
		fmt.Fprintf(w, "  No Tesla listings found from any source.\n")
	}
	for _, e := range top {
		fmt.Fprintf(w, "  \033[1m%2d.\033[0m %s\n", e.ID, truncate(e.Title, 56))
		fmt.Fprintf(w, "      \033[1;32m%s\033[0m | %s | %s", e.Price, e.YearLabel, e.Mileage)
		if e.Location != "" {
			fmt.Fprintf(w, " | %s", e.Location)
		}
		fmt.Fprintf(w, " | %s\n", e.BalanceRating)
		fmt.Fprintf(w, "      %s\n", e.LinkText())
	}
	fmt.Fprintln(w)

	// Listings by model
	fmt.Fprintf(w, "\033[1;33m  Listings by Model\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, mc := range m.ModelDistribution {
		bar := strings.Repeat("█", min(mc.Count, 40))
		fmt.Fprintf(w, "  %-20s %s (%d)\n", mc.Model, bar, mc.Count)
	}
	fmt.Fprintln(w)

	if len(m.SourceBreakdown) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Listings by Source\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, s := range m.SourceBreakdown {
			median := "n/a"
			if s.MedianPrice != nil {
				median = humanize.Comma(*s.MedianPrice)
			}
			fmt.Fprintf(w, "  %-28s %4d listings  median %s\n", truncate(s.Source, 28), s.ListingCount, median)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
