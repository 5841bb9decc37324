package summarizer

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"tesla-finder/models"
	"tesla-finder/services"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}).Parse(`Tesla Market Analysis Summary:

Found {{.Total}} Tesla listings across {{.Sources}} sources{{if .Failed}} ({{.Failed}} failed){{end}}.
Price range: {{.PriceRange}}

Top {{len .Top}} Tesla listings (sorted by {{.Criteria}}):
{{range $i, $l := .Top}}  {{inc $i}}. {{$l.Title}} - {{$l.Price}} ({{$l.Year}}) | {{$l.Mileage}} | Balance: {{$l.Rating}} (Score: {{printf "%.2f" $l.Score}}){{if $l.URL}} - {{$l.URL}}{{end}}
{{end}}
Available Models: {{if .Models}}{{join .Models ", "}}{{else}}none identified{{end}}
Available Locations: {{if .Locations}}{{join .Locations ", "}}{{else}}not listed{{end}}

Analysis completed at {{.At}}
Note: lower balance scores are closer to the cheapest, newest, lowest-mileage listing in this set.`))

type summaryLine struct {
	Title, Price, Year, Mileage, Rating, URL string
	Score                                    float64
}

type summaryData struct {
	Total, Sources, Failed int
	PriceRange             string
	Criteria               string
	Top                    []summaryLine
	Models, Locations      []string
	At                     string
}

// Template renders a deterministic narrative from the summary alone. It
// never calls out and only fails on a template bug.
type Template struct{}

func NewTemplate() *Template { return &Template{} }

func (Template) Summarize(_ context.Context, s *models.ConsolidatedSummary) (string, error) {
	scores := services.ScoreBalance(s.RankedListings)

	data := summaryData{
		Total:      s.TotalListings,
		Sources:    len(s.SourceURLs),
		Failed:     len(s.Failures),
		PriceRange: s.PriceRange,
		Criteria:   services.SortingCriteria,
		Top:        make([]summaryLine, 0, len(s.TopListings)),
		Models:     s.Models,
		Locations:  s.Locations,
		At:         s.AnalyzedAt.UTC().Format(time.DateTime + " MST"),
	}
	// TopListings is a prefix of RankedListings, so scores line up by index.
	for i, l := range s.TopListings {
		line := summaryLine{
			Title:   l.Title,
			Price:   l.PriceLabel(),
			Year:    l.YearLabel(),
			Mileage: l.MileageLabel(),
			URL:     l.URL,
		}
		if i < len(scores) {
			line.Rating = scores[i].Rating
			line.Score = scores[i].Composite
		}
		data.Top = append(data.Top, line)
	}

	var b strings.Builder
	if err := summaryTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("summarizer: render template: %w", err)
	}
	return b.String(), nil
}
