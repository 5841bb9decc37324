package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"comma": func(v *int64) string {
		if v == nil {
			return "n/a"
		}
		return humanize.Comma(*v)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tesla Market Analysis Report - {{.Metadata.GeneratedAt}}</title>
<style>
  body { font-family: system-ui, sans-serif; background: #111827; color: #f9fafb; margin: 0; padding: 2rem; }
  header { margin-bottom: 2rem; }
  .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
  .stat { background: #1f2937; border-radius: 8px; padding: 1rem; }
  .stat span { display: block; color: #9ca3af; font-size: .8rem; }
  .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); gap: 1.5rem; }
  .card { background: #1f2937; border-radius: 8px; overflow: hidden; }
  .card img { width: 100%; height: 180px; object-fit: cover; background: #374151; }
  .card .body { padding: 1rem; }
  .card h2 { font-size: 1rem; margin: 0 0 .5rem; }
  .price { color: #34d399; font-weight: 600; }
  .meta { color: #d1d5db; font-size: .9rem; }
  .rating { font-size: .8rem; color: #fbbf24; }
  .failures { color: #f87171; }
  a { color: #60a5fa; }
  pre { white-space: pre-wrap; background: #1f2937; padding: 1rem; border-radius: 8px; }
</style>
</head>
<body>
<header>
  <h1>Tesla Market Analysis</h1>
  <p>Generated <time datetime="{{.Metadata.GeneratedAt}}">{{.Metadata.GeneratedAt}}</time> from {{.Metadata.SourcesAnalyzed}} sources</p>
  <div class="stats">
    <div class="stat"><span>Total listings</span>{{.Metadata.TotalListings}}</div>
    <div class="stat"><span>Price range</span>{{.Metadata.GlobalPriceRange}}</div>
    <div class="stat"><span>Average price</span>{{comma .Metadata.PriceStats.Average}}</div>
    <div class="stat"><span>Average mileage (km)</span>{{comma .Metadata.MileageStats.Average}}</div>
    <div class="stat"><span>Models</span>{{range $i, $m := .Metadata.AvailableModels}}{{if $i}}, {{end}}{{$m}}{{else}}none identified{{end}}</div>
    <div class="stat"><span>Locations</span>{{range $i, $l := .Metadata.AvailableLocations}}{{if $i}}, {{end}}{{$l}}{{else}}not listed{{end}}</div>
  </div>
  {{if .Metadata.Failures}}
  <ul class="failures">
    {{range .Metadata.Failures}}<li>{{.URL}}: {{.Kind}} ({{.Detail}})</li>{{end}}
  </ul>
  {{end}}
</header>
<main>
  <h2>Top {{len .Top}} listings <small>({{.Metadata.SortingCriteria}})</small></h2>
  {{if .Top}}
  <div class="grid">
    {{range .Top}}
    <article class="card">
      <img src="{{.ImageURL}}" alt="{{.Title}}" loading="lazy">
      <div class="body">
        <h2>{{.ID}}. {{.Title}}</h2>
        <div class="price">{{.Price}}</div>
        <div class="meta">{{.YearLabel}} &middot; {{.Mileage}}{{if .Location}} &middot; {{.Location}}{{end}}</div>
        <div class="rating">{{.BalanceRating}} ({{printf "%.2f" .BalanceScore}})</div>
        {{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">View listing</a>{{else}}<span class="meta">{{.LinkText}}</span>{{end}}
      </div>
    </article>
    {{end}}
  </div>
  {{else}}
  <p>No Tesla listings found from any source.</p>
  {{end}}
  <h2>Summary</h2>
  <pre>{{.Metadata.Summary}}</pre>
</main>
</body>
</html>
`))

type htmlData struct {
	Document
	Top []Entry
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return m
}

// RenderHTML writes the minified HTML report for doc to w.
func RenderHTML(w io.Writer, doc Document) error {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, htmlData{Document: doc, Top: doc.TopEntries()}); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	if err := newMinifier().Minify("text/html", w, &buf); err != nil {
		return fmt.Errorf("report: minify html: %w", err)
	}
	return nil
}

// WriteHTML renders doc to path, creating parent directories.
func WriteHTML(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %q: %w", path, err)
	}
	if err := RenderHTML(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
