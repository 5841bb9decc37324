package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommands(t *testing.T) {
	t.Setenv("SOURCE_URLS", "https://a.example/cars | https://b.example/cars?year=2021,2022")
	t.Setenv("EXTRACTOR", "static")
	t.Setenv("CSV_OUTPUT_PATH", "")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"no command", nil, 0, "Usage: tesla-finder"},
		{"help", []string{"help"}, 0, "urls-list"},
		{"unknown", []string{"frobnicate"}, 1, "Usage: tesla-finder"},
		{"urls-list", []string{"urls-list"}, 0, "2. https://b.example/cars?year=2021,2022"},
		{"search without url", []string{"search"}, 1, ""},
		{"search bad url", []string{"search", "ftp://a.example/"}, 1, ""},
		{"digest bad limit", []string{"digest", "--limit", "0"}, 1, ""},
		{"digest bad flag", []string{"digest", "--nope"}, 1, ""},
		{"digest no valid urls", []string{"digest", "--urls", "not a url,also bad"}, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := run(context.Background(), tt.args, &out)
			if code != tt.wantCode {
				t.Errorf("run(%q) = %d; want %d", tt.args, code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("run(%q) output = %q; want it to contain %q", tt.args, out.String(), tt.wantOut)
			}
		})
	}
}

const oneCarPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Car","name":"Tesla Model 3 2022","url":"/car/1",
 "mileageFromOdometer":{"value":41000,"unitCode":"KMT"},
 "offers":{"price":98500,"priceCurrency":"AED"}}
</script>
</head><body></body></html>`

func TestRunDigestWithFailingSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "upstream error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintln(w, oneCarPage)
	}))
	defer ts.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, "listings.json")
	t.Setenv("EXTRACTOR", "static")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("RATE_LIMIT_MS", "0")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("CSV_OUTPUT_PATH", filepath.Join(dir, "raw.csv"))
	t.Setenv("CACHE_DB_PATH", "")
	t.Setenv("POSTGRES_ENABLED", "false")
	t.Setenv("NATS_URL", "")
	t.Setenv("SUMMARIZER_URL", "")
	t.Setenv("METRICS_TEXTFILE", "")

	var out bytes.Buffer
	args := []string{"digest", "--urls", ts.URL + "/cars," + ts.URL + "/broken", "--output", output}
	if code := run(context.Background(), args, &out); code != 0 {
		t.Fatalf("run(digest) = %d; want 0 when only some sources fail", code)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var doc struct {
		Metadata struct {
			TotalListings int `json:"totalListings"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if doc.Metadata.TotalListings != 1 {
		t.Errorf("totalListings = %d; want 1", doc.Metadata.TotalListings)
	}
}
