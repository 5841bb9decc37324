package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"tesla-finder/models"
	"tesla-finder/utils"
)

var validate = validator.New()

// SourceExtractor is what the Runner schedules: one call per URL.
type SourceExtractor interface {
	Extract(ctx context.Context, url string) models.SourceResult
}

// Runner extracts many sources concurrently on a bounded worker pool.
type Runner struct {
	source      SourceExtractor
	logger      *utils.Logger
	concurrency int
	rateLimitMs int
}

// NewRunner creates a Runner. concurrency < 1 runs sources one at a time.
func NewRunner(source SourceExtractor, logger *utils.Logger, concurrency, rateLimitMs int) *Runner {
	return &Runner{source: source, logger: logger, concurrency: concurrency, rateLimitMs: rateLimitMs}
}

// Run extracts every URL and returns the results in the order the URLs
// were given, whatever order the workers finish in. A failing source
// never affects the others.
func (r *Runner) Run(ctx context.Context, urls []string) ([]models.SourceResult, error) {
	if len(urls) == 0 {
		return nil, models.ErrNoURLs
	}

	r.logger.Info("[digest] Processing %d sources (concurrency %d, rate %dms)",
		len(urls), max(r.concurrency, 1), r.rateLimitMs)

	results := make([]models.SourceResult, len(urls))
	pool := utils.NewWorkerPool(r.concurrency, r.rateLimitMs)
	pool.Each(len(urls), func(i int) {
		results[i] = r.source.Extract(ctx, urls[i])
	})

	failed := 0
	for _, res := range results {
		if res.Failure != nil {
			failed++
		}
	}
	r.logger.Info("[digest] Sources done: %d succeeded, %d failed", len(results)-failed, failed)
	return results, nil
}

// Search extracts a single URL, rejecting anything that is not an
// absolute http(s) URL.
func (r *Runner) Search(ctx context.Context, url string) (models.SourceResult, error) {
	if err := ValidateURL(url); err != nil {
		return models.SourceResult{}, err
	}
	return r.source.Extract(ctx, url), nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	if err := validate.Var(raw, "required,url,startswith=http"); err != nil {
		return fmt.Errorf("invalid source URL %q", raw)
	}
	return nil
}

// CleanURLs trims, validates and de-duplicates a URL list, keeping the
// first occurrence of each. Invalid entries are logged and skipped.
func CleanURLs(raw []string, logger *utils.Logger) []string {
	seen := utils.NewURLSet()
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if err := ValidateURL(u); err != nil {
			logger.Warn("[digest] Skipping %v", err)
			continue
		}
		if !seen.Add(u) {
			logger.Warn("[digest] Skipping duplicate URL %s", u)
			continue
		}
		out = append(out, u)
	}
	return out
}
