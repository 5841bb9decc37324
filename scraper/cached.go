package scraper

import (
	"context"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// ListingCache is the subset of storage.Cache the extractor needs.
type ListingCache interface {
	Get(ctx context.Context, sourceURL string) ([]*models.RawListing, bool)
	Set(ctx context.Context, sourceURL string, listings []*models.RawListing)
}

// CachedExtractor answers from cache when it can and stores every
// non-empty result of the wrapped Extractor.
type CachedExtractor struct {
	next   Extractor
	cache  ListingCache
	logger *utils.Logger
}

func NewCachedExtractor(next Extractor, cache ListingCache, logger *utils.Logger) *CachedExtractor {
	return &CachedExtractor{next: next, cache: cache, logger: logger}
}

func (c *CachedExtractor) FetchAndInterpret(ctx context.Context, url, instructions string) ([]*models.RawListing, error) {
	if cached, ok := c.cache.Get(ctx, url); ok {
		c.logger.Info("[cache] Hit for %s (%d listings)", url, len(cached))
		return cached, nil
	}

	listings, err := c.next.FetchAndInterpret(ctx, url, instructions)
	if err != nil {
		return nil, err
	}
	if len(listings) > 0 {
		c.cache.Set(ctx, url, listings)
	}
	return listings, nil
}
