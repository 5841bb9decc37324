package storage

import (
	"context"

	"tesla-finder/models"
)

// RunWriter is the interface any digest persistence backend must satisfy.
type RunWriter interface {
	WriteRun(ctx context.Context, summary *models.ConsolidatedSummary) error
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}

// EventPublisher announces finished digests to other services.
type EventPublisher interface {
	PublishDigest(ctx context.Context, summary *models.ConsolidatedSummary) error
	Close()
}
