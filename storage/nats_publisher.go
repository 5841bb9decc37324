package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// DigestCompleted is the event published after each digest run.
type DigestCompleted struct {
	RunID            string    `json:"run_id"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
	TotalListings    int       `json:"total_listings"`
	SucceededSources int       `json:"succeeded_sources"`
	FailedSources    []string  `json:"failed_sources"`
	PriceRange       string    `json:"price_range"`
	MinPrice         *int64    `json:"min_price"`
	MaxPrice         *int64    `json:"max_price"`
	TopURLs          []string  `json:"top_urls"`
	Source           string    `json:"source"`
	Version          string    `json:"version"`
}

// NewDigestCompleted builds the event payload for s.
func NewDigestCompleted(s *models.ConsolidatedSummary) DigestCompleted {
	ev := DigestCompleted{
		RunID:            s.RunID.String(),
		AnalyzedAt:       s.AnalyzedAt,
		TotalListings:    s.TotalListings,
		SucceededSources: s.SucceededSources(),
		FailedSources:    make([]string, 0, len(s.Failures)),
		PriceRange:       s.PriceRange,
		MinPrice:         s.MinPrice,
		MaxPrice:         s.MaxPrice,
		TopURLs:          make([]string, 0, len(s.TopListings)),
		Source:           "tesla-finder",
		Version:          "1.0",
	}
	for _, f := range s.Failures {
		ev.FailedSources = append(ev.FailedSources, f.URL)
	}
	for _, l := range s.TopListings {
		if l.URL != "" {
			ev.TopURLs = append(ev.TopURLs, l.URL)
		}
	}
	return ev
}

// NATSPublisher publishes digest events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *utils.Logger
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string, logger *utils.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("tesla-finder"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, subject: subject, logger: logger}, nil
}

// PublishDigest sends a DigestCompleted event and waits for the server to
// acknowledge the flush.
func (np *NATSPublisher) PublishDigest(ctx context.Context, s *models.ConsolidatedSummary) error {
	data, err := json.Marshal(NewDigestCompleted(s))
	if err != nil {
		return fmt.Errorf("nats: marshal event: %w", err)
	}
	if err := np.conn.Publish(np.subject, data); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	// FlushWithContext requires a deadline
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := np.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	np.logger.Info("[storage] Published digest %s to %s", s.RunID, np.subject)
	return nil
}

// Close closes the NATS connection.
func (np *NATSPublisher) Close() {
	if np.conn != nil {
		np.conn.Close()
	}
}
