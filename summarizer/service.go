package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tesla-finder/models"
)

// Service asks an external text-generation endpoint for the narrative:
//
//	POST {endpoint} {"records":[...], "total_listings_found": n, ...}
//	  -> {"summary": "..."} or plain text
type Service struct {
	endpoint string
	client   *http.Client
}

func NewService(endpoint string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type serviceRequest struct {
	Records       []*models.Listing `json:"records"`
	TotalListings int               `json:"total_listings_found"`
	PriceRange    string            `json:"global_price_range"`
	Models        []string          `json:"all_models"`
	Locations     []string          `json:"all_locations"`
}

func (s *Service) Summarize(ctx context.Context, sum *models.ConsolidatedSummary) (string, error) {
	payload, err := json.Marshal(serviceRequest{
		Records:       sum.TopListings,
		TotalListings: sum.TotalListings,
		PriceRange:    sum.PriceRange,
		Models:        sum.Models,
		Locations:     sum.Locations,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("summarizer: status %d", resp.StatusCode)
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var out struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("summarizer: decode response: %w", err)
		}
		text = strings.TrimSpace(out.Summary)
	}
	if text == "" {
		return "", errors.New("summarizer: empty summary")
	}
	return text, nil
}
