package scraper

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

// ServiceExtractor delegates fetching and interpretation to an external
// extraction service:
//
//	POST {endpoint} {"url": "...", "instructions": "..."}
//	  -> either {"listings":[...]} or [...]
type ServiceExtractor struct {
	endpoint string
	client   *http.Client
}

// NewServiceExtractor creates a ServiceExtractor for endpoint.
func NewServiceExtractor(endpoint string, timeout time.Duration) (*ServiceExtractor, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("extraction service endpoint is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ServiceExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type serviceRequest struct {
	URL          string `json:"url"`
	Instructions string `json:"instructions"`
}

// serviceListing tolerates numbers where strings are expected; services
// often return year and price as JSON numbers.
type serviceListing struct {
	Title    flexString `json:"title"`
	Price    flexString `json:"price"`
	Mileage  flexString `json:"mileage"`
	Year     flexString `json:"year"`
	Location flexString `json:"location"`
	URL      flexString `json:"url"`
	Image    flexString `json:"image_url"`
	AltImage flexString `json:"image"`
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		*f = flexString(b)
	default:
		return fmt.Errorf("unsupported value %s", b)
	}
	return nil
}

func (a *ServiceExtractor) FetchAndInterpret(ctx context.Context, url, instructions string) ([]*models.RawListing, error) {
	payload, err := json.Marshal(serviceRequest{URL: url, Instructions: instructions})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extraction service status %d", resp.StatusCode)
	}

	items, err := parseServicePayload(body)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]*models.RawListing, 0, len(items))
	for _, it := range items {
		image := string(it.Image)
		if image == "" {
			image = string(it.AltImage)
		}
		r := cardData{
			Title:    string(it.Title),
			Price:    string(it.Price),
			Mileage:  string(it.Mileage),
			Year:     string(it.Year),
			Location: string(it.Location),
			URL:      string(it.URL),
			Image:    image,
		}.raw(url)
		r.ScrapedAt = now
		out = append(out, r)
	}
	return out, nil
}

// parseServicePayload accepts both object-wrapped and bare-array payloads.
func parseServicePayload(body []byte) ([]serviceListing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", models.ErrMalformedOutput)
	}

	if trimmed[0] == '{' {
		var wrapped struct {
			Listings *[]serviceListing `json:"listings"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedOutput, err)
		}
		if wrapped.Listings == nil {
			return nil, fmt.Errorf("%w: object without listings", models.ErrMalformedOutput)
		}
		return *wrapped.Listings, nil
	}

	var arr []serviceListing
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedOutput, err)
	}
	return arr, nil
}
