package scraper

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"tesla-finder/models"
	"tesla-finder/services"
	"tesla-finder/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, false) }

func newTestAdapter(ex Extractor, retries int) *Adapter {
	logger := newTestLogger()
	return NewAdapter(ex, services.NewCleaner(logger, services.DefaultNormalizeOptions()), logger, AdapterOptions{
		Timeout:    50 * time.Millisecond,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
	})
}

func staticListings(raw ...*models.RawListing) Extractor {
	return ExtractorFunc(func(context.Context, string, string) ([]*models.RawListing, error) {
		return raw, nil
	})
}

type recordingSink struct{ n int }

func (s *recordingSink) WriteRaw(l []*models.RawListing) error {
	s.n += len(l)
	return nil
}

func TestAdapterExtractNormalises(t *testing.T) {
	const src = "https://carswitch.com/uae/used-cars/search"
	ex := staticListings(
		&models.RawListing{Title: "Tesla Model 3 2021", RawPrice: "AED 89,900", RawMileage: "45,000 km", URL: "/car/1"},
		&models.RawListing{Title: "Tesla Model Y", RawPrice: "65K AED", RawMileage: "28K miles", RawYear: "2022", URL: "/car/2"},
		&models.RawListing{Title: "", RawPrice: "AED 1"},
	)
	sink := &recordingSink{}
	a := newTestAdapter(ex, 1)
	a.rawSink = sink

	res := a.Extract(context.Background(), src)
	if res.Failure != nil {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if len(res.Records) != 2 || res.Dropped != 1 {
		t.Fatalf("records = %d, dropped = %d; want 2 and 1", len(res.Records), res.Dropped)
	}
	if sink.n != 3 {
		t.Errorf("raw sink got %d listings; want 3", sink.n)
	}

	second := res.Records[1]
	if second.SourceURL != src {
		t.Errorf("SourceURL = %q; want %q", second.SourceURL, src)
	}
	if second.URL != "https://carswitch.com/car/2" {
		t.Errorf("URL = %q", second.URL)
	}
	if *second.Price.Amount != 65000 || *second.MileageKm != 45061 || *second.Year != 2022 {
		t.Errorf("normalised = %d AED, %d km, %d", *second.Price.Amount, *second.MileageKm, *second.Year)
	}
}

func TestAdapterFailures(t *testing.T) {
	tests := []struct {
		name string
		ex   Extractor
		want models.FailureKind
	}{
		{"empty", staticListings(), models.FailureEmpty},
		{"malformed", ExtractorFunc(func(context.Context, string, string) ([]*models.RawListing, error) {
			return nil, models.ErrMalformedOutput
		}), models.FailureMalformed},
		{"all rejected", staticListings(&models.RawListing{RawPrice: "AED 5"}), models.FailureMalformed},
		{"error", ExtractorFunc(func(context.Context, string, string) ([]*models.RawListing, error) {
			return nil, errors.New("connection refused")
		}), models.FailureExtraction},
		{"panic", ExtractorFunc(func(context.Context, string, string) ([]*models.RawListing, error) {
			panic("boom")
		}), models.FailureExtraction},
		{"timeout", ExtractorFunc(func(ctx context.Context, _, _ string) ([]*models.RawListing, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), models.FailureTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestAdapter(tt.ex, 1).Extract(context.Background(), "https://kavak.com/ae/preowned")
			if res.Failure == nil {
				t.Fatal("expected a failure descriptor")
			}
			if res.Failure.Kind != tt.want {
				t.Errorf("Kind = %s; want %s (%s)", res.Failure.Kind, tt.want, res.Failure.Detail)
			}
			if res.Records == nil || len(res.Records) != 0 {
				t.Errorf("Records = %v; want empty, non-nil", res.Records)
			}
			if res.Failure.URL != "https://kavak.com/ae/preowned" || res.Failure.Attempts != 1 {
				t.Errorf("descriptor = %+v", res.Failure)
			}
		})
	}
}

func TestAdapterRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	ex := ExtractorFunc(func(context.Context, string, string) ([]*models.RawListing, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("temporary")
		}
		return []*models.RawListing{{Title: "Tesla Model S"}}, nil
	})

	res := newTestAdapter(ex, 3).Extract(context.Background(), "https://dubizzle.com/")
	if res.Failure != nil {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if calls.Load() != 3 {
		t.Errorf("extractor called %d times; want 3", calls.Load())
	}
}

func TestAdapterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := ExtractorFunc(func(ctx context.Context, _, _ string) ([]*models.RawListing, error) {
		return nil, ctx.Err()
	})
	res := newTestAdapter(ex, 3).Extract(ctx, "https://dubizzle.com/")
	if res.Failure == nil || res.Failure.Kind != models.FailureCancelled {
		t.Fatalf("Failure = %+v; want cancelled", res.Failure)
	}
	if res.Failure.Attempts != 1 {
		t.Errorf("Attempts = %d; want 1 (no retry after cancel)", res.Failure.Attempts)
	}
}
