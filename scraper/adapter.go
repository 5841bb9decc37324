package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"tesla-finder/metrics"
	"tesla-finder/models"
	"tesla-finder/services"
	"tesla-finder/utils"
)

// RawSink receives raw listings before normalisation (the CSV writer).
type RawSink interface {
	WriteRaw(listings []*models.RawListing) error
}

// AdapterOptions configures an Adapter. Zero values pick defaults.
type AdapterOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Instructions string
	RawSink      RawSink
}

// Adapter turns one source URL into normalised listings or a failure
// descriptor. Extract never returns an error and never panics: every
// collaborator fault is converted into SourceResult.Failure.
type Adapter struct {
	extractor    Extractor
	cleaner      *services.Cleaner
	logger       *utils.Logger
	retry        *utils.RetryConfig
	timeout      time.Duration
	instructions string
	rawSink      RawSink
	now          func() time.Time
}

// NewAdapter wires an Extractor to the normalisation step.
func NewAdapter(extractor Extractor, cleaner *services.Cleaner, logger *utils.Logger, opts AdapterOptions) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	instructions := opts.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	return &Adapter{
		extractor: extractor,
		cleaner:   cleaner,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   delay,
			Logger:      logger,
		},
		timeout:      timeout,
		instructions: instructions,
		rawSink:      opts.RawSink,
		now:          time.Now,
	}
}

// Extract fetches url through the extractor (with per-attempt timeout and
// retries) and normalises the result. Records are stamped with url as
// their source.
func (a *Adapter) Extract(ctx context.Context, url string) models.SourceResult {
	start := a.now()
	domain := utils.Domain(url)
	result := models.SourceResult{URL: url, Records: []*models.Listing{}}

	a.logger.Info("[adapter] Extracting %s", url)

	var raw []*models.RawListing
	attempts := 0
	err := a.retry.DoContext(ctx, "extract "+domain, func(ctx context.Context) error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		out, err := a.fetch(callCtx, url)
		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("no answer within %s: %w", a.timeout, context.DeadlineExceeded)
			}
			return err
		}
		if len(out) == 0 {
			return models.ErrEmptyOutput
		}
		raw = out
		return nil
	})

	if err == nil {
		a.writeRaw(raw)

		records, rejected := a.cleaner.Clean(raw, url)
		result.Dropped = len(rejected)
		for _, r := range rejected {
			metrics.ListingsDropped.WithLabelValues(r.Code).Inc()
		}
		if len(records) == 0 {
			err = fmt.Errorf("%w: all %d extracted listings were rejected", models.ErrMalformedOutput, len(raw))
		} else {
			result.Records = records
		}
	}

	result.Duration = a.now().Sub(start)
	metrics.ExtractionDuration.WithLabelValues(domain).Observe(result.Duration.Seconds())

	if err != nil {
		result.Failure = &models.FailureDescriptor{
			URL:        url,
			Kind:       classify(ctx, err),
			Detail:     err.Error(),
			Attempts:   attempts,
			OccurredAt: a.now().UTC(),
		}
		metrics.SourcesTotal.WithLabelValues(string(result.Failure.Kind)).Inc()
		a.logger.Error("[adapter] %s failed (%s after %d attempts): %v",
			url, result.Failure.Kind, attempts, err)
		return result
	}

	metrics.SourcesTotal.WithLabelValues("ok").Inc()
	metrics.ListingsExtracted.WithLabelValues(domain).Add(float64(len(result.Records)))
	a.logger.Info("[adapter] %s: %d listings (%d dropped) in %s",
		url, len(result.Records), result.Dropped, result.Duration.Round(time.Millisecond))
	return result
}

// fetch calls the extractor, converting a panic into an error.
func (a *Adapter) fetch(ctx context.Context, url string) (out []*models.RawListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return a.extractor.FetchAndInterpret(ctx, url, a.instructions)
}

func (a *Adapter) writeRaw(raw []*models.RawListing) {
	if a.rawSink == nil {
		return
	}
	if err := a.rawSink.WriteRaw(raw); err != nil {
		a.logger.Warn("[adapter] Raw listing write failed: %v", err)
	}
}

// classify maps an extraction error to its FailureKind.
func classify(ctx context.Context, err error) models.FailureKind {
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return models.FailureCancelled
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return models.FailureTimeout
	case errors.Is(err, models.ErrEmptyOutput):
		return models.FailureEmpty
	case errors.Is(err, models.ErrMalformedOutput):
		return models.FailureMalformed
	default:
		return models.FailureExtraction
	}
}
