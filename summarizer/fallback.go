package summarizer

import (
	"context"
	"strings"

	"tesla-finder/models"
	"tesla-finder/utils"
)

// Summarizer matches services.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, s *models.ConsolidatedSummary) (string, error)
}

// Fallback tries Primary and falls back to Secondary when it errors or
// returns nothing.
type Fallback struct {
	Primary   Summarizer
	Secondary Summarizer
	Logger    *utils.Logger
}

func (f *Fallback) Summarize(ctx context.Context, s *models.ConsolidatedSummary) (string, error) {
	text, err := f.Primary.Summarize(ctx, s)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if f.Logger != nil {
		if err != nil {
			f.Logger.Warn("[summarizer] Primary summarizer failed, using fallback: %v", err)
		} else {
			f.Logger.Warn("[summarizer] Primary summarizer returned an empty summary, using fallback")
		}
	}
	return f.Secondary.Summarize(ctx, s)
}
