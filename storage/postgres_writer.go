package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"tesla-finder/models"
)

// ErrRunExists is returned when a digest run id has already been stored.
var ErrRunExists = errors.New("postgres: digest run already stored")

// PostgresWriter persists digest runs and their ranked listings.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS digest_runs (
			run_id         UUID         PRIMARY KEY,
			analyzed_at    TIMESTAMPTZ  NOT NULL,
			source_urls    TEXT[]       NOT NULL,
			failed_urls    TEXT[]       NOT NULL,
			total_listings INTEGER      NOT NULL,
			price_range    TEXT         NOT NULL,
			min_price      BIGINT,
			max_price      BIGINT,
			summary        TEXT         NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS listings (
			id            SERIAL PRIMARY KEY,
			run_id        UUID    NOT NULL REFERENCES digest_runs(run_id) ON DELETE CASCADE,
			rank          INTEGER NOT NULL,
			title         TEXT    NOT NULL,
			price_amount  BIGINT,
			currency      VARCHAR(8) NOT NULL DEFAULT '',
			price_display TEXT    NOT NULL DEFAULT '',
			mileage_km    BIGINT,
			model_year    INTEGER,
			location      TEXT    NOT NULL DEFAULT '',
			url           TEXT    NOT NULL DEFAULT '',
			source_url    TEXT    NOT NULL,
			image_url     TEXT    NOT NULL DEFAULT '',
			UNIQUE (run_id, rank)
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price   ON listings(price_amount);
		CREATE INDEX IF NOT EXISTS idx_listings_mileage ON listings(mileage_km);
		CREATE INDEX IF NOT EXISTS idx_listings_source  ON listings(source_url);
	`)
	return err
}

// WriteRun stores the run header and every ranked listing in one
// transaction. A run id is written at most once.
func (pw *PostgresWriter) WriteRun(ctx context.Context, s *models.ConsolidatedSummary) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	failed := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		failed = append(failed, f.URL)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO digest_runs
			(run_id, analyzed_at, source_urls, failed_urls, total_listings, price_range, min_price, max_price, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING
	`, s.RunID.String(), s.AnalyzedAt, pq.Array(s.SourceURLs), pq.Array(failed),
		s.TotalListings, s.PriceRange, nullInt64(s.MinPrice), nullInt64(s.MaxPrice), s.Summary)
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunExists
	}

	const batchSize = 50
	for i := 0; i < len(s.RankedListings); i += batchSize {
		end := min(i+batchSize, len(s.RankedListings))
		if err := insertBatch(ctx, tx, s.RunID.String(), i, s.RankedListings[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

const listingColumns = 12

func insertBatch(ctx context.Context, tx *sql.Tx, runID string, offset int, batch []*models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*listingColumns)

	for idx, l := range batch {
		valueStrings = append(valueStrings, placeholders(idx*listingColumns, listingColumns))
		valueArgs = append(valueArgs,
			runID, offset+idx+1, l.Title,
			nullInt64(l.Price.Amount), l.Price.Currency, l.Price.Display,
			nullInt64(l.MileageKm), nullInt(l.Year),
			l.Location, l.URL, l.SourceURL, l.ImageURL)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings
			(run_id, rank, title, price_amount, currency, price_display, mileage_km, model_year,
			 location, url, source_url, image_url)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert listings: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// placeholders renders "($n+1,...,$n+count)".
func placeholders(base, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
