package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"finn-deal-finder/models"
	"finn-deal-finder/utils"
)

// PostgresWriter records every scored listing of a search into the
// price_history table so prices can be followed across searches.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	}
	if err := retry.Do(ctx, "postgres ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return NewPostgresWriterFromDB(ctx, db, logger)
}

// NewPostgresWriterFromDB wraps an already-open database handle.
func NewPostgresWriterFromDB(ctx context.Context, db *sql.DB, logger *utils.Logger) (*PostgresWriter, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_history (
			id          SERIAL PRIMARY KEY,
			finn_id     TEXT         NOT NULL,
			title       TEXT         NOT NULL,
			price       INTEGER,
			deal_score  SMALLINT     NOT NULL,
			category    VARCHAR(32)  NOT NULL,
			url         TEXT         NOT NULL,
			recorded_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_price_history_finn_id  ON price_history(finn_id);
		CREATE INDEX IF NOT EXISTS idx_price_history_category ON price_history(category);
	`)
	return err
}

// Write batch-inserts one price_history row per listing.
func (pw *PostgresWriter) Write(ctx context.Context, result *models.SearchResult, category models.Category) error {
	if result == nil || len(result.Listings) == 0 {
		return nil
	}

	const batchSize = 50
	listings := result.Listings
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(ctx, listings[i:end], category); err != nil {
			return fmt.Errorf("postgres: insert batch: %w", err)
		}
	}

	pw.logger.Info("[postgres] Recorded %d prices for %s", len(listings), category)
	return nil
}

func (pw *PostgresWriter) insertBatch(ctx context.Context, batch []models.ScoredListing, category models.Category) error {
	const cols = 6
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))

		var price interface{}
		if l.Price != nil {
			price = int64(*l.Price)
		}
		valueArgs = append(valueArgs,
			l.ID, l.Title, price, int64(l.DealScore), string(category), l.URL)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_history (finn_id, title, price, deal_score, category, url)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.ExecContext(ctx, query, valueArgs...)
	return err
}

// History returns every recorded price of one listing, oldest first.
func (pw *PostgresWriter) History(ctx context.Context, finnID string) ([]models.PricePoint, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT finn_id, title, price, deal_score, category, url, recorded_at
		FROM price_history
		WHERE finn_id = $1
		ORDER BY recorded_at, id
	`, finnID)
	if err != nil {
		return nil, fmt.Errorf("postgres: history: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var (
			p        models.PricePoint
			price    sql.NullInt64
			category string
		)
		if err := rows.Scan(&p.FinnID, &p.Title, &price, &p.DealScore, &category, &p.URL, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if price.Valid {
			v := int(price.Int64)
			p.Price = &v
		}
		p.Category = models.Category(category)
		points = append(points, p)
	}
	return points, rows.Err()
}

// CategoryTrends returns per-day price aggregates for category over the
// last days days, oldest first. An empty category covers all categories.
func (pw *PostgresWriter) CategoryTrends(ctx context.Context, category models.Category, days int) ([]models.DailyPrice, error) {
	if days < 1 {
		days = 1
	}
	rows, err := pw.db.QueryContext(ctx, `
		SELECT date_trunc('day', recorded_at) AS day,
		       AVG(price)::float8, COUNT(price), MIN(price), MAX(price)
		FROM price_history
		WHERE ($1 = '' OR category = $1)
		  AND price IS NOT NULL
		  AND recorded_at >= NOW() - make_interval(days => $2)
		GROUP BY day
		ORDER BY day
	`, string(category), days)
	if err != nil {
		return nil, fmt.Errorf("postgres: trends: %w", err)
	}
	defer rows.Close()

	var out []models.DailyPrice
	for rows.Next() {
		var d models.DailyPrice
		if err := rows.Scan(&d.Day, &d.Average, &d.Count, &d.Min, &d.Max); err != nil {
			return nil, fmt.Errorf("postgres: scan trend row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
