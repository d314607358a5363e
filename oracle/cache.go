package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hotspot-advisor/common"
	"hotspot-advisor/models"

	"github.com/apex/log"
)

// QuoteCache keeps the last known good live quote per symbol.
type QuoteCache interface {
	// Load returns nil, nil when there is no unexpired quote.
	Load(ctx context.Context, symbol string) (*models.PriceQuote, error)
	Save(ctx context.Context, quote models.PriceQuote) error
}

// SQLQuoteCache stores quotes in the price_quote_cache MySQL table.
type SQLQuoteCache struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSQLQuoteCache(db *sql.DB, ttl time.Duration) *SQLQuoteCache {
	return &SQLQuoteCache{
		db:  db,
		ttl: ttl,
	}
}

// CreateCacheTable creates the quote cache table if it doesn't exist
func (s *SQLQuoteCache) CreateCacheTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_quote_cache (
			symbol VARCHAR(32) NOT NULL PRIMARY KEY,
			price DOUBLE NOT NULL,
			feed_id VARCHAR(80) NOT NULL,
			publish_time TIMESTAMP NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			INDEX idx_expires (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`)
	if err != nil {
		return fmt.Errorf("failed to create price_quote_cache table: %w", err)
	}
	log.Info("price_quote_cache table verified/created")
	return nil
}

func (s *SQLQuoteCache) Load(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	var (
		quote       = models.PriceQuote{Symbol: symbol}
		publishTime sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT price, feed_id, publish_time
		FROM price_quote_cache
		WHERE symbol = ? AND expires_at > NOW()
	`, symbol).Scan(&quote.Price, &quote.FeedID, &publishTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query quote cache: %w", err)
	}
	if publishTime.Valid {
		quote.PublishTime = publishTime.Time
	}
	return &quote, nil
}

func (s *SQLQuoteCache) Save(ctx context.Context, quote models.PriceQuote) error {
	var publishTime sql.NullTime
	if !quote.PublishTime.IsZero() {
		publishTime = sql.NullTime{Time: quote.PublishTime, Valid: true}
	}
	expiresAt := time.Now().Add(s.ttl)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO price_quote_cache (symbol, price, feed_id, publish_time, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			price = VALUES(price),
			feed_id = VALUES(feed_id),
			publish_time = VALUES(publish_time),
			expires_at = VALUES(expires_at),
			updated_at = NOW()
	`, quote.Symbol, quote.Price, quote.FeedID, publishTime, expiresAt)
	common.LogResult("savePriceQuote", result, err, false)
	if err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}

// CleanExpiredCache removes expired quotes
func (s *SQLQuoteCache) CleanExpiredCache(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM price_quote_cache WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired quotes: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
