package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each quote is
// stored at key "quote:{exchange}:{symbol}" with fields "bid", "ask", and
// "ts" (Unix nanosecond timestamp), and expires after the configured TTL so
// a dead feed never serves stale prices.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(exchange, symbol string) string {
	return "quote:" + exchange + ":" + symbol
}

// Set stores a quote with the given TTL.
func (qc *QuoteCache) Set(ctx context.Context, q domain.Quote, ttl time.Duration) error {
	key := quoteKey(q.Exchange, q.Symbol)
	fields := map[string]interface{}{
		"bid": q.Bid.String(),
		"ask": q.Ask.String(),
		"ts":  strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// Get retrieves a cached quote. It returns domain.ErrNotFound when the key
// does not exist or has expired.
func (qc *QuoteCache) Get(ctx context.Context, exchange, symbol string) (domain.Quote, error) {
	key := quoteKey(exchange, symbol)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	bid, err := decimal.NewFromString(vals["bid"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid %s: %w", key, err)
	}
	ask, err := decimal.NewFromString(vals["ask"])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask %s: %w", key, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return domain.Quote{
		Exchange:   exchange,
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
