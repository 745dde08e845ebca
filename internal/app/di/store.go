package di

import (
	"github.com/redis/go-redis/v9"

	"stock_feed/internal/feature/quotes/usecase"
	"stock_feed/internal/platform/cache"
)

// NewQuoteStore creates a QuoteStore implementation.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to an in-process memory store.
func NewQuoteStore(rdb *redis.Client) usecase.QuoteStore {
	if rdb != nil {
		return cache.NewRedisQuoteStore(rdb, "stock_price")
	}
	return cache.NewMemoryQuoteStore()
}
