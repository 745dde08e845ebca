// Package cache provides QuoteStore implementations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stock_feed/internal/feature/quotes/domain/entity"
	"stock_feed/internal/feature/quotes/usecase"
)

// retention is the Redis key lifetime. Entries must outlive their own
// expires_at so an expired entry is still readable as a fallback value;
// the retention only bounds growth from symbols nobody subscribes to
// anymore. It must exceed the 24h entry TTL cap.
const retention = 7 * 24 * time.Hour

// RedisQuoteStore はRedisをバックエンドとするQuoteStore実装です。
// エントリの鮮度判定はエントリ自身のexpires_atで行い、RedisのTTLには
// 依存しません（期限切れエントリをフォールバック値として保持するため）。
type RedisQuoteStore struct {
	rdb       *redis.Client
	namespace string
}

var _ usecase.QuoteStore = (*RedisQuoteStore)(nil)

// NewRedisQuoteStore はRedisQuoteStoreの新しいインスタンスを生成します。
// If namespace is empty, it uses "stock_price".
func NewRedisQuoteStore(rdb *redis.Client, namespace string) *RedisQuoteStore {
	if namespace == "" {
		namespace = "stock_price"
	}
	return &RedisQuoteStore{rdb: rdb, namespace: namespace}
}

// Get retrieves the stored entry for symbol. A miss returns (nil, nil).
func (s *RedisQuoteStore) Get(ctx context.Context, symbol string) (*entity.CacheEntry, error) {
	b, err := s.rdb.Get(ctx, s.key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry entity.CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		// 破損したエントリは削除してミス扱い
		_ = s.rdb.Del(ctx, s.key(symbol)).Err()
		return nil, nil
	}
	return &entry, nil
}

// Set stores the entry keyed by symbol, overwriting any previous value.
func (s *RedisQuoteStore) Set(ctx context.Context, symbol string, entry entity.CacheEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(symbol), b, retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// key generates the cache key for a symbol.
func (s *RedisQuoteStore) key(symbol string) string {
	return fmt.Sprintf("%s:%s", s.namespace, safe(symbol))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
