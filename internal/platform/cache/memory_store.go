package cache

import (
	"context"
	"sync"

	"stock_feed/internal/feature/quotes/domain/entity"
	"stock_feed/internal/feature/quotes/usecase"
)

// MemoryQuoteStore はプロセス内マップをバックエンドとするQuoteStore実装です。
// Redisが構成されていない環境でのフォールバックとして使います。
type MemoryQuoteStore struct {
	mu      sync.RWMutex
	entries map[string]entity.CacheEntry
}

var _ usecase.QuoteStore = (*MemoryQuoteStore)(nil)

// NewMemoryQuoteStore はMemoryQuoteStoreの新しいインスタンスを生成します。
func NewMemoryQuoteStore() *MemoryQuoteStore {
	return &MemoryQuoteStore{entries: make(map[string]entity.CacheEntry)}
}

// Get retrieves the stored entry for symbol. A miss returns (nil, nil).
func (s *MemoryQuoteStore) Get(ctx context.Context, symbol string) (*entity.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Set stores the entry keyed by symbol, overwriting any previous value.
func (s *MemoryQuoteStore) Set(ctx context.Context, symbol string, entry entity.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[symbol] = entry
	return nil
}
