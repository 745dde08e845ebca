// Package usecase は株価クオート取得のビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock_feed/internal/feature/quotes/domain"
	"stock_feed/internal/feature/quotes/domain/entity"
)

// maxClosedTTL is the cap on a closed-market cache entry's lifetime.
const maxClosedTTL = 24 * time.Hour

// QuoteProvider は上流プロバイダから1銘柄のクオートを取得するインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type QuoteProvider interface {
	// Fetch retrieves a fresh quote for the symbol. It returns
	// domain.ErrRateLimited or domain.ErrUnavailable on upstream failure.
	Fetch(ctx context.Context, symbol string) (entity.Quote, error)
}

// QuoteStore はクオートのキー・バリュー保存レイヤーを抽象化します。
// Get returns (nil, nil) on a miss.
type QuoteStore interface {
	Get(ctx context.Context, symbol string) (*entity.CacheEntry, error)
	Set(ctx context.Context, symbol string, entry entity.CacheEntry) error
}

// QuoteUsecase decides, per request, whether to hit the upstream provider
// or reuse a stored value, based on the market session.
//
// Policy:
//   - market open: always fetch fresh; store the result so it is available
//     as a closed-market fallback later.
//   - market closed: serve the stored entry regardless of its expiry; only
//     fetch when no entry exists at all.
//   - fetch failure: fall back to the most recent stored entry; with no
//     entry, return domain.ErrQuoteUnavailable. Never synthesize data.
type QuoteUsecase struct {
	provider QuoteProvider
	store    QuoteStore
	now      func() time.Time
}

// NewQuoteUsecase はQuoteUsecaseの新しいインスタンスを生成します。
func NewQuoteUsecase(provider QuoteProvider, store QuoteStore) *QuoteUsecase {
	return &QuoteUsecase{provider: provider, store: store, now: time.Now}
}

// GetOrFetch returns the quote for symbol under the given session snapshot.
func (qu *QuoteUsecase) GetOrFetch(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error) {
	if session.IsOpen {
		q, err := qu.fetchAndStore(ctx, symbol, session)
		if err != nil {
			return qu.fallback(ctx, symbol, session, err)
		}
		return q, nil
	}

	// 閉場中：期限切れでも保存済みエントリをそのまま返します。
	// セッション関連フィールドは保存時のものが古いため読み出し時に上書きします。
	entry, err := qu.store.Get(ctx, symbol)
	if err != nil {
		slog.Warn("quote store read failed", "symbol", symbol, "error", err)
	}
	if entry != nil {
		return refreshSessionFields(entry.Quote, session), nil
	}

	q, err := qu.fetchAndStore(ctx, symbol, session)
	if err != nil {
		return qu.fallback(ctx, symbol, session, err)
	}
	return q, nil
}

// RefreshAndStore always fetches from the provider and stores the result,
// regardless of any existing entry. Used for the open→closed final-fetch
// pass and for the instant first value on subscribe. On failure it falls
// back to the stored entry like GetOrFetch.
func (qu *QuoteUsecase) RefreshAndStore(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error) {
	q, err := qu.fetchAndStore(ctx, symbol, session)
	if err != nil {
		return qu.fallback(ctx, symbol, session, err)
	}
	return q, nil
}

// fetchAndStore fetches a fresh quote, stamps the session fields and
// writes it to the store keyed by symbol.
func (qu *QuoteUsecase) fetchAndStore(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error) {
	q, err := qu.provider.Fetch(ctx, symbol)
	if err != nil {
		return entity.Quote{}, err
	}

	q.IsLive = session.IsOpen
	if session.IsOpen {
		q.NextMarketOpen = nil
	} else {
		q.NextMarketOpen = session.NextOpen
	}

	now := qu.now()
	entry := entity.CacheEntry{
		Quote:     q,
		ExpiresAt: now.Add(qu.closedTTL(now, session)),
	}
	// ストアへの書き込みはベストエフォート。失敗してもクオートは返します。
	if err := qu.store.Set(ctx, symbol, entry); err != nil {
		slog.Warn("quote store write failed", "symbol", symbol, "error", err)
	}
	return q, nil
}

// fallback serves the most recent stored entry after a failed fetch,
// ignoring expiry. Rate-limit errors pass through untouched so the
// scheduler can skip the symbol for the tick.
func (qu *QuoteUsecase) fallback(ctx context.Context, symbol string, session entity.MarketSession, fetchErr error) (entity.Quote, error) {
	if errors.Is(fetchErr, domain.ErrRateLimited) {
		return entity.Quote{}, fetchErr
	}

	entry, err := qu.store.Get(ctx, symbol)
	if err != nil || entry == nil {
		return entity.Quote{}, fmt.Errorf("%w: %s: %w", domain.ErrQuoteUnavailable, symbol, fetchErr)
	}

	slog.Info("serving stale quote after fetch failure", "symbol", symbol, "error", fetchErr)
	return refreshSessionFields(entry.Quote, session), nil
}

// closedTTL computes min(24h, nextOpen - now), clamped to be non-negative.
// While the market is open (or NextOpen already passed) the 24h cap applies.
func (qu *QuoteUsecase) closedTTL(now time.Time, session entity.MarketSession) time.Duration {
	if session.IsOpen || session.NextOpen == nil {
		return maxClosedTTL
	}
	ttl := session.NextOpen.Sub(now)
	if ttl <= 0 || ttl > maxClosedTTL {
		return maxClosedTTL
	}
	return ttl
}

// refreshSessionFields overwrites the stored quote's stale session fields
// with the current session snapshot. A cached quote is never live.
func refreshSessionFields(q entity.Quote, session entity.MarketSession) entity.Quote {
	q.IsLive = false
	if session.IsOpen {
		q.NextMarketOpen = nil
	} else {
		q.NextMarketOpen = session.NextOpen
	}
	return q
}
