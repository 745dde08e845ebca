package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"stock_feed/internal/feature/quotes/adapters/finnhub/dto"
	"stock_feed/internal/feature/quotes/domain"
	"stock_feed/internal/feature/quotes/domain/entity"
	"stock_feed/internal/feature/quotes/usecase"
	"stock_feed/internal/shared/ratelimiter"
)

// Client はFinnhub外部APIからクオートを取得するQuoteProvider実装です。
type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
}

// ClientがQuoteProviderを実装していることをコンパイル時に検証します。
var _ usecase.QuoteProvider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
// limiter guards the client-side call budget; nil disables the guard.
func NewClient(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	return &Client{cfg: cfg, client: client, limiter: limiter}
}

// Fetch はFinnhub APIから1銘柄のクオートを取得します。
// ローカルの呼び出し枠が尽きている場合はHTTPリクエストを発行せずに
// domain.ErrRateLimitedを返します。
func (c *Client) Fetch(ctx context.Context, symbol string) (entity.Quote, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return entity.Quote{}, fmt.Errorf("%w: local call budget exhausted", domain.ErrRateLimited)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", c.cfg.APIKey)
	u := fmt.Sprintf("%s/quote?%s", c.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.Quote{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return entity.Quote{}, fmt.Errorf("%w: finnhub http %d", domain.ErrRateLimited, res.StatusCode)
	case res.StatusCode >= 400:
		return entity.Quote{}, fmt.Errorf("%w: finnhub http %d", domain.ErrUnavailable, res.StatusCode)
	}

	var body dto.QuoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return entity.Quote{}, fmt.Errorf("%w: decode: %w", domain.ErrUnavailable, err)
	}
	// Finnhubは未知の銘柄に対して全フィールドゼロの200を返します。
	if body.Current == 0 && body.PreviousClose == 0 && body.Timestamp == 0 {
		return entity.Quote{}, fmt.Errorf("%w: empty quote for %s", domain.ErrUnavailable, symbol)
	}

	observed := time.Now()
	if body.Timestamp > 0 {
		observed = time.Unix(body.Timestamp, 0)
	}

	return entity.Quote{
		Symbol:        symbol,
		Price:         body.Current,
		Change:        body.Change,
		PercentChange: body.PercentChange,
		High:          body.High,
		Low:           body.Low,
		Open:          body.Open,
		PreviousClose: body.PreviousClose,
		ObservedAt:    observed,
	}, nil
}
