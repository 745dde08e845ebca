// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"stock_feed/internal/feature/quotes/adapters/finnhub"
	infrahttp "stock_feed/internal/platform/http"
	"stock_feed/internal/shared/ratelimiter"
)

// NewQuoteProvider creates a fully configured Finnhub client with HTTP
// client and a local call-budget limiter sized to the plan's per-minute quota.
func NewQuoteProvider() *finnhub.Client {
	cfg := finnhub.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	limiter := ratelimiter.NewRateLimiter(cfg.CallsPerMin, time.Minute)
	return finnhub.NewClient(cfg, httpClient, limiter)
}
