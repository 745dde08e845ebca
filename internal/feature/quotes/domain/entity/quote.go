// Package entity defines the domain models for the quotes feature.
package entity

import "time"

// MarketSession describes the state of the exchange at a single point in time.
// NextOpen is non-nil exactly when IsOpen is false.
type MarketSession struct {
	IsOpen   bool
	NextOpen *time.Time // Next opening time; nil while the market is open
}

// Quote is a point-in-time price snapshot for a stock symbol.
// It is immutable once constructed by the provider adapter.
type Quote struct {
	Symbol         string
	Price          float64 // Current price
	Change         float64 // Absolute change since previous close
	PercentChange  float64
	High           float64 // Session high
	Low            float64 // Session low
	Open           float64 // Session opening price
	PreviousClose  float64
	ObservedAt     time.Time  // When the quote was fetched
	IsLive         bool       // True only when fetched during market hours
	NextMarketOpen *time.Time // Mirrors MarketSession.NextOpen; nil while open
}

// CacheEntry wraps a stored quote together with its computed expiry.
// Entries are overwritten whole on the next successful fetch, never
// partially updated. A stale entry is kept as a fallback value until
// it is replaced.
type CacheEntry struct {
	Quote     Quote     `json:"quote"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stale reports whether the entry has outlived its expiry at the given time.
func (e CacheEntry) Stale(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
