// Package finnhub provides a client for the Finnhub stock quote API.
package finnhub

import (
	"os"
	"time"
)

// Config holds configuration for the Finnhub API client.
type Config struct {
	APIKey      string        // API key for authentication
	BaseURL     string        // Base URL for the API (e.g., "https://finnhub.io/api/v1")
	Timeout     time.Duration // HTTP request timeout
	CallsPerMin int           // Client-side call budget per minute
}

// LoadConfig loads Finnhub configuration from environment variables.
func LoadConfig() Config {
	base := os.Getenv("FINNHUB_BASE_URL")
	if base == "" {
		base = "https://finnhub.io/api/v1"
	}
	return Config{
		APIKey:      os.Getenv("FINNHUB_API_KEY"),
		BaseURL:     base,
		Timeout:     10 * time.Second,
		CallsPerMin: 60, // Finnhub free tier allows 60 calls/min
	}
}
