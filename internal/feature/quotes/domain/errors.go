// Package domain defines domain-level errors for the quotes feature.
package domain

import "errors"

// Upstream errors for quote operations. The scheduler classifies these
// with errors.Is to decide per-symbol versus per-connection recovery.
var (
	// ErrRateLimited indicates the upstream provider refused the request
	// because the call budget is exhausted. Recovered by skipping the
	// symbol for the current tick.
	ErrRateLimited = errors.New("quote provider rate limited")

	// ErrUnavailable indicates the upstream provider failed or returned
	// an unusable payload. Recovered by serving the stored entry when
	// one exists.
	ErrUnavailable = errors.New("quote provider unavailable")

	// ErrQuoteUnavailable indicates a fetch failed and no stored entry
	// exists to fall back to. Surfaced to the client as an error event
	// for that symbol only.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)
