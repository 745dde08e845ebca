// Package ws implements the WebSocket transport for live quote streaming.
package ws

import (
	"stock_feed/internal/feature/quotes/domain/entity"
)

// Client → server message.
type clientMessage struct {
	Type   string `json:"type"`   // "subscribe" or "unsubscribe"
	Symbol string `json:"symbol"` // Ticker symbol
}

// priceUpdateMessage is the server → client quote payload.
type priceUpdateMessage struct {
	Type           string  `json:"type"` // always "price_update"
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Change         float64 `json:"change"`
	PercentChange  float64 `json:"percentChange"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Open           float64 `json:"open"`
	PreviousClose  float64 `json:"previousClose"`
	Timestamp      int64   `json:"timestamp"` // Unix seconds
	IsLive         bool    `json:"isLive"`
	NextMarketOpen *int64  `json:"nextMarketOpen"` // Unix seconds; null while open
}

// errorMessage is the server → client structured error event.
type errorMessage struct {
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}

// invalidMessage is the bare error reply for malformed client input.
type invalidMessage struct {
	Error string `json:"error"`
}

// newPriceUpdate converts a domain quote to the wire format.
func newPriceUpdate(q entity.Quote) priceUpdateMessage {
	var nextOpen *int64
	if q.NextMarketOpen != nil {
		ts := q.NextMarketOpen.Unix()
		nextOpen = &ts
	}
	return priceUpdateMessage{
		Type:           "price_update",
		Symbol:         q.Symbol,
		Price:          q.Price,
		Change:         q.Change,
		PercentChange:  q.PercentChange,
		High:           q.High,
		Low:            q.Low,
		Open:           q.Open,
		PreviousClose:  q.PreviousClose,
		Timestamp:      q.ObservedAt.Unix(),
		IsLive:         q.IsLive,
		NextMarketOpen: nextOpen,
	}
}
