package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stock_feed/internal/feature/quotes/domain"
	"stock_feed/internal/feature/quotes/domain/entity"
	"stock_feed/internal/feature/stream/usecase"
)

// fakeReader はQuoteReaderのテスト用実装です。
type fakeReader struct {
	mu       sync.Mutex
	quote    func(symbol string, session entity.MarketSession) (entity.Quote, error)
	getCalls int
}

func (f *fakeReader) GetOrFetch(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.quote != nil {
		return f.quote(symbol, session)
	}
	q := entity.Quote{
		Symbol:        symbol,
		Price:         187.44,
		PreviousClose: 185.92,
		ObservedAt:    time.Now(),
		IsLive:        session.IsOpen,
	}
	if !session.IsOpen {
		q.NextMarketOpen = session.NextOpen
	}
	return q, nil
}

func (f *fakeReader) RefreshAndStore(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error) {
	return f.GetOrFetch(ctx, symbol, session)
}

func (f *fakeReader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// fakeChecker はSymbolCheckerのテスト用実装です。
type fakeChecker struct {
	known map[string]bool
}

func (f *fakeChecker) Exists(ctx context.Context, symbol string) (bool, error) {
	return f.known[symbol], nil
}

// dialTestServer はハンドラをhttptestサーバに載せてWebSocket接続を張ります。
func dialTestServer(t *testing.T, reader usecase.QuoteReader, clock usecase.SessionClock, checker SymbolChecker) (*websocket.Conn, func()) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	registry := usecase.NewSubscriptionRegistry()
	h := NewHandler(registry, reader, clock, checker, nil)

	r := gin.New()
	r.GET("/ws/stocks", h.Handle)
	server := httptest.NewServer(r)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/stocks"
	sock, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to dial websocket: %v", err)
	}

	return sock, func() {
		_ = sock.Close()
		server.Close()
	}
}

func openClock(time.Time) entity.MarketSession {
	return entity.MarketSession{IsOpen: true}
}

// readJSON は次のメッセージを読み取ってデコードします。
func readJSON(t *testing.T, sock *websocket.Conn) map[string]any {
	t.Helper()

	_ = sock.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := sock.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to decode %q: %v", data, err)
	}
	return out
}

func send(t *testing.T, sock *websocket.Conn, payload string) {
	t.Helper()
	if err := sock.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}
}

// TestHandler_SubscribePushesInstantValue は購読直後に最初の値が配信されることを検証します。
func TestHandler_SubscribePushesInstantValue(t *testing.T) {
	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{"type": "subscribe", "symbol": "AAPL"}`)

	msg := readJSON(t, sock)
	if msg["type"] != "price_update" {
		t.Fatalf("expected price_update, got %v", msg["type"])
	}
	if msg["symbol"] != "AAPL" {
		t.Errorf("expected symbol AAPL, got %v", msg["symbol"])
	}
	if msg["isLive"] != true {
		t.Errorf("expected isLive=true, got %v", msg["isLive"])
	}
	if msg["nextMarketOpen"] != nil {
		t.Errorf("expected nextMarketOpen=null while open, got %v", msg["nextMarketOpen"])
	}
	if msg["price"] != 187.44 {
		t.Errorf("expected price 187.44, got %v", msg["price"])
	}
}

// TestHandler_ClosedMarketPayload は閉場中のペイロード形式を検証します。
func TestHandler_ClosedMarketPayload(t *testing.T) {
	nextOpen := time.Now().Add(17 * time.Hour).Truncate(time.Second)
	closedClock := func(time.Time) entity.MarketSession {
		return entity.MarketSession{IsOpen: false, NextOpen: &nextOpen}
	}

	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, closedClock, nil)
	defer teardown()

	send(t, sock, `{"type": "subscribe", "symbol": "GME"}`)

	msg := readJSON(t, sock)
	if msg["isLive"] != false {
		t.Errorf("expected isLive=false while closed, got %v", msg["isLive"])
	}
	got, ok := msg["nextMarketOpen"].(float64)
	if !ok {
		t.Fatalf("expected numeric nextMarketOpen, got %v", msg["nextMarketOpen"])
	}
	if int64(got) != nextOpen.Unix() {
		t.Errorf("nextMarketOpen = %v, want %v", int64(got), nextOpen.Unix())
	}
}

// TestHandler_InvalidJSON は不正JSONへのエラー応答とコネクション維持を検証します。
func TestHandler_InvalidJSON(t *testing.T) {
	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{not json`)

	msg := readJSON(t, sock)
	if msg["error"] != "Invalid JSON" {
		t.Errorf(`expected {"error": "Invalid JSON"}, got %v`, msg)
	}

	// コネクションは生きていること
	send(t, sock, `{"type": "subscribe", "symbol": "AAPL"}`)
	msg = readJSON(t, sock)
	if msg["type"] != "price_update" {
		t.Errorf("connection should survive invalid JSON, got %v", msg)
	}
}

// TestHandler_SubscribeMissingSymbol はsymbol欠落時のエラー応答を検証します。
func TestHandler_SubscribeMissingSymbol(t *testing.T) {
	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{"type": "subscribe"}`)

	msg := readJSON(t, sock)
	if msg["error"] != "Symbol is required" {
		t.Errorf(`expected {"error": "Symbol is required"}, got %v`, msg)
	}
	if reader.calls() != 0 {
		t.Errorf("expected no quote fetch, got %d", reader.calls())
	}
}

// TestHandler_UnknownMessageType は未知のtypeへの構造化エラー応答を検証します。
func TestHandler_UnknownMessageType(t *testing.T) {
	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{"type": "frobnicate", "symbol": "AAPL"}`)

	msg := readJSON(t, sock)
	if msg["type"] != "error" {
		t.Errorf("expected error event, got %v", msg)
	}
}

// TestHandler_UnknownSymbolRejected はディレクトリ未登録銘柄の購読拒否を検証します。
func TestHandler_UnknownSymbolRejected(t *testing.T) {
	reader := &fakeReader{}
	checker := &fakeChecker{known: map[string]bool{"AAPL": true}}
	sock, teardown := dialTestServer(t, reader, openClock, checker)
	defer teardown()

	send(t, sock, `{"type": "subscribe", "symbol": "NOSUCH"}`)

	msg := readJSON(t, sock)
	if msg["type"] != "error" {
		t.Fatalf("expected error event, got %v", msg)
	}
	if reader.calls() != 0 {
		t.Errorf("expected no quote fetch for rejected symbol, got %d", reader.calls())
	}

	// 既知の銘柄は通ること
	send(t, sock, `{"type": "subscribe", "symbol": "AAPL"}`)
	msg = readJSON(t, sock)
	if msg["type"] != "price_update" {
		t.Errorf("expected price_update for known symbol, got %v", msg)
	}
}

// TestHandler_ResubscribeNoDuplicatePush は再購読が追加配信を生まないことを検証します。
func TestHandler_ResubscribeNoDuplicatePush(t *testing.T) {
	reader := &fakeReader{}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{"type": "subscribe", "symbol": "AAPL"}`)
	_ = readJSON(t, sock)

	send(t, sock, `{"type": "subscribe", "symbol": "AAPL"}`)

	// 再購読に対して即時配信が無いこと（次のメッセージはスケジューラの
	// ティックだが、15秒間隔なのでこの短い待ちでは届かない）。
	_ = sock.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := sock.ReadMessage(); err == nil {
		t.Error("expected no immediate push on re-subscribe")
	}
	if reader.calls() != 1 {
		t.Errorf("expected 1 fetch, got %d", reader.calls())
	}
}

// TestHandler_UpstreamFailureSendsErrorEvent は初回取得失敗時のエラーイベントを検証します。
func TestHandler_UpstreamFailureSendsErrorEvent(t *testing.T) {
	reader := &fakeReader{
		quote: func(symbol string, session entity.MarketSession) (entity.Quote, error) {
			return entity.Quote{}, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
		},
	}
	sock, teardown := dialTestServer(t, reader, openClock, nil)
	defer teardown()

	send(t, sock, `{"type": "subscribe", "symbol": "NOPE"}`)

	msg := readJSON(t, sock)
	if msg["type"] != "error" {
		t.Errorf("expected error event, got %v", msg)
	}
}
