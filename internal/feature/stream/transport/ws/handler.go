package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stock_feed/internal/feature/stream/usecase"
)

// SymbolChecker validates ticker symbols on subscribe. nil disables
// validation.
type SymbolChecker interface {
	Exists(ctx context.Context, symbol string) (bool, error)
}

// Handler upgrades HTTP requests to WebSocket connections and drives
// the connection lifecycle: Connecting → Open → Closed.
type Handler struct {
	registry *usecase.SubscriptionRegistry
	quotes   usecase.QuoteReader
	clock    usecase.SessionClock
	symbols  SymbolChecker
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler はHandlerの新しいインスタンスを生成します。
func NewHandler(registry *usecase.SubscriptionRegistry, quotes usecase.QuoteReader, clock usecase.SessionClock, symbols SymbolChecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		quotes:   quotes,
		clock:    clock,
		symbols:  symbols,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle はWebSocketエンドポイントのginハンドラです。アップグレード後は
// この読み取りループがコネクションの寿命を所有します。
//
// エンドポイント例:
// GET /ws/stocks
func (h *Handler) Handle(c *gin.Context) {
	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	cn := newConn(sock)
	sched := usecase.NewScheduler(connID, h.registry, h.quotes, cn, h.clock, h.logger)

	// コネクション寿命のコンテキスト。リクエストコンテキストとは切り離し、
	// 読み取りループ終了時に必ずキャンセルします。
	ctx, cancel := context.WithCancel(context.Background())

	h.logger.Info("client connected", "conn", connID)
	h.readLoop(ctx, connID, cn, sched)

	// 切断：購読解除の有無にかかわらず無条件で全リソースを解放します。
	cancel()
	sched.Stop()
	released := h.registry.DropConnection(connID)
	cn.Close()
	h.logger.Info("client disconnected", "conn", connID, "released", len(released))
}

// readLoop consumes client messages until the transport fails or closes.
func (h *Handler) readLoop(ctx context.Context, connID string, cn *conn, sched *usecase.Scheduler) {
	for {
		_, data, err := cn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "conn", connID, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// 不正入力はコネクションを切らずにエラー応答
			if err := cn.pushInvalid("Invalid JSON"); err != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "subscribe":
			if !h.handleSubscribe(ctx, connID, msg.Symbol, cn, sched) {
				return
			}
		case "unsubscribe":
			h.handleUnsubscribe(connID, msg.Symbol, sched)
		default:
			h.logger.Warn("unknown message type", "conn", connID, "type", msg.Type)
			if err := cn.pushErrorMessage("Unknown message type"); err != nil {
				return
			}
		}
	}
}

// handleSubscribe processes one subscribe message. It returns false
// when the transport is gone and the read loop should exit.
func (h *Handler) handleSubscribe(ctx context.Context, connID, symbol string, cn *conn, sched *usecase.Scheduler) bool {
	if symbol == "" {
		return cn.pushInvalid("Symbol is required") == nil
	}

	if h.symbols != nil {
		exists, err := h.symbols.Exists(ctx, symbol)
		if err != nil {
			// ディレクトリ障害で購読を止めない。検証せずに通します。
			h.logger.Warn("symbol lookup failed", "symbol", symbol, "error", err)
		} else if !exists {
			return cn.pushErrorMessage("Unknown symbol: "+symbol) == nil
		}
	}

	added := h.registry.Subscribe(connID, symbol)
	if !added {
		// 再購読はno-op。重複ループも重複配信も作らない。
		return true
	}

	// 次のティックを待たせず、同期的に最初の値を配信します。
	session := h.clock(time.Now())
	q, err := h.quotes.GetOrFetch(ctx, symbol, session)
	if err != nil {
		h.logger.Error("initial quote failed", "conn", connID, "symbol", symbol, "error", err)
		if err := cn.PushError(symbol, "quote unavailable"); err != nil {
			return false
		}
	} else if err := cn.PushQuote(q); err != nil {
		return false
	}

	sched.Ensure(ctx)
	return true
}

// handleUnsubscribe processes one unsubscribe message.
func (h *Handler) handleUnsubscribe(connID, symbol string, sched *usecase.Scheduler) {
	if symbol == "" {
		return
	}
	h.registry.Unsubscribe(connID, symbol)

	// 購読が空になったらスケジューラをIdleへ。コネクションは開いたまま。
	if len(h.registry.SymbolsFor(connID)) == 0 {
		sched.Stop()
	}
}
