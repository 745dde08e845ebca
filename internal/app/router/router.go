package router

import (
	streamws "stock_feed/internal/feature/stream/transport/ws"
	symbolhandler "stock_feed/internal/feature/symbols/transport/handler"
	"stock_feed/internal/platform/http/handler"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles the HTTP surface. The symbol handler is optional;
// when nil (no database configured) the /symbols route is not registered.
func NewRouter(stream *streamws.Handler, symbol *symbolhandler.SymbolHandler) *gin.Engine {
	r := gin.Default()

	// 導通確認用
	r.GET("/healthz", handler.Health)

	// ライブ配信用WebSocketエンドポイント
	r.GET("/ws/stocks", stream.Handle)

	// 購読可能な銘柄の一覧
	if symbol != nil {
		r.GET("/symbols", symbol.List)
	}

	return r
}
