package main

import (
	"log"
	"os"

	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"stock_feed/internal/app/di"
	"stock_feed/internal/app/router"
	quotesusecase "stock_feed/internal/feature/quotes/usecase"
	streamusecase "stock_feed/internal/feature/stream/usecase"
	streamws "stock_feed/internal/feature/stream/transport/ws"
	symboladapters "stock_feed/internal/feature/symbols/adapters"
	symbolhandler "stock_feed/internal/feature/symbols/transport/handler"
	symbolusecase "stock_feed/internal/feature/symbols/usecase"
	"stock_feed/internal/feature/quotes/domain/marketclock"
	infradb "stock_feed/internal/platform/db"
	infraredis "stock_feed/internal/platform/redis"
)

func main() {
	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Falling back to in-process quote store.")
		rdb = nil
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	// DB（任意。未設定時は銘柄検証と/symbolsを無効化して起動する）
	var db *gorm.DB
	if os.Getenv("DB_HOST") != "" || os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		db = infradb.OpenDB()
	} else {
		log.Println("[WARN] DB not configured. Running without symbol validation.")
	}

	// Provider / Store
	provider := di.NewQuoteProvider()
	store := di.NewQuoteStore(rdb)

	// Usecase
	quoteUC := quotesusecase.NewQuoteUsecase(provider, store)
	registry := streamusecase.NewSubscriptionRegistry()

	// 銘柄ディレクトリ（DBがある場合のみ）
	var checker streamws.SymbolChecker
	var symbolH *symbolhandler.SymbolHandler
	if db != nil {
		symbolUC := symbolusecase.NewSymbolUsecase(symboladapters.NewSymbolRepository(db))
		checker = symbolUC
		symbolH = symbolhandler.NewSymbolHandler(symbolUC)
	}

	// Handler
	streamH := streamws.NewHandler(registry, quoteUC, marketclock.Status, checker, nil)

	// ルータ生成
	router := router.NewRouter(streamH, symbolH)

	// FINNHUB_API_KEYチェック（開発中の注意喚起）
	if os.Getenv("FINNHUB_API_KEY") == "" {
		log.Println("[WARN] FINNHUB_API_KEY is not set. Upstream quote fetches will fail.")
	}

	if err := router.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
