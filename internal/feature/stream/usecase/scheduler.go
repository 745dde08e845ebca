package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stock_feed/internal/feature/quotes/domain"
	"stock_feed/internal/feature/quotes/domain/entity"
)

// Default tick cadence. Closed-market ticks only propagate cache reads
// and detect the open transition; they trigger no new upstream fetches
// once an entry exists.
const (
	DefaultOpenInterval    = 15 * time.Second
	DefaultClosedInterval  = 60 * time.Second
	DefaultBackoffInterval = 60 * time.Second
)

// QuoteReader はスケジューラが消費するクオート取得レイヤーのインターフェースです。
type QuoteReader interface {
	GetOrFetch(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error)
	RefreshAndStore(ctx context.Context, symbol string, session entity.MarketSession) (entity.Quote, error)
}

// QuotePusher delivers updates to a single client connection. A pusher
// error means the transport is gone and the loop must stop.
type QuotePusher interface {
	PushQuote(q entity.Quote) error
	PushError(symbol, message string) error
}

// SessionClock computes the market session for an instant.
type SessionClock func(now time.Time) entity.MarketSession

// Scheduler is the per-connection control loop. It decides cadence from
// the market session, triggers fetch-or-cache reads for every subscribed
// symbol and pushes the results to the transport.
//
// States: Idle (not running), Running (loop active), Cancelled (Stop
// requested; no further ticks). Ensure starts at most one loop per
// connection, so repeated subscribes never spawn competing loops.
type Scheduler struct {
	connID   string
	registry *SubscriptionRegistry
	quotes   QuoteReader
	push     QuotePusher
	clock    SessionClock
	logger   *slog.Logger

	openInterval    time.Duration
	closedInterval  time.Duration
	backoffInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler はSchedulerの新しいインスタンスを生成します。
func NewScheduler(connID string, registry *SubscriptionRegistry, quotes QuoteReader, push QuotePusher, clock SessionClock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		connID:          connID,
		registry:        registry,
		quotes:          quotes,
		push:            push,
		clock:           clock,
		logger:          logger,
		openInterval:    DefaultOpenInterval,
		closedInterval:  DefaultClosedInterval,
		backoffInterval: DefaultBackoffInterval,
		now:             time.Now,
	}
}

// Ensure starts the loop if it is not already running. Safe to call on
// every subscribe message.
func (s *Scheduler) Ensure(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(loopCtx)
}

// Stop cancels the loop and waits for it to exit. Idempotent. An
// in-flight fetch may complete and update the shared cache, but nothing
// is pushed after the transport reports closure.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Running reports whether the loop is currently active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the tick loop. The first tick fires after one interval: the
// connection lifecycle already pushed an instant value on subscribe.
func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.logger.Debug("scheduler started", "conn", s.connID)

	var prev *entity.MarketSession
	session := s.clock(s.now())

	timer := time.NewTimer(s.interval(session, false))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler cancelled", "conn", s.connID)
			return
		case <-timer.C:
		}

		// ティック内の全銘柄が単一のセッションスナップショットを共有します。
		session = s.clock(s.now())

		if prev != nil && prev.IsOpen && !session.IsOpen {
			// 開場→閉場の遷移：カデンス切り替えの前に全購読銘柄を
			// 1回フレッシュ取得し、閉場フォールバック用エントリを確保します。
			if !s.finalFetchPass(ctx, session) {
				return
			}
			prev = &session
			timer.Reset(s.interval(session, false))
			continue
		}

		backoff, alive := s.tick(ctx, session)
		if !alive {
			return
		}
		prev = &session
		timer.Reset(s.interval(session, backoff))
	}
}

// tick serves one update round. It returns backoff=true when the
// upstream looks unreachable, and alive=false when the transport is gone.
func (s *Scheduler) tick(ctx context.Context, session entity.MarketSession) (backoff, alive bool) {
	for _, symbol := range s.registry.SymbolsFor(s.connID) {
		q, err := s.quotes.GetOrFetch(ctx, symbol, session)
		switch {
		case err == nil:
			if err := s.push.PushQuote(q); err != nil {
				s.logger.Info("push failed, stopping loop", "conn", s.connID, "symbol", symbol, "error", err)
				return false, false
			}
		case errors.Is(err, domain.ErrRateLimited):
			// この銘柄だけ今回のティックをスキップ
			s.logger.Warn("rate limited, skipping symbol this tick", "conn", s.connID, "symbol", symbol)
		case errors.Is(err, domain.ErrQuoteUnavailable):
			// 上流が落ちていてフォールバックも無い：この銘柄のエラーを
			// クライアントへ通知し、次ティックまで延長スリープします。
			backoff = true
			if err := s.push.PushError(symbol, "quote unavailable"); err != nil {
				return false, false
			}
		default:
			s.logger.Error("quote update failed", "conn", s.connID, "symbol", symbol, "error", err)
			backoff = true
		}
	}
	return backoff, true
}

// finalFetchPass refreshes every subscribed symbol once at the
// open→closed transition. Returns false when the transport is gone.
func (s *Scheduler) finalFetchPass(ctx context.Context, session entity.MarketSession) bool {
	s.logger.Info("market closed, caching final prices", "conn", s.connID)
	for _, symbol := range s.registry.SymbolsFor(s.connID) {
		q, err := s.quotes.RefreshAndStore(ctx, symbol, session)
		if err != nil {
			s.logger.Warn("final fetch failed", "conn", s.connID, "symbol", symbol, "error", err)
			continue
		}
		if err := s.push.PushQuote(q); err != nil {
			return false
		}
	}
	return true
}

// interval picks the sleep before the next tick.
func (s *Scheduler) interval(session entity.MarketSession, backoff bool) time.Duration {
	if backoff {
		return s.backoffInterval
	}
	if session.IsOpen {
		return s.openInterval
	}
	return s.closedInterval
}
