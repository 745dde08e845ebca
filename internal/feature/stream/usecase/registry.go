// Package usecase は配信ストリームの購読管理と更新スケジューリングを実装します。
package usecase

import (
	"sort"
	"sync"
)

// SubscriptionRegistry tracks which connection subscribes to which
// symbols, with global reference counting across connections. It is
// shared mutable state accessed by every connection loop, so a single
// mutex serializes all operations.
type SubscriptionRegistry struct {
	mu     sync.Mutex
	byConn map[string]map[string]struct{} // connection ID → set of symbols
	refs   map[string]int                 // symbol → number of subscribing connections
}

// NewSubscriptionRegistry はSubscriptionRegistryの新しいインスタンスを生成します。
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		byConn: make(map[string]map[string]struct{}),
		refs:   make(map[string]int),
	}
}

// Subscribe adds the (connection, symbol) pair. It reports whether the
// symbol was newly added for this connection; re-subscribing is a no-op.
func (r *SubscriptionRegistry) Subscribe(connID, symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byConn[connID]
	if !ok {
		set = make(map[string]struct{})
		r.byConn[connID] = set
	}
	if _, ok := set[symbol]; ok {
		return false
	}
	set[symbol] = struct{}{}
	r.refs[symbol]++
	return true
}

// Unsubscribe removes the (connection, symbol) pair. Removing a symbol
// that is not subscribed is a no-op.
func (r *SubscriptionRegistry) Unsubscribe(connID, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(connID, symbol)
}

// SymbolsFor returns a sorted snapshot of the connection's subscribed
// symbols. The snapshot is independent of later mutations.
func (r *SubscriptionRegistry) SymbolsFor(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byConn[connID]
	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// IsActivelySubscribed reports whether at least one connection currently
// subscribes to the symbol.
func (r *SubscriptionRegistry) IsActivelySubscribed(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refs[symbol] > 0
}

// DropConnection removes every subscription of the connection and
// returns the symbols that were released. Called unconditionally on
// connection close.
func (r *SubscriptionRegistry) DropConnection(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byConn[connID]
	released := make([]string, 0, len(set))
	for s := range set {
		released = append(released, s)
	}
	sort.Strings(released)
	for _, s := range released {
		r.remove(connID, s)
	}
	delete(r.byConn, connID)
	return released
}

// remove deletes one pair and maintains the reference count.
// Caller must hold r.mu.
func (r *SubscriptionRegistry) remove(connID, symbol string) {
	set, ok := r.byConn[connID]
	if !ok {
		return
	}
	if _, ok := set[symbol]; !ok {
		return
	}
	delete(set, symbol)
	if len(set) == 0 {
		delete(r.byConn, connID)
	}
	if r.refs[symbol] <= 1 {
		delete(r.refs, symbol)
	} else {
		r.refs[symbol]--
	}
}
