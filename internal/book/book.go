package book

import (
	"sync"

	"matchsim/internal/common"
)

// DefaultTradeCapacity is C_book from §6.4: the default bound on a single
// book's trade tail.
const DefaultTradeCapacity = 1000

// OrderBook composes the two sides of a single symbol plus a bounded trade
// tail. A single mutex guards both sides and the tail, giving external
// readers (TopLevels, RecentTrades, ...) a snapshot-consistent view even
// while the matcher is mid-sweep on another goroutine — see design note
// "Concurrency primitive choice" in SPEC_FULL.md. The matcher itself (in
// internal/engine) holds the lock for the whole duration of processing one
// order, so a quiescent book observed by a reader is never crossed.
type OrderBook struct {
	mu     sync.RWMutex
	Symbol string
	Bids   *Side
	Asks   *Side
	trades *TradeRing[common.Trade]
}

// New constructs an empty order book for symbol with the default trade
// capacity.
func New(symbol string) *OrderBook {
	return NewWithCapacity(symbol, DefaultTradeCapacity)
}

// NewWithCapacity constructs an empty order book with an explicit trade tail
// capacity, primarily for tests.
func NewWithCapacity(symbol string, capacity int) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   NewBidSide(),
		Asks:   NewAskSide(),
		trades: NewTradeRing[common.Trade](capacity),
	}
}

// Lock/Unlock expose the book's mutex to the matcher so a full
// submit-and-match cycle can be treated as one atomic critical section.
// Everything else in this type that mutates state assumes the caller
// already holds the lock.
func (b *OrderBook) Lock()   { b.mu.Lock() }
func (b *OrderBook) Unlock() { b.mu.Unlock() }

// SideFor returns the side an order of the given direction rests on.
func (b *OrderBook) SideFor(side common.Side) *Side {
	if side == common.Buy {
		return b.Bids
	}
	return b.Asks
}

// OppositeSideFor returns the side an order of the given direction matches
// against.
func (b *OrderBook) OppositeSideFor(side common.Side) *Side {
	if side == common.Buy {
		return b.Asks
	}
	return b.Bids
}

// AddOrder rests an order on its side. Caller must hold the lock.
func (b *OrderBook) AddOrder(o *common.Order) {
	b.SideFor(o.Side).Add(o)
}

// RemoveOrder removes an order from the named side by id. Caller must hold
// the lock.
func (b *OrderBook) RemoveOrder(orderID string, side common.Side) bool {
	return b.SideFor(side).Remove(orderID)
}

// AppendTrade records a trade in the book's bounded tail. Caller must hold
// the lock.
func (b *OrderBook) AppendTrade(t common.Trade) {
	b.trades.Append(t)
}

// BestBidPrice/BestAskPrice take the read lock themselves and are safe to
// call from any goroutine.
func (b *OrderBook) BestBidPrice() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Bids.BestPrice()
}

func (b *OrderBook) BestAskPrice() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Asks.BestPrice()
}

// BestBid/BestAsk return the resting order at the top of each side.
func (b *OrderBook) BestBid() (*common.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Bids.BestOrder()
}

func (b *OrderBook) BestAsk() (*common.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Asks.BestOrder()
}

// Spread is best_ask - best_bid, 0 if either side is empty.
func (b *OrderBook) Spread() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, bidOk := b.Bids.BestPrice()
	ask, askOk := b.Asks.BestPrice()
	if !bidOk || !askOk {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice is (best_bid + best_ask) / 2, 0 if either side is empty.
func (b *OrderBook) MidPrice() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, bidOk := b.Bids.BestPrice()
	ask, askOk := b.Asks.BestPrice()
	if !bidOk || !askOk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// TopLevels returns up to n best levels on each side.
func (b *OrderBook) TopLevels(n int) (bids []LevelView, asks []LevelView) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Bids.TopLevels(n), b.Asks.TopLevels(n)
}

// RecentTrades returns the k most recent trades for this symbol.
func (b *OrderBook) RecentTrades(k int) []common.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trades.Recent(k)
}

// VolumeAtPrice returns the resting quantity at price on the given side.
func (b *OrderBook) VolumeAtPrice(price float64, side common.Side) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.SideFor(side).VolumeAt(price)
}

// IsCrossed reports whether best_bid >= best_ask with both present. Outside
// the matcher's critical section this must always be false; InvariantDrift
// (§7) if it is ever observed true by a caller holding no lock across a
// quiescent point.
func (b *OrderBook) IsCrossed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.IsCrossedLocked()
}

// IsCrossedLocked is the same check for a caller that already holds the
// book's lock (the matcher, mid-sweep) — it must not itself acquire the
// lock, which is not reentrant.
func (b *OrderBook) IsCrossedLocked() bool {
	bid, bidOk := b.Bids.BestPrice()
	ask, askOk := b.Asks.BestPrice()
	return bidOk && askOk && bid >= ask
}

// VerifyLocked checks this book's InvariantDrift conditions (§7) at a
// quiescent point: the book must not be crossed, and every level's cached
// aggregates must match the orders it holds. Caller must already hold the
// book's lock. Violations are reported through common.AssertInvariant
// rather than returned — they are not part of the book's ordinary,
// recoverable error contract, since a drift here means a bug in the
// matcher, not bad external input.
func (b *OrderBook) VerifyLocked() {
	if b.IsCrossedLocked() {
		common.AssertInvariant(common.ErrCrossedQuiescence, map[string]any{
			"symbol": b.Symbol,
		})
	}
	b.Bids.verifyLocked(b.Symbol, "BID")
	b.Asks.verifyLocked(b.Symbol, "ASK")
}

// Clear empties both sides and the trade tail.
func (b *OrderBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Bids.Clear()
	b.Asks.Clear()
	b.trades.Clear()
}
