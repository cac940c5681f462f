package engine

import (
	"sort"

	"matchsim/internal/common"
)

// SymbolStatistics is the per-symbol row of §6.3's symbol_statistics
// operation: best bid/ask, spread, and the resting depth on each side.
type SymbolStatistics struct {
	Symbol      string
	BestBid     float64
	HasBestBid  bool
	BestAsk     float64
	HasBestAsk  bool
	Spread      float64
	HasSpread   bool
	BidDepth    int
	AskDepth    int
	TradesCount int
}

// MarketSummary is the aggregate across every symbol the engine has ever
// touched, used by §6.3's market_summary operation.
type MarketSummary struct {
	Symbols []SymbolStatistics
	Totals  PerformanceStats
}

// RecentTrades returns the k most recent trades across all symbols.
func (e *Engine) RecentTrades(k int) []common.Trade {
	e.tradeHistoryMu.RLock()
	defer e.tradeHistoryMu.RUnlock()
	return e.tradeHistory.Recent(k)
}

// RecentTradesForSymbol returns the k most recent trades for one symbol's
// book.
func (e *Engine) RecentTradesForSymbol(symbol string, k int) []common.Trade {
	bk := e.GetOrderBook(symbol)
	return bk.RecentTrades(k)
}

// AllTrades returns the engine's entire bounded trade history, oldest
// first.
func (e *Engine) AllTrades() []common.Trade {
	e.tradeHistoryMu.RLock()
	defer e.tradeHistoryMu.RUnlock()
	return e.tradeHistory.All()
}

// TraderOrders returns a snapshot of every currently active (resting or
// in-flight) order belonging to traderID.
func (e *Engine) TraderOrders(traderID string) []*common.Order {
	e.activeMu.RLock()
	defer e.activeMu.RUnlock()
	var out []*common.Order
	for _, o := range e.activeOrders {
		if o.TraderID == traderID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmitTime.Before(out[j].SubmitTime) })
	return out
}

// PerformanceStats returns the current engine-wide counters (§4.4),
// combining Stats' own atomic counters with engine-level state Stats has no
// access to: how many orders are currently active, how many symbols have a
// book, and the cumulative trade rate since the engine was last started.
func (e *Engine) PerformanceStats() PerformanceStats {
	snap := e.stats.Snapshot()

	e.activeMu.RLock()
	snap.ActiveOrders = len(e.activeOrders)
	e.activeMu.RUnlock()

	e.booksMu.RLock()
	snap.SymbolsActive = len(e.books)
	e.booksMu.RUnlock()

	snap.RuntimeSeconds = e.uptime().Seconds()
	if snap.RuntimeSeconds > 0 {
		snap.TradesPerSecond = float64(snap.TradesExecuted) / snap.RuntimeSeconds
	}
	return snap
}

// SymbolStatisticsFor computes the statistics row for a single symbol.
func (e *Engine) SymbolStatisticsFor(symbol string) SymbolStatistics {
	bk := e.GetOrderBook(symbol)
	bid, hasBid := bk.BestBidPrice()
	ask, hasAsk := bk.BestAskPrice()
	spread, hasSpread := bk.Spread()
	bids, asks := bk.TopLevels(1 << 20)

	bidDepth := 0
	for _, lvl := range bids {
		bidDepth += lvl.OrderCount
	}
	askDepth := 0
	for _, lvl := range asks {
		askDepth += lvl.OrderCount
	}

	return SymbolStatistics{
		Symbol:      symbol,
		BestBid:     bid,
		HasBestBid:  hasBid,
		BestAsk:     ask,
		HasBestAsk:  hasAsk,
		Spread:      spread,
		HasSpread:   hasSpread,
		BidDepth:    bidDepth,
		AskDepth:    askDepth,
		TradesCount: len(bk.RecentTrades(0)),
	}
}

// MarketSummary rolls up SymbolStatisticsFor across every symbol the engine
// has created a book for, plus the engine-wide performance totals.
func (e *Engine) MarketSummary() MarketSummary {
	e.booksMu.RLock()
	symbols := make([]string, 0, len(e.books))
	for symbol := range e.books {
		symbols = append(symbols, symbol)
	}
	e.booksMu.RUnlock()
	sort.Strings(symbols)

	rows := make([]SymbolStatistics, 0, len(symbols))
	for _, symbol := range symbols {
		rows = append(rows, e.SymbolStatisticsFor(symbol))
	}

	return MarketSummary{
		Symbols: rows,
		Totals:  e.PerformanceStats(),
	}
}
