package common

import (
	"fmt"
	"sync/atomic"
)

// TradeIDGenerator produces strictly increasing, zero-padded (width 6) trade
// ids, rolling over transparently past 10^6 — the ids keep increasing
// numerically; 6 digits is the minimum width, and ids past 999999 print
// with more digits.
type TradeIDGenerator struct {
	next uint64
}

// NewTradeIDGenerator returns a generator starting at 1.
func NewTradeIDGenerator() *TradeIDGenerator {
	return &TradeIDGenerator{}
}

// Next returns the next id in the sequence, formatted per §6.3.
func (g *TradeIDGenerator) Next() string {
	n := atomic.AddUint64(&g.next, 1)
	return fmt.Sprintf("%06d", n)
}
