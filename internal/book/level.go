// Package book implements the per-symbol limit order book: price levels,
// the two sides (bids/asks) backed by a price-ordered B-tree, and the book
// itself with a bounded trade tail. The matching algorithm lives in
// internal/engine; this package only knows how to hold and aggregate
// resting orders.
package book

import "matchsim/internal/common"

// PriceLevel aggregates every resting order at a single price on one side of
// one symbol's book, preserving arrival order (FIFO). TotalQuantity and
// OrderCount are kept in sync with Orders by every mutating method on this
// type — callers must never append to Orders directly.
type PriceLevel struct {
	Price         float64
	Orders        []*common.Order
	TotalQuantity uint64
	OrderCount    int
}

func newPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// append adds an order to the tail of the level's FIFO.
func (lvl *PriceLevel) append(o *common.Order) {
	lvl.Orders = append(lvl.Orders, o)
	lvl.TotalQuantity += o.RemainingQuantity
	lvl.OrderCount++
}

// removeAt removes the order at index i, preserving FIFO order of the rest.
func (lvl *PriceLevel) removeAt(i int) {
	o := lvl.Orders[i]
	lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
	lvl.TotalQuantity -= o.RemainingQuantity
	lvl.OrderCount--
}

// removeByID removes the named order if present, reports whether it was
// found.
func (lvl *PriceLevel) removeByID(orderID string) bool {
	for i, o := range lvl.Orders {
		if o.OrderID == orderID {
			lvl.removeAt(i)
			return true
		}
	}
	return false
}

// consumeHead advances past the first n orders the matcher has already
// driven to zero quantity during a sweep, then re-synchronizes the cached
// aggregates against what remains. n may be 0 — the matcher also calls this
// when the head order itself was only partially filled and stays at the
// front of the FIFO, since its RemainingQuantity changed and the cached
// TotalQuantity must still be resynced against it.
func (lvl *PriceLevel) consumeHead(n int) {
	if n > 0 {
		lvl.Orders = lvl.Orders[n:]
	}
	lvl.resync()
}

// resync recomputes TotalQuantity from the orders currently held. Used after
// bulk slice operations where incremental bookkeeping would be error-prone.
func (lvl *PriceLevel) resync() {
	var total uint64
	for _, o := range lvl.Orders {
		total += o.RemainingQuantity
	}
	lvl.TotalQuantity = total
	lvl.OrderCount = len(lvl.Orders)
}

func (lvl *PriceLevel) empty() bool {
	return len(lvl.Orders) == 0
}
