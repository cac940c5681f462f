package book

import (
	"matchsim/internal/common"

	"github.com/tidwall/btree"
)

// LevelView is a read-only snapshot of one price level, safe to hand to a
// caller outside the book's lock.
type LevelView struct {
	Price         float64
	TotalQuantity uint64
	OrderCount    int
}

// Side holds the resting orders for one side (bid or ask) of one symbol's
// book: a price-ordered B-tree of levels (grounded on the teacher's
// internal/engine/orderbook.go use of github.com/tidwall/btree), plus a
// secondary order-id index for cancellation.
type Side struct {
	levels     *btree.BTreeG[*PriceLevel]
	orderPrice map[string]float64
}

// newSide builds a side ordered by less, which must report whether price a
// sorts before price b. Bid sides use a greater-than comparator so the
// highest price is "first"; ask sides use plain less-than so the lowest
// price is "first" — in both cases that "first" level is the best price.
func newSide(less func(a, b float64) bool) *Side {
	return &Side{
		levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return less(a.Price, b.Price)
		}),
		orderPrice: make(map[string]float64),
	}
}

// NewBidSide returns a side ordered best-price-first for buy orders (highest
// price first).
func NewBidSide() *Side {
	return newSide(func(a, b float64) bool { return a > b })
}

// NewAskSide returns a side ordered best-price-first for sell orders (lowest
// price first).
func NewAskSide() *Side {
	return newSide(func(a, b float64) bool { return a < b })
}

// Add appends order to the FIFO at its limit price, creating the level if
// necessary.
func (s *Side) Add(o *common.Order) {
	lvl, ok := s.levels.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		lvl = newPriceLevel(o.Price)
		s.levels.Set(lvl)
	}
	lvl.append(o)
	s.orderPrice[o.OrderID] = o.Price
}

// Remove removes the named order from its level, deleting the level if it
// becomes empty. Reports whether the order was found.
func (s *Side) Remove(orderID string) bool {
	price, ok := s.orderPrice[orderID]
	if !ok {
		return false
	}
	lvl, ok := s.levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		delete(s.orderPrice, orderID)
		return false
	}
	if !lvl.removeByID(orderID) {
		delete(s.orderPrice, orderID)
		return false
	}
	delete(s.orderPrice, orderID)
	if lvl.empty() {
		s.levels.Delete(lvl)
	}
	return true
}

// BestLevelMut returns the best (highest-priority) level for mutation by the
// matcher. The matcher is the only caller that should use this — everyone
// else should use the read-only snapshot accessors below.
func (s *Side) BestLevelMut() (*PriceLevel, bool) {
	return s.levels.Min()
}

// DeleteLevel removes a level outright, used by the matcher once a level has
// been fully consumed.
func (s *Side) DeleteLevel(lvl *PriceLevel) {
	s.levels.Delete(lvl)
	for _, o := range lvl.Orders {
		delete(s.orderPrice, o.OrderID)
	}
}

// consumeHeadAndSync is called by the matcher after trimming the front of a
// level during a sweep: it drops the order-id index entries for orders that
// have left the level and resyncs the level's cached aggregates.
func (s *Side) consumeHeadAndSync(lvl *PriceLevel, n int) {
	for _, o := range lvl.Orders[:n] {
		delete(s.orderPrice, o.OrderID)
	}
	lvl.consumeHead(n)
}

// BestPrice returns the best resting price on this side, if any.
func (s *Side) BestPrice() (float64, bool) {
	lvl, ok := s.levels.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestOrder returns the head-of-FIFO order at the best price, if any.
func (s *Side) BestOrder() (*common.Order, bool) {
	lvl, ok := s.levels.Min()
	if !ok || lvl.empty() {
		return nil, false
	}
	return lvl.Orders[0], true
}

// OrdersAt returns a snapshot of the orders resting at price, or nil if the
// level does not exist.
func (s *Side) OrdersAt(price float64) []*common.Order {
	lvl, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	out := make([]*common.Order, len(lvl.Orders))
	copy(out, lvl.Orders)
	return out
}

// TopLevels returns up to n best levels as read-only snapshots.
func (s *Side) TopLevels(n int) []LevelView {
	if n <= 0 {
		return nil
	}
	views := make([]LevelView, 0, n)
	s.levels.Scan(func(lvl *PriceLevel) bool {
		views = append(views, LevelView{
			Price:         lvl.Price,
			TotalQuantity: lvl.TotalQuantity,
			OrderCount:    lvl.OrderCount,
		})
		return len(views) < n
	})
	return views
}

// VolumeAt returns the total resting quantity at price, 0 if the level does
// not exist.
func (s *Side) VolumeAt(price float64) uint64 {
	lvl, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return lvl.TotalQuantity
}

// Len reports how many price levels are currently resting.
func (s *Side) Len() int {
	return s.levels.Len()
}

// Clear empties the side.
func (s *Side) Clear() {
	s.levels.Clear()
	s.orderPrice = make(map[string]float64)
}

// verifyLocked reports, via common.AssertInvariant, any level whose cached
// aggregates (TotalQuantity, OrderCount) do not match the orders it
// actually holds — §7's "level aggregate mismatching its orders" drift
// condition. Caller must already hold the book's lock.
func (s *Side) verifyLocked(symbol, sideName string) {
	s.levels.Scan(func(lvl *PriceLevel) bool {
		var total uint64
		for _, o := range lvl.Orders {
			total += o.RemainingQuantity
		}
		if total != lvl.TotalQuantity || len(lvl.Orders) != lvl.OrderCount {
			common.AssertInvariant(common.ErrLevelDrift, map[string]any{
				"symbol": symbol,
				"side":   sideName,
				"price":  lvl.Price,
			})
		}
		return true
	})
}
