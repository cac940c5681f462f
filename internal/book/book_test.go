package book

import (
	"testing"

	"matchsim/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, trader, symbol string, side common.Side, qty uint64, price float64) *common.Order {
	t.Helper()
	o, err := common.NewOrder(trader, symbol, side, qty, price)
	require.NoError(t, err)
	return o
}

func TestSideAddOrdersFIFOAtPrice(t *testing.T) {
	s := NewBidSide()
	a := mustOrder(t, "alice", "AAPL", common.Buy, 10, 100)
	b := mustOrder(t, "bob", "AAPL", common.Buy, 5, 100)
	s.Add(a)
	s.Add(b)

	best, ok := s.BestOrder()
	require.True(t, ok)
	assert.Equal(t, a.OrderID, best.OrderID, "first order at a price level should be matched first")

	lvl, ok := s.BestLevelMut()
	require.True(t, ok)
	assert.Equal(t, uint64(15), lvl.TotalQuantity)
	assert.Equal(t, 2, lvl.OrderCount)
}

func TestBidSideOrdersHighestPriceFirst(t *testing.T) {
	s := NewBidSide()
	s.Add(mustOrder(t, "alice", "AAPL", common.Buy, 10, 99))
	s.Add(mustOrder(t, "bob", "AAPL", common.Buy, 10, 101))
	s.Add(mustOrder(t, "carol", "AAPL", common.Buy, 10, 100))

	price, ok := s.BestPrice()
	require.True(t, ok)
	assert.Equal(t, 101.0, price)
}

func TestAskSideOrdersLowestPriceFirst(t *testing.T) {
	s := NewAskSide()
	s.Add(mustOrder(t, "alice", "AAPL", common.Sell, 10, 99))
	s.Add(mustOrder(t, "bob", "AAPL", common.Sell, 10, 101))
	s.Add(mustOrder(t, "carol", "AAPL", common.Sell, 10, 100))

	price, ok := s.BestPrice()
	require.True(t, ok)
	assert.Equal(t, 99.0, price)
}

func TestSideRemoveDeletesEmptyLevel(t *testing.T) {
	s := NewAskSide()
	o := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	s.Add(o)
	require.Equal(t, 1, s.Len())

	ok := s.Remove(o.OrderID)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())

	assert.False(t, s.Remove(o.OrderID), "removing twice should report not found")
}

func TestOrderBookIsCrossedDetectsOverlap(t *testing.T) {
	bk := New("AAPL")
	bk.Lock()
	bk.AddOrder(mustOrder(t, "alice", "AAPL", common.Buy, 10, 101))
	bk.AddOrder(mustOrder(t, "bob", "AAPL", common.Sell, 10, 100))
	crossed := bk.IsCrossedLocked()
	bk.Unlock()

	assert.True(t, crossed, "a resting bid above a resting ask is a crossed book")
}

func TestOrderBookTopLevelsOrdering(t *testing.T) {
	bk := New("AAPL")
	bk.Lock()
	bk.AddOrder(mustOrder(t, "alice", "AAPL", common.Buy, 10, 99))
	bk.AddOrder(mustOrder(t, "bob", "AAPL", common.Buy, 5, 100))
	bk.Unlock()

	bids, _ := bk.TopLevels(5)
	require.Len(t, bids, 2)
	assert.Equal(t, 100.0, bids[0].Price)
	assert.Equal(t, 99.0, bids[1].Price)
}

func TestVerifyLockedDetectsCrossedBook(t *testing.T) {
	common.SetStrict(true)
	defer common.SetStrict(false)

	bk := New("AAPL")
	bk.Lock()
	bk.AddOrder(mustOrder(t, "alice", "AAPL", common.Buy, 10, 101))
	bk.AddOrder(mustOrder(t, "bob", "AAPL", common.Sell, 10, 100))

	assert.Panics(t, func() { bk.VerifyLocked() })
	bk.Unlock()
}

func TestVerifyLockedDetectsLevelAggregateDrift(t *testing.T) {
	common.SetStrict(true)
	defer common.SetStrict(false)

	bk := New("AAPL")
	bk.Lock()
	bk.AddOrder(mustOrder(t, "alice", "AAPL", common.Buy, 10, 100))

	lvl, ok := bk.Bids.BestLevelMut()
	require.True(t, ok)
	lvl.TotalQuantity = 999 // corrupt the cached aggregate directly

	assert.Panics(t, func() { bk.VerifyLocked() })
	bk.Unlock()
}

func TestTradeRingEvictsOldest(t *testing.T) {
	r := NewTradeRing[int](3)
	r.Append(1)
	r.Append(2)
	r.Append(3)
	r.Append(4)

	assert.Equal(t, []int{2, 3, 4}, r.All())
	assert.Equal(t, []int{3, 4}, r.Recent(2))
}
