package engine

import (
	"sync"
	"testing"
	"time"

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

// submitSync registers the order as active the way Submit does, then runs
// processOrder inline instead of going through the queue, so the order has
// been matched and filled or rested by the time it returns.
func submitSync(e *Engine, order *common.Order) {
	e.activeMu.Lock()
	e.activeOrders[order.OrderID] = order
	e.activeMu.Unlock()
	e.processOrder(order)
}

func TestMatchFullyFillsCrossingOrders(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	submitSync(e, maker)

	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 101)
	submitSync(e, taker)

	assert.Equal(t, common.Filled, maker.Status)
	assert.Equal(t, common.Filled, taker.Status)
	assert.Equal(t, 100.0, taker.AverageFillPrice(), "taker should fill at the resting maker price, not its own limit")

	trades := e.AllTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(10), trades[0].Quantity)
	assert.Equal(t, "bob", trades[0].BuyerID)
	assert.Equal(t, "alice", trades[0].SellerID)
}

func TestMatchPartialFillRestsRemainder(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 5, 100)
	submitSync(e, maker)

	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 100)
	submitSync(e, taker)

	assert.Equal(t, common.Filled, maker.Status)
	assert.Equal(t, common.PartiallyFilled, taker.Status)
	assert.Equal(t, uint64(5), taker.RemainingQuantity)

	bk := e.GetOrderBook("AAPL")
	best, ok := bk.BestBid()
	require.True(t, ok)
	assert.Equal(t, taker.OrderID, best.OrderID)
}

func TestMatchResyncsLevelAggregateWhenHeadOrderOnlyPartiallyFills(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	submitSync(e, maker)

	taker := mustOrder(t, "bob", "AAPL", common.Buy, 4, 100)
	submitSync(e, taker)

	assert.Equal(t, common.Filled, taker.Status)
	assert.Equal(t, common.PartiallyFilled, maker.Status)
	assert.Equal(t, uint64(6), maker.RemainingQuantity)

	bk := e.GetOrderBook("AAPL")
	assert.Equal(t, uint64(6), bk.VolumeAtPrice(100, common.Sell), "level aggregate must track the partially-filled head order's remaining quantity")

	_, asks := bk.TopLevels(1)
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(6), asks[0].TotalQuantity)
	assert.Equal(t, 1, asks[0].OrderCount)
}

func TestMatchRespectsFIFOAtSamePrice(t *testing.T) {
	e := New()
	first := mustOrder(t, "alice", "AAPL", common.Sell, 5, 100)
	second := mustOrder(t, "carol", "AAPL", common.Sell, 5, 100)
	submitSync(e, first)
	submitSync(e, second)

	taker := mustOrder(t, "bob", "AAPL", common.Buy, 5, 100)
	submitSync(e, taker)

	assert.Equal(t, common.Filled, first.Status, "earlier order at the same price must fill first")
	assert.Equal(t, common.Pending, second.Status)
}

func TestMatchDoesNotCrossOutsideLimit(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 105)
	submitSync(e, maker)

	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 100)
	submitSync(e, taker)

	assert.Equal(t, common.Pending, maker.Status)
	assert.Equal(t, common.Pending, taker.Status)
	assert.Empty(t, e.AllTrades())
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	e := New()
	resting := mustOrder(t, "alice", "AAPL", common.Buy, 10, 100)
	submitSync(e, resting)

	ok := e.Cancel(resting.OrderID)
	assert.True(t, ok)
	assert.Equal(t, common.Cancelled, resting.Status)

	_, found := e.GetOrderBook("AAPL").BestBid()
	assert.False(t, found)
}

func TestCancelOfFilledOrderIsAMiss(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	submitSync(e, maker)
	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 100)
	submitSync(e, taker)

	assert.False(t, e.Cancel(maker.OrderID), "cancelling an already-filled order should miss, not error")
}

func TestFillNotificationsFireBuyerThenSeller(t *testing.T) {
	e := New()

	var mu sync.Mutex
	var order []string
	e.RegisterTrader("alice", func(o *common.Order, q uint64, p float64) {
		mu.Lock()
		order = append(order, "seller")
		mu.Unlock()
	})
	e.RegisterTrader("bob", func(o *common.Order, q uint64, p float64) {
		mu.Lock()
		order = append(order, "buyer")
		mu.Unlock()
	})

	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	submitSync(e, maker)
	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 100)
	submitSync(e, taker)

	require.Len(t, order, 2)
	assert.Equal(t, []string{"buyer", "seller"}, order)
}

func TestEngineStartStopDrainsQueue(t *testing.T) {
	e := New()
	e.Start()
	defer e.Stop()

	maker, err := common.NewOrder("alice", "AAPL", common.Sell, 10, 100)
	require.NoError(t, err)
	require.NoError(t, e.Submit(maker))

	taker, err := common.NewOrder("bob", "AAPL", common.Buy, 10, 100)
	require.NoError(t, err)
	require.NoError(t, e.Submit(taker))

	require.Eventually(t, func() bool {
		return maker.Status == common.Filled && taker.Status == common.Filled
	}, time.Second, time.Millisecond)
}

func TestPerformanceStatsReportsActiveOrdersSymbolsAndRuntime(t *testing.T) {
	e := New()
	e.Start()
	defer e.Stop()

	resting, err := common.NewOrder("alice", "AAPL", common.Sell, 10, 100)
	require.NoError(t, err)
	require.NoError(t, e.Submit(resting))

	require.Eventually(t, func() bool {
		return e.PerformanceStats().ActiveOrders == 1
	}, time.Second, time.Millisecond)

	stats := e.PerformanceStats()
	assert.Equal(t, 1, stats.ActiveOrders, "the resting sell order has no counterparty yet")
	assert.Equal(t, 1, stats.SymbolsActive, "one book has been created, for AAPL")
	assert.Greater(t, stats.RuntimeSeconds, 0.0, "runtime should advance once the engine is started")
}

func TestClearResetsBooksAndHistory(t *testing.T) {
	e := New()
	maker := mustOrder(t, "alice", "AAPL", common.Sell, 10, 100)
	submitSync(e, maker)
	taker := mustOrder(t, "bob", "AAPL", common.Buy, 10, 100)
	submitSync(e, taker)
	require.NotEmpty(t, e.AllTrades())

	e.Clear()

	assert.Empty(t, e.AllTrades())
	_, ok := e.GetOrderBook("AAPL").BestBid()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), e.PerformanceStats().OrdersProcessed)
}
