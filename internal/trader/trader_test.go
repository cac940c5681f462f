package trader

import (
	"testing"

	"matchsim/internal/common"
	"matchsim/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAffordabilityGuardClampsBuyToCash(t *testing.T) {
	tr := New("t1", engine.New(), []string{"AAPL"}, 1000)
	qty, skip := tr.applyAffordabilityGuard(common.Buy, 50, 100, 1000, 0)
	assert.False(t, skip)
	assert.Equal(t, uint64(10), qty, "1000 cash / 100 price == 10 shares affordable")
}

func TestApplyAffordabilityGuardSkipsBelowMinimum(t *testing.T) {
	tr := New("t1", engine.New(), []string{"AAPL"}, 50)
	_, skip := tr.applyAffordabilityGuard(common.Buy, 50, 100, 50, 0)
	assert.True(t, skip, "affordable quantity below MinOrderSize should skip the tick")
}

func TestApplyAffordabilityGuardClampsSellToPosition(t *testing.T) {
	tr := New("t1", engine.New(), []string{"AAPL"}, 1000)
	qty, skip := tr.applyAffordabilityGuard(common.Sell, 50, 100, 1000, 20)
	assert.False(t, skip)
	assert.Equal(t, uint64(20), qty)
}

func TestOnFillUpdatesCashAndAverageCost(t *testing.T) {
	eng := engine.New()
	tr := New("t1", eng, []string{"AAPL"}, 1000)

	order, err := common.NewOrder("t1", "AAPL", common.Buy, 10, 100)
	require.NoError(t, err)

	tr.onFill(order, 10, 100)

	snap := tr.Snapshot()
	assert.Equal(t, 0.0, snap.Cash)
	assert.Equal(t, int64(10), snap.Positions["AAPL"])
	assert.Equal(t, 100.0, snap.AverageCost["AAPL"])
	assert.Equal(t, uint64(1), snap.OrdersFilled)
	assert.Equal(t, uint64(10), snap.TotalVolume)
}

func TestOnFillResetsAverageCostWhenPositionClosed(t *testing.T) {
	eng := engine.New()
	tr := New("t1", eng, []string{"AAPL"}, 1000)

	buy, err := common.NewOrder("t1", "AAPL", common.Buy, 10, 100)
	require.NoError(t, err)
	tr.onFill(buy, 10, 100)

	sell, err := common.NewOrder("t1", "AAPL", common.Sell, 10, 110)
	require.NoError(t, err)
	tr.onFill(sell, 10, 110)

	snap := tr.Snapshot()
	assert.Equal(t, int64(0), snap.Positions["AAPL"])
	assert.Equal(t, 0.0, snap.AverageCost["AAPL"])
	assert.Equal(t, 1100.0, snap.Cash, "cash should be initial 1000 - 1000 buy + 1100 sell")
}

func TestOnFillDetectsPositionDriftInStrictMode(t *testing.T) {
	common.SetStrict(true)
	defer common.SetStrict(false)

	eng := engine.New()
	tr := New("t1", eng, []string{"AAPL"}, 1000)

	// Corrupt the position so it no longer matches the fill ledger
	// checkPositionInvariantLocked compares against.
	tr.positions["AAPL"] = 999

	order, err := common.NewOrder("t1", "AAPL", common.Buy, 10, 100)
	require.NoError(t, err)

	assert.Panics(t, func() {
		tr.onFill(order, 10, 100)
	})
}

func TestChooseSideBiasesTowardSellingLargePositions(t *testing.T) {
	tr := New("t1", engine.New(), []string{"AAPL"}, 1000, WithSeed(42))
	sellCount := 0
	for i := 0; i < 200; i++ {
		if tr.chooseSide(600) == common.Sell {
			sellCount++
		}
	}
	assert.Greater(t, sellCount, 100, "a position above 500 should sell more often than it buys")
}
