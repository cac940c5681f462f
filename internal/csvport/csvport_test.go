package csvport

import (
	"strings"
	"testing"
	"time"

	"matchsim/internal/common"
	"matchsim/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportOrdersSubmitsValidRowsAndReportsBadOnes(t *testing.T) {
	csvData := `trader_id,symbol,side,quantity,price
T1,AAPL,BUY,10,100.00
T2,AAPL,SELL,5,101.00
T3,AAPL,HOLD,10,100.00
T4,AAPL,BUY,-5,100.00
`
	eng := engine.New()
	result, err := ImportOrders(eng, strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.OrdersSubmitted)
	assert.Equal(t, 2, result.OrdersFailed)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 2)

	lines := map[int]bool{}
	for _, e := range result.Errors {
		lines[e.Line] = true
	}
	assert.True(t, lines[4], "the HOLD-side row is the 3rd data row, line 4 with the header")
	assert.True(t, lines[5], "the negative-quantity row is line 5")
}

func TestImportOrdersRejectsMissingColumns(t *testing.T) {
	csvData := "trader_id,symbol,side,quantity\nT1,AAPL,BUY,10\n"
	eng := engine.New()
	_, err := ImportOrders(eng, strings.NewReader(csvData))
	assert.Error(t, err)
}

func TestImportOrdersIsCaseInsensitiveOnColumnsAndSide(t *testing.T) {
	csvData := "Trader_ID,Symbol,Side,Quantity,Price\nT1,aapl,buy,10,100.00\n"
	eng := engine.New()
	result, err := ImportOrders(eng, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, result.OrdersSubmitted)
	assert.Equal(t, []string{"AAPL"}, result.SymbolsImported)
}

func TestExportTradesRoundTrip(t *testing.T) {
	trades := []common.Trade{
		{
			TradeID: "000001", Timestamp: time.Now(), Symbol: "AAPL",
			Quantity: 10, Price: 150, BuyerID: "T2", SellerID: "T1",
			BuyOrderID: "o1", SellOrderID: "o2",
		},
	}
	var buf strings.Builder
	require.NoError(t, ExportTrades(&buf, trades))

	rows, err := ParseTrades(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "000001", rows[0][0])
	assert.Equal(t, "AAPL", rows[0][2])
	assert.Equal(t, "BUY", rows[0][3], "aggressive-side column is always BUY per the preserved export convention")
}

func TestExportEngineMetricsWritesObservabilityCounters(t *testing.T) {
	stats := engine.PerformanceStats{
		TradesExecuted:   5,
		VolumeTraded:     50,
		OrdersPerSecond:  2.5,
		AverageLatencyMs: 0.8,
		ActiveOrders:     3,
		SymbolsActive:    2,
		RuntimeSeconds:   10,
		TradesPerSecond:  0.5,
	}
	var buf strings.Builder
	require.NoError(t, ExportEngineMetrics(&buf, stats))

	rows, err := ParseTrades(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, rows, 8)

	byMetric := make(map[string]string, len(rows))
	for _, row := range rows {
		byMetric[row[0]] = row[1]
	}
	assert.Equal(t, "5", byMetric["Total Trades"])
	assert.Equal(t, "3", byMetric["Active Orders"])
	assert.Equal(t, "2", byMetric["Active Symbols"])
	assert.Equal(t, "10", byMetric["Runtime"])
	assert.Equal(t, "0.5", byMetric["Trades Per Second"])
}
