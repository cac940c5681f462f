package csvport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"matchsim/internal/book"
	"matchsim/internal/common"
	"matchsim/internal/engine"
	"matchsim/internal/trader"

	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// ExportTrades writes one row per trade (§6.2). The "Side" column is
// hard-coded to the string BUY rather than recording which side actually
// initiated the match — this is the aggressive-side convention flagged as a
// likely source bug in §9 and preserved here verbatim.
func ExportTrades(w io.Writer, trades []common.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"Trade ID", "Timestamp", "Symbol", "Side", "Quantity", "Price", "Value", "Buyer ID", "Seller ID", "Buy Order ID", "Sell Order ID"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		price := decimal.NewFromFloat(t.Price).Round(4)
		value := decimal.NewFromFloat(t.Price).Mul(decimal.NewFromInt(int64(t.Quantity))).Round(2)
		row := []string{
			t.TradeID,
			t.Timestamp.Format(timestampLayout),
			t.Symbol,
			"BUY",
			strconv.FormatUint(t.Quantity, 10),
			price.String(),
			value.String(),
			t.BuyerID,
			t.SellerID,
			t.BuyOrderID,
			t.SellOrderID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

// ExportOrderBook writes one row per level per side, up to depth levels
// each, with cumulative volume down the book (§6.2).
func ExportOrderBook(w io.Writer, bk *book.OrderBook, depth int) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"Symbol", "Timestamp", "Side", "Price Level", "Price", "Quantity", "Order Count", "Cumulative Volume"}
	if err := cw.Write(header); err != nil {
		return err
	}

	bids, asks := bk.TopLevels(depth)
	now := time.Now().Format(timestampLayout)

	writeSide := func(sideName string, levels []book.LevelView) error {
		var cumulative uint64
		for i, lvl := range levels {
			cumulative += lvl.TotalQuantity
			row := []string{
				bk.Symbol,
				now,
				sideName,
				strconv.Itoa(i + 1),
				decimal.NewFromFloat(lvl.Price).Round(4).String(),
				strconv.FormatUint(lvl.TotalQuantity, 10),
				strconv.Itoa(lvl.OrderCount),
				strconv.FormatUint(cumulative, 10),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeSide("BID", bids); err != nil {
		return err
	}
	if err := writeSide("ASK", asks); err != nil {
		return err
	}
	return cw.Error()
}

// ExportTraderPerformance writes one row per trader (§6.2). referencePrice
// supplies the mark used for portfolio value and P&L, since a trader's own
// reference price is private per-symbol state.
func ExportTraderPerformance(w io.Writer, snapshots []trader.Snapshot, referencePrice func(symbol string) float64) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"Trader ID", "Initial Cash", "Current Cash", "Portfolio Value", "Total P&L", "P&L %", "Orders Sent", "Orders Filled", "Fill Rate %", "Total Volume", "Avg Order Size"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range snapshots {
		portfolioValue := s.PortfolioValue(referencePrice)
		totalPnL := s.TotalPnL(referencePrice)

		pnlPct := 0.0
		if s.InitialCash != 0 {
			pnlPct = totalPnL / s.InitialCash * 100
		}
		fillRate := 0.0
		if s.OrdersSent != 0 {
			fillRate = float64(s.OrdersFilled) / float64(s.OrdersSent) * 100
		}
		avgOrderSize := 0.0
		if s.OrdersFilled != 0 {
			avgOrderSize = float64(s.TotalVolume) / float64(s.OrdersFilled)
		}

		row := []string{
			s.TraderID,
			formatMoney(s.InitialCash),
			formatMoney(s.Cash),
			formatMoney(portfolioValue),
			formatMoney(totalPnL),
			decimal.NewFromFloat(pnlPct).Round(2).String(),
			strconv.FormatUint(s.OrdersSent, 10),
			strconv.FormatUint(s.OrdersFilled, 10),
			decimal.NewFromFloat(fillRate).Round(2).String(),
			strconv.FormatUint(s.TotalVolume, 10),
			decimal.NewFromFloat(avgOrderSize).Round(2).String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

// ExportEngineMetrics writes one row per §4.4 performance counter with its
// unit (§6.2). stats is taken directly from Engine.PerformanceStats, which
// is the engine's own authoritative view of active orders and symbols — a
// caller no longer needs to reassemble those counts from a trader list.
func ExportEngineMetrics(w io.Writer, stats engine.PerformanceStats) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"Metric", "Value", "Unit"}
	if err := cw.Write(header); err != nil {
		return err
	}

	rows := [][]string{
		{"Total Trades", strconv.FormatUint(stats.TradesExecuted, 10), "trades"},
		{"Total Volume", strconv.FormatUint(stats.VolumeTraded, 10), "shares"},
		{"Trades Per Second", decimal.NewFromFloat(stats.TradesPerSecond).Round(4).String(), "trades/s"},
		{"Orders Per Second", decimal.NewFromFloat(stats.OrdersPerSecond).Round(4).String(), "orders/s"},
		{"Average Latency", decimal.NewFromFloat(stats.AverageLatencyMs).Round(4).String(), "ms"},
		{"Active Orders", strconv.Itoa(stats.ActiveOrders), "orders"},
		{"Runtime", decimal.NewFromFloat(stats.RuntimeSeconds).Round(2).String(), "seconds"},
		{"Active Symbols", strconv.Itoa(stats.SymbolsActive), "symbols"},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}

// ParseTrades is the reader counterpart to ExportTrades, used by this
// package's tests (the P9 export round trip, and reading back the metrics
// export): it re-parses an exported CSV into plain rows, dropping the header,
// without reconstructing a full common.Trade (the "Side" and "Value"
// columns are derived/display-only and have no place to round-trip back
// into).
func ParseTrades(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvport: parsing trades: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csvport: empty trade export")
	}
	return rows[1:], nil // drop header
}
