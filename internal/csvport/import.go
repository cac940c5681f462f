// Package csvport is the simulator's sole external interface (§6): it reads
// order batches from a flat CSV table and submits them through the same
// engine.Submit entry point a synthetic trader uses, and it serializes
// trades, book snapshots, and trader/engine statistics back out to CSV.
package csvport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"matchsim/internal/common"
	"matchsim/internal/concurrency"
	"matchsim/internal/engine"
)

// requiredColumns are the headers ImportOrders must find (case-insensitive,
// any order); optional "timestamp" is accepted but not loaded into the
// resulting order, since the engine assigns its own submit time (§6.1).
var requiredColumns = []string{"trader_id", "symbol", "side", "quantity", "price"}

const rowsPerChunk = 256

// importWorkers bounds how many chunks of a CSV batch are validated and
// submitted concurrently.
const importWorkers = 4

// ImportResult is the return contract of §6.1.
type ImportResult struct {
	Success         bool
	OrdersSubmitted int
	OrdersFailed    int
	TotalRows       int
	Errors          []common.IngestRowError
	SymbolsImported []string
	TradersImported []string
}

// ImportOrders parses r as a CSV order batch and submits every valid row
// through eng.Submit. Rows are split into chunks of rowsPerChunk, and the
// chunks run on a pool of importWorkers tomb-supervised goroutines rather
// than in one serial loop.
func ImportOrders(eng *engine.Engine, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvport: reading header: %w", err)
	}
	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return ImportResult{}, fmt.Errorf("csvport: missing required columns: %s", strings.Join(missing, ", "))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("csvport: reading rows: %w", err)
	}

	var (
		mu              sync.Mutex
		ordersSubmitted int
		ordersFailed    int
		rowErrors       []common.IngestRowError
		symbols         = make(map[string]struct{})
		traders         = make(map[string]struct{})
	)

	record := func(line int, row []string) {
		order, rowErr := parseRow(cols, line, row)
		mu.Lock()
		defer mu.Unlock()
		if rowErr != nil {
			ordersFailed++
			rowErrors = append(rowErrors, *rowErr)
			return
		}
		if err := eng.Submit(order); err != nil {
			ordersFailed++
			rowErrors = append(rowErrors, common.IngestRowError{Line: line, Reason: err})
			return
		}
		ordersSubmitted++
		symbols[order.Symbol] = struct{}{}
		traders[order.TraderID] = struct{}{}
	}

	var jobs []func()
	for start := 0; start < len(rows); start += rowsPerChunk {
		end := start + rowsPerChunk
		if end > len(rows) {
			end = len(rows)
		}
		chunkStart, chunkRows := start, rows[start:end]
		jobs = append(jobs, func() {
			for i, row := range chunkRows {
				record(chunkStart+i+2, row) // +2: 1-indexed, plus the header row
			}
		})
	}

	pool := concurrency.NewWorkerPool(importWorkers)
	pool.RunAll(jobs)
	pool.Close()

	result := ImportResult{
		Success:         ordersFailed == 0,
		OrdersSubmitted: ordersSubmitted,
		OrdersFailed:    ordersFailed,
		TotalRows:       len(rows),
		Errors:          rowErrors,
		SymbolsImported: keys(symbols),
		TradersImported: keys(traders),
	}
	return result, nil
}

type columnIndex struct {
	traderID  int
	symbol    int
	side      int
	quantity  int
	price     int
	timestamp int // -1 if absent
}

func resolveColumns(header []string) (columnIndex, []string) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}

	cols := columnIndex{
		traderID:  idx["trader_id"],
		symbol:    idx["symbol"],
		side:      idx["side"],
		quantity:  idx["quantity"],
		price:     idx["price"],
		timestamp: -1,
	}
	if i, ok := idx["timestamp"]; ok {
		cols.timestamp = i
	}
	return cols, missing
}

func parseRow(cols columnIndex, line int, row []string) (*common.Order, *common.IngestRowError) {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	traderID := field(cols.traderID)
	symbol := strings.ToUpper(field(cols.symbol))
	sideStr := field(cols.side)
	quantityStr := field(cols.quantity)
	priceStr := field(cols.price)

	side, ok := common.ParseSide(sideStr)
	if !ok {
		return nil, &common.IngestRowError{Line: line, Reason: fmt.Errorf("%w: %q", common.ErrInvalidSide, sideStr)}
	}

	quantity, err := strconv.ParseInt(quantityStr, 10, 64)
	if err != nil || quantity <= 0 {
		return nil, &common.IngestRowError{Line: line, Reason: common.ErrNonPositiveQuantity}
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return nil, &common.IngestRowError{Line: line, Reason: common.ErrNonPositivePrice}
	}

	order, err := common.NewOrder(traderID, symbol, side, uint64(quantity), price)
	if err != nil {
		return nil, &common.IngestRowError{Line: line, Reason: err}
	}
	return order, nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
