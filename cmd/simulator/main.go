// Command simulator wires the matching engine, a population of synthetic
// traders, and the CSV port together and runs them for a fixed duration,
// printing a market summary and exporting CSV reports on exit. There is no
// network listener: CSV import/export is the system's only external
// interface (§6, §1 non-goals).
package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"matchsim/internal/csvport"
	"matchsim/internal/engine"
	"matchsim/internal/trader"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	symbols := flag.String("symbols", "AAPL,MSFT,GOOG", "comma-separated symbol universe")
	traderCount := flag.Int("traders", 10, "number of synthetic traders")
	initialCash := flag.Float64("cash", 100000, "starting cash per trader")
	duration := flag.Duration("duration", 30*time.Second, "how long to run before reporting")
	importPath := flag.String("import", "", "optional CSV file of orders to ingest before trading starts")
	tradesOut := flag.String("trades-out", "trades.csv", "path to write the trade export")
	metricsOut := flag.String("metrics-out", "metrics.csv", "path to write the engine metrics export")
	profile := flag.String("profile", "default", "trader tick-loop profile: default or hft")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	syms := splitSymbols(*symbols)

	eng := engine.New()
	eng.Start()
	defer eng.Stop()

	if *importPath != "" {
		runImport(eng, *importPath)
	}

	cfg := traderConfig(*profile)

	traders := make([]*trader.Trader, 0, *traderCount)
	for i := 0; i < *traderCount; i++ {
		id := "trader-" + strconv.Itoa(i)
		tr := trader.New(id, eng, syms, *initialCash, trader.WithConfig(cfg))
		tr.Start()
		traders = append(traders, tr)
	}

	log.Info().Int("traders", len(traders)).Strs("symbols", syms).Dur("duration", *duration).Msg("simulation running")
	time.Sleep(*duration)

	for _, tr := range traders {
		tr.Stop()
	}

	report(eng, *tradesOut, *metricsOut)
}

// traderConfig resolves the -profile flag to a trader.Config: "hft" selects
// the smaller-clip §4.5 step-4 profile, anything else falls back to the
// default tick-loop parameters.
func traderConfig(profile string) trader.Config {
	if profile == "hft" {
		return trader.HFTConfig()
	}
	return trader.DefaultConfig()
}

func runImport(eng *engine.Engine, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not open import file")
		return
	}
	defer f.Close()

	result, err := csvport.ImportOrders(eng, f)
	if err != nil {
		log.Error().Err(err).Msg("csv import failed")
		return
	}
	log.Info().
		Int("submitted", result.OrdersSubmitted).
		Int("failed", result.OrdersFailed).
		Int("total_rows", result.TotalRows).
		Msg("csv import complete")
}

func report(eng *engine.Engine, tradesOut, metricsOut string) {
	summary := eng.MarketSummary()
	for _, row := range summary.Symbols {
		log.Info().
			Str("symbol", row.Symbol).
			Bool("has_bid", row.HasBestBid).
			Float64("bid", row.BestBid).
			Bool("has_ask", row.HasBestAsk).
			Float64("ask", row.BestAsk).
			Int("bid_depth", row.BidDepth).
			Int("ask_depth", row.AskDepth).
			Msg("symbol statistics")
	}

	if tradesOut != "" {
		if f, err := os.Create(tradesOut); err == nil {
			_ = csvport.ExportTrades(f, eng.AllTrades())
			f.Close()
		}
	}

	if metricsOut != "" {
		if f, err := os.Create(metricsOut); err == nil {
			_ = csvport.ExportEngineMetrics(f, eng.PerformanceStats())
			f.Close()
		}
	}
}

func splitSymbols(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
