// Package trader implements the synthetic agent traffic generator: an
// autonomous actor that periodically submits orders to an engine, tracks
// its own cash/position/P&L state, and reacts to fill notifications.
package trader

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"matchsim/internal/common"
	"matchsim/internal/engine"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	tomb "gopkg.in/tomb.v2"
)

// Trader is a single synthetic agent. Its state (cash, positions, average
// cost, counters) is guarded by mu because it is written both from the
// trader's own tick goroutine and from the engine's matcher goroutine (via
// the registered fill callback) — see §5 "Fill callbacks run on the matcher
// thread".
type Trader struct {
	id          string
	eng         *engine.Engine
	symbols     []string
	cfg         Config
	limiter     *rate.Limiter
	rng         *rand.Rand

	mu              sync.Mutex
	initialCash     float64
	cash            float64
	positions       map[string]int64
	averageCost     map[string]float64
	referencePrices map[string]float64
	ordersSent      uint64
	ordersFilled    uint64
	totalVolume     uint64

	// boughtQty/soldQty are a per-symbol fill ledger kept only to verify
	// the InvariantDrift condition in checkPositionInvariantLocked: position
	// must always equal cumulative buys minus cumulative sells.
	boughtQty map[string]uint64
	soldQty   map[string]uint64

	t *tomb.Tomb
}

// Option configures a Trader at construction time.
type Option func(*Trader)

// WithConfig overrides the default tick-loop parameters.
func WithConfig(cfg Config) Option {
	return func(tr *Trader) { tr.cfg = cfg }
}

// WithRateLimit caps the trader's order-submission rate with a token
// bucket, independent of the per-tick jitter delay — useful when a caller
// wants a hard ceiling on a trader's rate regardless of how its interval
// config is tuned.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(tr *Trader) { tr.limiter = rate.NewLimiter(r, burst) }
}

// WithSeed pins the trader's random source for reproducible simulation
// runs; without it each trader seeds from its own id.
func WithSeed(seed int64) Option {
	return func(tr *Trader) { tr.rng = rand.New(rand.NewSource(seed)) }
}

// New constructs a trader with the given id, symbol universe, and starting
// cash. The trader is not yet registered with the engine or ticking until
// Start is called.
func New(id string, eng *engine.Engine, symbols []string, initialCash float64, opts ...Option) *Trader {
	tr := &Trader{
		id:              id,
		eng:             eng,
		symbols:         append([]string(nil), symbols...),
		cfg:             DefaultConfig(),
		initialCash:     initialCash,
		cash:            initialCash,
		positions:       make(map[string]int64),
		averageCost:     make(map[string]float64),
		referencePrices: make(map[string]float64),
		boughtQty:       make(map[string]uint64),
		soldQty:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(tr)
	}
	if tr.rng == nil {
		tr.rng = rand.New(rand.NewSource(seedFromID(id)))
	}
	return tr
}

func seedFromID(id string) int64 {
	var h int64 = 1469598103934665603
	for _, c := range id {
		h ^= int64(c)
		h *= 1099511628211
	}
	if h == 0 {
		h = 1
	}
	return h
}

// ID returns the trader's opaque identifier.
func (tr *Trader) ID() string { return tr.id }

// Start registers the trader's fill callback with the engine and launches
// its tick loop as a tomb-supervised goroutine.
func (tr *Trader) Start() {
	tr.eng.RegisterTrader(tr.id, tr.onFill)
	tr.t = &tomb.Tomb{}
	tr.t.Go(tr.runTickLoop)
}

// Stop halts the trader's tick timer. In-flight and resting orders are not
// cancelled (§4.5's "stop_trading" contract, §5 cancellation notes).
func (tr *Trader) Stop() {
	if tr.t == nil {
		return
	}
	tr.t.Kill(nil)
	_ = tr.t.Wait()
}

func (tr *Trader) runTickLoop() error {
	for {
		delay := tr.nextInterval()
		select {
		case <-tr.t.Dying():
			return nil
		case <-time.After(delay):
		}

		if tr.limiter != nil {
			ctx, cancel := context.WithTimeout(context.Background(), tr.cfg.MaxInterval*4)
			err := tr.limiter.Wait(ctx)
			cancel()
			if err != nil {
				continue
			}
		}

		tr.tick()
	}
}

func (tr *Trader) nextInterval() time.Duration {
	lo, hi := tr.cfg.MinInterval, tr.cfg.MaxInterval
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(tr.rng.Int63n(int64(span)))
}

// tick performs one full decision cycle of §4.5 steps 1-7.
func (tr *Trader) tick() {
	symbol := tr.symbols[tr.rng.Intn(len(tr.symbols))]

	ref := tr.walkReferencePrice(symbol)

	tr.mu.Lock()
	position := tr.positions[symbol]
	cash := tr.cash
	tr.mu.Unlock()

	side := tr.chooseSide(position)

	qty := tr.cfg.MinOrderSize + uint64(tr.rng.Int63n(int64(tr.cfg.MaxOrderSize-tr.cfg.MinOrderSize+1)))

	u := (tr.rng.Float64()*2 - 1) * tr.cfg.Volatility
	var price float64
	if side == common.Buy {
		price = ref * (1 - math.Abs(u))
	} else {
		price = ref * (1 + math.Abs(u))
	}
	price = math.Round(price*100) / 100

	qty, skip := tr.applyAffordabilityGuard(side, qty, price, cash, position)
	if skip {
		return
	}

	order, err := common.NewOrder(tr.id, symbol, side, qty, price)
	if err != nil {
		log.Debug().Err(err).Str("trader_id", tr.id).Msg("synthetic order rejected before submission")
		return
	}
	if err := tr.eng.Submit(order); err != nil {
		log.Error().Err(err).Str("trader_id", tr.id).Msg("submit failed")
		return
	}

	tr.mu.Lock()
	tr.ordersSent++
	tr.mu.Unlock()
}

func (tr *Trader) chooseSide(position int64) common.Side {
	roll := tr.rng.Float64()
	switch {
	case position > 500:
		if roll < 0.7 {
			return common.Sell
		}
		return common.Buy
	case position == 0:
		if roll < 0.7 {
			return common.Buy
		}
		return common.Sell
	default:
		if roll < 0.5 {
			return common.Buy
		}
		return common.Sell
	}
}

// applyAffordabilityGuard clamps qty to what the trader can actually afford
// or deliver, and reports whether the tick should be skipped entirely
// (§4.5 step 6).
func (tr *Trader) applyAffordabilityGuard(side common.Side, qty uint64, price float64, cash float64, position int64) (uint64, bool) {
	switch side {
	case common.Buy:
		if float64(qty)*price > cash {
			qty = uint64(cash / price)
		}
	case common.Sell:
		avail := uint64(0)
		if position > 0 {
			avail = uint64(position)
		}
		if qty > avail {
			qty = avail
		}
	}
	if qty < tr.cfg.MinOrderSize {
		return 0, true
	}
	return qty, false
}

// walkReferencePrice advances the trader's private estimate of a symbol's
// price by a small random walk, ignoring the real order book entirely —
// this is the "likely source bug" flagged in §9, preserved as specified.
func (tr *Trader) walkReferencePrice(symbol string) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	ref, ok := tr.referencePrices[symbol]
	if !ok {
		ref = tr.cfg.InitialReference
	} else {
		step := (tr.rng.Float64()*2 - 1) * tr.cfg.Volatility
		ref = ref * (1 + step)
		if ref < tr.cfg.MinReference {
			ref = tr.cfg.MinReference
		}
	}
	tr.referencePrices[symbol] = ref
	return ref
}

// onFill is the engine.FillCallback dispatched on the matcher goroutine for
// every partial or full fill of one of this trader's orders (§4.5 "Fill
// handling").
func (tr *Trader) onFill(order *common.Order, quantity uint64, price float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	notional := float64(quantity) * price
	switch order.Side {
	case common.Buy:
		tr.cash -= notional
		existingQty := tr.positions[order.Symbol]
		existingCost := tr.averageCost[order.Symbol]
		newQty := existingQty + int64(quantity)
		if newQty != 0 {
			tr.averageCost[order.Symbol] = (float64(existingQty)*existingCost + notional) / float64(newQty)
		}
		tr.positions[order.Symbol] = newQty
		tr.boughtQty[order.Symbol] += quantity
	case common.Sell:
		tr.cash += notional
		tr.positions[order.Symbol] -= int64(quantity)
		if tr.positions[order.Symbol] == 0 {
			tr.averageCost[order.Symbol] = 0
		}
		tr.soldQty[order.Symbol] += quantity
	}

	tr.ordersFilled++
	tr.totalVolume += quantity

	tr.checkPositionInvariantLocked(order.Symbol)
}

// checkPositionInvariantLocked verifies §7's "trader position inconsistent
// with its fill history" InvariantDrift condition: position must always
// equal cumulative buy fills minus cumulative sell fills for that symbol.
// Caller must already hold tr.mu.
func (tr *Trader) checkPositionInvariantLocked(symbol string) {
	expected := int64(tr.boughtQty[symbol]) - int64(tr.soldQty[symbol])
	if tr.positions[symbol] != expected {
		common.AssertInvariant(common.ErrPositionDrift, map[string]any{
			"trader_id": tr.id,
			"symbol":    symbol,
			"position":  tr.positions[symbol],
			"expected":  expected,
		})
	}
}

// Snapshot is a point-in-time read of a trader's accounting state, used by
// the CSV port's trader-performance export.
type Snapshot struct {
	TraderID     string
	InitialCash  float64
	Cash         float64
	Positions    map[string]int64
	AverageCost  map[string]float64
	OrdersSent   uint64
	OrdersFilled uint64
	TotalVolume  uint64
}

// Snapshot copies out the trader's current accounting state.
func (tr *Trader) Snapshot() Snapshot {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	positions := make(map[string]int64, len(tr.positions))
	for k, v := range tr.positions {
		positions[k] = v
	}
	averageCost := make(map[string]float64, len(tr.averageCost))
	for k, v := range tr.averageCost {
		averageCost[k] = v
	}

	return Snapshot{
		TraderID:     tr.id,
		InitialCash:  tr.initialCash,
		Cash:         tr.cash,
		Positions:    positions,
		AverageCost:  averageCost,
		OrdersSent:   tr.ordersSent,
		OrdersFilled: tr.ordersFilled,
		TotalVolume:  tr.totalVolume,
	}
}

// PortfolioValue is cash plus the mark-to-reference value of every held
// position (§4.5).
func (s Snapshot) PortfolioValue(referencePrice func(symbol string) float64) float64 {
	value := s.Cash
	for symbol, qty := range s.Positions {
		value += float64(qty) * referencePrice(symbol)
	}
	return value
}

// TotalPnL is portfolio value minus initial cash.
func (s Snapshot) TotalPnL(referencePrice func(symbol string) float64) float64 {
	return s.PortfolioValue(referencePrice) - s.InitialCash
}

// SymbolPnL is the per-symbol P&L: position marked at reference minus
// position marked at average cost.
func (s Snapshot) SymbolPnL(symbol string, referencePrice float64) float64 {
	qty := float64(s.Positions[symbol])
	return qty*referencePrice - qty*s.AverageCost[symbol]
}
