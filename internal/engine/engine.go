// Package engine implements the matching engine: the single logical
// serializer that owns the submission queue, routes orders to the right
// per-symbol book (internal/book), matches under price-time priority, and
// publishes trades and fill notifications.
//
// The goroutine lifecycle (the dequeue loop and the 1Hz stats ticker) is
// supervised by a gopkg.in/tomb.v2 Tomb, adapted from the teacher's
// internal/net/server.go and internal/worker.go WorkerPool — there the tomb
// supervised TCP connection handling; here it supervises the engine's own
// internal producer/consumer loop, since a network surface is out of scope.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"matchsim/internal/book"
	"matchsim/internal/common"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// DefaultTradeHistoryCapacity is C_engine from §6.4: the bound on the global
// trade history.
const DefaultTradeHistoryCapacity = 10000

// DefaultQueueCapacity bounds how many orders may be in flight in the
// submission queue before Submit blocks its caller.
const DefaultQueueCapacity = 4096

// state is the engine's lifecycle state (§4.4 "State machine of the
// engine").
type state int32

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// FillCallback is invoked inline on the matcher goroutine whenever one of a
// trader's orders is partially or fully filled. It must not block and must
// not call Submit/Cancel for the same trader inline in a way that could
// livelock the matcher.
type FillCallback func(order *common.Order, quantity uint64, price float64)

// Engine is the central matching engine. One Engine may be constructed,
// started, stopped, and cleared repeatedly within a single process — there
// is no hidden global/singleton state.
type Engine struct {
	booksMu sync.RWMutex
	books   map[string]*book.OrderBook

	queue chan *common.Order

	activeMu     sync.RWMutex
	activeOrders map[string]*common.Order

	tradersMu sync.RWMutex
	traders   map[string]FillCallback

	tradeHistoryMu sync.RWMutex
	tradeHistory   *book.TradeRing[common.Trade]
	tradeIDs       *common.TradeIDGenerator

	stats *Stats

	state state
	t     *tomb.Tomb
	tMu   sync.Mutex

	startedAtNano int64 // unix nanos of the most recent Start; 0 if never started

	tradeHistoryCapacity int
	queueCapacity        int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithTradeHistoryCapacity overrides C_engine (default
// DefaultTradeHistoryCapacity).
func WithTradeHistoryCapacity(capacity int) Option {
	return func(e *Engine) { e.tradeHistoryCapacity = capacity }
}

// WithQueueCapacity overrides the submission queue's buffer size.
func WithQueueCapacity(capacity int) Option {
	return func(e *Engine) { e.queueCapacity = capacity }
}

// New constructs an engine in the IDLE state.
func New(opts ...Option) *Engine {
	e := &Engine{
		books:                make(map[string]*book.OrderBook),
		activeOrders:         make(map[string]*common.Order),
		traders:              make(map[string]FillCallback),
		tradeIDs:             common.NewTradeIDGenerator(),
		tradeHistoryCapacity: DefaultTradeHistoryCapacity,
		queueCapacity:        DefaultQueueCapacity,
		state:                stateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tradeHistory = book.NewTradeRing[common.Trade](e.tradeHistoryCapacity)
	e.queue = make(chan *common.Order, e.queueCapacity)
	e.stats = newStats()
	return e
}

// RegisterTrader binds a trader id to its fill callback. A trader registers
// itself before submitting orders so fills can be routed back to it.
func (e *Engine) RegisterTrader(traderID string, cb FillCallback) {
	e.tradersMu.Lock()
	defer e.tradersMu.Unlock()
	e.traders[traderID] = cb
}

// GetOrderBook returns the book for symbol, creating it on first use.
func (e *Engine) GetOrderBook(symbol string) *book.OrderBook {
	e.booksMu.RLock()
	b, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if ok {
		return b
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if b, ok = e.books[symbol]; ok {
		return b
	}
	b = book.New(symbol)
	e.books[symbol] = b
	return b
}

// Start transitions IDLE or STOPPED -> RUNNING and begins draining the
// submission queue. Restarting after Stop is supported (a fresh Tomb is
// created each time, since a tomb.Tomb cannot be reused once dead).
func (e *Engine) Start() {
	e.tMu.Lock()
	defer e.tMu.Unlock()

	if state(atomic.LoadInt32((*int32)(&e.state))) == stateRunning {
		return
	}
	atomic.StoreInt32((*int32)(&e.state), int32(stateRunning))
	atomic.StoreInt64(&e.startedAtNano, time.Now().UnixNano())

	e.t = &tomb.Tomb{}
	e.t.Go(e.runMatchLoop)
	e.t.Go(e.runStatsTicker)
	log.Info().Msg("matching engine started")
}

// Stop halts dequeueing. Idempotent: stopping an already-stopped (or never
// started) engine is a no-op. Orders already enqueued but not yet processed
// remain in the queue and resume on the next Start.
func (e *Engine) Stop() {
	e.tMu.Lock()
	defer e.tMu.Unlock()

	if state(atomic.LoadInt32((*int32)(&e.state))) != stateRunning {
		return
	}
	atomic.StoreInt32((*int32)(&e.state), int32(stateStopped))
	if e.t != nil {
		e.t.Kill(nil)
		_ = e.t.Wait()
	}
	log.Info().Msg("matching engine stopped")
}

// Clear empties the submission queue, every book, the trade history, and the
// performance counters. It does not change the running state.
func (e *Engine) Clear() {
drain:
	for {
		select {
		case <-e.queue:
		default:
			break drain
		}
	}

	e.booksMu.Lock()
	for _, b := range e.books {
		b.Clear()
	}
	e.booksMu.Unlock()

	e.activeMu.Lock()
	e.activeOrders = make(map[string]*common.Order)
	e.activeMu.Unlock()

	e.tradeHistoryMu.Lock()
	e.tradeHistory.Clear()
	e.tradeHistoryMu.Unlock()

	e.stats = newStats()
	if e.isRunning() {
		atomic.StoreInt64(&e.startedAtNano, time.Now().UnixNano())
	} else {
		atomic.StoreInt64(&e.startedAtNano, 0)
	}
}

// uptime is the time elapsed since the engine's most recent Start, or zero
// if it has never been started.
func (e *Engine) uptime() time.Duration {
	nano := atomic.LoadInt64(&e.startedAtNano)
	if nano == 0 {
		return 0
	}
	return time.Since(time.Unix(0, nano))
}

func (e *Engine) isRunning() bool {
	return state(atomic.LoadInt32((*int32)(&e.state))) == stateRunning
}

func (e *Engine) runMatchLoop() error {
	for {
		select {
		case <-e.t.Dying():
			return nil
		case order := <-e.queue:
			e.processOrder(order)
		}
	}
}

func (e *Engine) runStatsTicker() error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.t.Dying():
			return nil
		case <-ticker.C:
			e.stats.tick()
		}
	}
}
