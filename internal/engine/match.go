package engine

import (
	"time"

	"matchsim/internal/book"
	"matchsim/internal/common"

	"github.com/rs/zerolog/log"
)

// Submit validates nothing itself (that already happened in common.NewOrder)
// and enqueues order for the match loop. It registers the order as active
// before handing it to the queue so a concurrent Cancel can find it
// immediately, even before the matcher has picked it up.
func (e *Engine) Submit(order *common.Order) error {
	e.activeMu.Lock()
	e.activeOrders[order.OrderID] = order
	e.activeMu.Unlock()

	select {
	case e.queue <- order:
		return nil
	default:
	}
	// Queue full: block, but don't hold activeMu while doing so.
	e.queue <- order
	return nil
}

// Cancel removes a resting or in-flight order. It acquires the same
// book-level lock the matcher holds for the duration of processing one
// order, so a cancel that arrives while the order is mid-match blocks until
// the matcher has fully resolved it (either the order is gone, already
// filled, or it is resting and can be pulled) — this is how races between
// Submit and Cancel are resolved per the engine's concurrency model, rather
// than via a separate command queue.
func (e *Engine) Cancel(orderID string) bool {
	e.activeMu.RLock()
	order, ok := e.activeOrders[orderID]
	e.activeMu.RUnlock()
	if !ok {
		return false
	}

	bk := e.GetOrderBook(order.Symbol)
	bk.Lock()
	defer bk.Unlock()

	if !order.IsActive() {
		return false
	}
	// If the order is not resting it is still queued (or dequeued but not yet
	// matched); marking it cancelled makes the matcher skip it, since match
	// only works on active orders.
	bk.RemoveOrder(order.OrderID, order.Side)
	order.Cancel()
	e.forgetActive(order.OrderID)
	return true
}

func (e *Engine) forgetActive(orderID string) {
	e.activeMu.Lock()
	delete(e.activeOrders, orderID)
	e.activeMu.Unlock()
}

// processOrder is the sole body of the match loop's consumer: it times the
// order's trip through the engine for the latency sample window, matches it
// against the resting book, and rests whatever remains.
func (e *Engine) processOrder(order *common.Order) {
	start := time.Now()

	bk := e.GetOrderBook(order.Symbol)
	bk.Lock()
	e.match(bk, order)
	bk.VerifyLocked()
	bk.Unlock()

	e.stats.recordProcessed(time.Since(start))

	if !order.IsActive() {
		e.forgetActive(order.OrderID)
	}
}

// match implements the aggressive-matching sweep of §4.4: while the
// incoming order is still active and crosses the best resting price on the
// opposite side, execute against the head of that level's FIFO at the
// resting (maker) price, then rest any remainder.
func (e *Engine) match(bk *book.OrderBook, incoming *common.Order) {
	opposite := bk.OppositeSideFor(incoming.Side)

	for incoming.IsActive() {
		lvl, ok := opposite.BestLevelMut()
		if !ok {
			break
		}
		if !crosses(incoming, lvl.Price) {
			break
		}

		consumed := 0
		for consumed < len(lvl.Orders) && incoming.IsActive() {
			resting := lvl.Orders[consumed]

			qty := resting.RemainingQuantity
			if incoming.RemainingQuantity < qty {
				qty = incoming.RemainingQuantity
			}

			e.execute(bk, incoming, resting, qty, lvl.Price)

			if resting.IsActive() {
				// Incoming was fully consumed against a partially-filled
				// resting order; the resting order stays at the head.
				break
			}
			consumed++
		}

		// consumeHeadAndSync must run even when consumed == 0: the incoming
		// order may have been fully exhausted against a resting order that
		// only partially filled and stayed at the head of the FIFO, which
		// still changes that order's RemainingQuantity and so the level's
		// cached TotalQuantity (P5) even though no order actually left the
		// level.
		opposite.consumeHeadAndSync(lvl, consumed)
		if lvl.OrderCount == 0 {
			opposite.DeleteLevel(lvl)
		}
	}

	if incoming.IsActive() {
		bk.AddOrder(incoming)
	}
}

// crosses reports whether an incoming order at its limit price is willing
// to trade against a resting price on the opposite side.
func crosses(incoming *common.Order, restingPrice float64) bool {
	if incoming.Side == common.Buy {
		return incoming.Price >= restingPrice
	}
	return incoming.Price <= restingPrice
}

// execute fills both sides of a match at the maker (resting) price and
// publishes the resulting trade. Caller must hold bk's lock.
func (e *Engine) execute(bk *book.OrderBook, incoming, resting *common.Order, quantity uint64, price float64) {
	if err := incoming.Fill(quantity, price); err != nil {
		log.Error().Err(err).Str("order_id", incoming.OrderID).Msg("fill rejected on incoming order")
		return
	}
	if err := resting.Fill(quantity, price); err != nil {
		log.Error().Err(err).Str("order_id", resting.OrderID).Msg("fill rejected on resting order")
		return
	}

	buyer, seller := incoming, resting
	if incoming.Side == common.Sell {
		buyer, seller = resting, incoming
	}

	trade := common.Trade{
		TradeID:     e.tradeIDs.Next(),
		Timestamp:   time.Now(),
		Symbol:      bk.Symbol,
		Quantity:    quantity,
		Price:       price,
		BuyerID:     buyer.TraderID,
		SellerID:    seller.TraderID,
		BuyOrderID:  buyer.OrderID,
		SellOrderID: seller.OrderID,
	}
	bk.AppendTrade(trade)

	e.tradeHistoryMu.Lock()
	e.tradeHistory.Append(trade)
	e.tradeHistoryMu.Unlock()

	e.stats.recordTrade(quantity, price)

	// Buyer first, then seller, matching the deterministic notification
	// order spec'd for a single match event.
	e.notifyFill(buyer, quantity, price)
	e.notifyFill(seller, quantity, price)

	if !resting.IsActive() {
		e.forgetActive(resting.OrderID)
	}
}

func (e *Engine) notifyFill(order *common.Order, quantity uint64, price float64) {
	e.tradersMu.RLock()
	cb, ok := e.traders[order.TraderID]
	e.tradersMu.RUnlock()
	if !ok {
		return
	}
	cb(order, quantity, price)
}
