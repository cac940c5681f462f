package common

import (
	"fmt"
	"time"
)

// Trade is an immutable execution record. TradeID is assigned by the engine
// in strictly increasing, zero-padded form (see ids.go); trades execute at
// the resting (maker) price of the order picked off, never at the
// aggressor's limit price.
type Trade struct {
	TradeID      string
	Timestamp    time.Time
	Symbol       string
	Quantity     uint64
	Price        float64
	BuyerID      string
	SellerID     string
	BuyOrderID   string
	SellOrderID  string
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"TradeID: %s  Symbol: %s  Qty: %d  Price: %f  Buyer: %s  Seller: %s  Time: %v",
		t.TradeID,
		t.Symbol,
		t.Quantity,
		t.Price,
		t.BuyerID,
		t.SellerID,
		t.Timestamp.Format(time.RFC3339Nano),
	)
}
