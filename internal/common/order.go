package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fill is a single execution against part or all of an order.
type Fill struct {
	Quantity uint64
	Price    float64
	Time     time.Time
}

// Order is the unit of intent in the simulator. It is immutable except for
// fill accounting and status, both of which are mutated only by the matcher
// (via Fill) or by an explicit Cancel routed through the engine. No other
// party mutates an order once constructed.
type Order struct {
	OrderID           string
	TraderID          string
	Symbol            string
	Side              Side
	OriginalQuantity  uint64
	RemainingQuantity uint64
	Price             float64
	Status            Status
	SubmitTime        time.Time
	Fills             []Fill
}

// NewOrder constructs an order, assigning its id and submit time. It validates
// quantity and price; a violation here is a RejectedSubmission, not a
// ContractViolation, since it is caught before the order ever reaches the
// queue.
func NewOrder(traderID, symbol string, side Side, quantity uint64, price float64) (*Order, error) {
	if traderID == "" {
		return nil, &RejectedSubmission{Reason: ErrEmptyTraderID}
	}
	if symbol == "" {
		return nil, &RejectedSubmission{Reason: ErrEmptySymbol}
	}
	if quantity == 0 {
		return nil, &RejectedSubmission{Reason: ErrNonPositiveQuantity}
	}
	if price <= 0 {
		return nil, &RejectedSubmission{Reason: ErrNonPositivePrice}
	}

	return &Order{
		OrderID:           uuid.New().String(),
		TraderID:          traderID,
		Symbol:            symbol,
		Side:              side,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		Price:             price,
		Status:            Pending,
		SubmitTime:        time.Now(),
	}, nil
}

// Fill records an execution of q shares at price p. The precondition
// q <= RemainingQuantity is a ContractViolation if violated — callers (the
// matcher) must never call Fill with a quantity larger than what remains.
func (o *Order) Fill(q uint64, p float64) error {
	if q == 0 {
		return ErrNonPositiveQuantity
	}
	if p <= 0 {
		return ErrNonPositivePrice
	}
	if q > o.RemainingQuantity {
		return ErrOverfill
	}

	o.Fills = append(o.Fills, Fill{Quantity: q, Price: p, Time: time.Now()})
	o.RemainingQuantity -= q
	if o.RemainingQuantity == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
	return nil
}

// Cancel transitions an active order to CANCELLED. It is idempotent on
// terminal states: cancelling an already-filled or already-cancelled order
// has no effect and is not an error (the engine reports this as CancelMiss
// rather than surfacing it here).
func (o *Order) Cancel() bool {
	if !o.Status.IsActive() {
		return false
	}
	o.Status = Cancelled
	return true
}

// FilledQuantity is the sum of all fill quantities.
func (o *Order) FilledQuantity() uint64 {
	var sum uint64
	for _, f := range o.Fills {
		sum += f.Quantity
	}
	return sum
}

// AverageFillPrice is the volume-weighted mean fill price, 0 when unfilled.
func (o *Order) AverageFillPrice() float64 {
	var qty uint64
	var notional float64
	for _, f := range o.Fills {
		qty += f.Quantity
		notional += float64(f.Quantity) * f.Price
	}
	if qty == 0 {
		return 0
	}
	return notional / float64(qty)
}

// IsActive reports whether the order can still rest or match.
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"OrderID:    %s\nTraderID:   %s\nSymbol:     %s\nSide:       %v\nPrice:      %f\nQuantity:   %d (Total: %d)\nStatus:     %v\nSubmitTime: %v",
		o.OrderID,
		o.TraderID,
		o.Symbol,
		o.Side,
		o.Price,
		o.RemainingQuantity,
		o.OriginalQuantity,
		o.Status,
		o.SubmitTime.Format(time.RFC3339Nano),
	)
}
