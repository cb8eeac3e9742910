package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether an order buys or sells the asset.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the matching side: buys match against sells and
// vice versa.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Valid returns true for the two supported sides.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus represents the lifecycle state of an order. Filled and
// cancelled are terminal; RemainingQuantity is frozen once either is
// reached.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Active returns true while the order is still eligible for matching.
func (s OrderStatus) Active() bool {
	return s == OrderStatusOpen || s == OrderStatusPartiallyFilled
}

// Order represents a limit order submitted by an account. Seq is a
// monotone submission sequence assigned by the order store; it is the
// tiebreak between orders at the same price (price-time priority).
type Order struct {
	OrderID           string
	AccountID         string
	AssetID           string
	Side              OrderSide
	LimitPrice        decimal.Decimal
	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	Status            OrderStatus
	Seq               uint64
	CreatedAt         time.Time
	CancelledAt       *time.Time
	Trades            []*Trade
}

// FilledQuantity returns the cumulative quantity matched so far.
func (o *Order) FilledQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.RemainingQuantity)
}

// AveragePrice computes the volume-weighted average execution price over
// the order's trades. Returns (price, true) when fills exist, or
// (zero, false) otherwise.
func (o *Order) AveragePrice() (decimal.Decimal, bool) {
	filled := o.FilledQuantity()
	if len(o.Trades) == 0 || filled.IsZero() {
		return decimal.Zero, false
	}
	total := decimal.Zero
	for _, t := range o.Trades {
		total = total.Add(t.Price.Mul(t.Quantity))
	}
	return total.Div(filled), true
}

// EscrowRemaining returns the escrow still held against the order: the
// remaining quantity for sells, the remaining notional at the limit
// price for buys.
func (o *Order) EscrowRemaining() decimal.Decimal {
	if o.Side == OrderSideSell {
		return o.RemainingQuantity
	}
	return o.LimitPrice.Mul(o.RemainingQuantity)
}
