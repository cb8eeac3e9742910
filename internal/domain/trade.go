package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents a matched execution between a buy and a sell order.
// Trades are immutable and created only by the matching engine. Fee is
// recorded for accounting but not debited from either party.
type Trade struct {
	TradeID     string
	AssetID     string
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Quantity    decimal.Decimal
	Price       decimal.Decimal // execution price (the resting order's limit)
	Fee         decimal.Decimal
	ExecutedAt  time.Time
}

// Notional returns the cash value of the trade (quantity × price).
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
