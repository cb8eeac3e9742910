package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/ledger"
	"github.com/tokeniq/assetmarket/internal/store"
)

// takerFeeRate is the flat fee recorded on every trade
// (quantity × price × rate). Fees are informational: they are stored on
// the trade record but debited from neither party.
var takerFeeRate = decimal.RequireFromString("0.002")

// Matcher implements the order matching and settlement engine for limit
// orders.
type Matcher struct {
	books      *BookManager
	ledger     *ledger.Ledger
	accounts   *store.AccountStore
	assets     *store.AssetStore
	orderStore *store.OrderStore
	tradeStore *store.TradeStore
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	books *BookManager,
	led *ledger.Ledger,
	accounts *store.AccountStore,
	assets *store.AssetStore,
	orderStore *store.OrderStore,
	tradeStore *store.TradeStore,
) *Matcher {
	return &Matcher{
		books:      books,
		ledger:     led,
		accounts:   accounts,
		assets:     assets,
		orderStore: orderStore,
		tradeStore: tradeStore,
	}
}

// fill is one planned matching step between the incoming order and a
// resting order.
type fill struct {
	resting *domain.Order
	qty     decimal.Decimal
	price   decimal.Decimal
}

// SubmitOrder processes an incoming limit order: parameter and
// tradability checks, escrow, the match loop, atomic settlement, and
// resting any unfilled remainder on the book.
//
// The caller provides an Order with AccountID, AssetID, Side, LimitPrice,
// and Quantity set. The matcher assigns OrderID, CreatedAt, Seq, and
// manages all status transitions.
//
// The per-asset write lock is held from escrow through final settlement,
// so two submissions for the same asset never interleave their matching
// loops. Orders for different assets match in parallel.
func (m *Matcher) SubmitOrder(order *domain.Order) ([]*domain.Trade, error) {
	// Parameter validation happens before any state is touched.
	if !order.Side.Valid() || !order.LimitPrice.IsPositive() || !order.Quantity.IsPositive() {
		return nil, domain.ErrInvalidOrderParams
	}

	asset, err := m.assets.Get(order.AssetID)
	if err != nil {
		return nil, err
	}
	if !asset.Tradable() {
		return nil, domain.ErrAssetNotTradable
	}

	book := m.books.GetOrCreate(order.AssetID)

	book.mu.Lock()
	defer book.mu.Unlock()

	// Step 1: Escrow. A failure here aborts before any order exists.
	if order.Side == domain.OrderSideSell {
		if err := m.ledger.LockAsset(order.AccountID, order.AssetID, order.Quantity); err != nil {
			return nil, err
		}
	} else {
		// The full notional at the limit price is reserved up front;
		// price-improvement surplus is refunded fill by fill.
		if err := m.ledger.LockCash(order.AccountID, order.LimitPrice.Mul(order.Quantity)); err != nil {
			return nil, err
		}
	}

	// Step 2: Create the order record.
	order.OrderID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.RemainingQuantity = order.Quantity
	order.Status = domain.OrderStatusOpen
	order.Trades = []*domain.Trade{}

	m.orderStore.Create(order)

	// Step 3: Plan the match loop against the resting orders, staging
	// every settlement into one ledger transaction. Nothing is mutated
	// until the plan commits.
	matchable := book.Matchable(order.Side, order.LimitPrice)

	remaining := order.RemainingQuantity
	tx := m.ledger.Begin()
	var fills []fill

	for _, resting := range matchable {
		if remaining.IsZero() {
			break
		}

		qty := decimal.Min(remaining, resting.RemainingQuantity)
		// The resting order's price always wins: the taker gets price
		// improvement, never degradation.
		price := resting.LimitPrice

		var buyerID, sellerID string
		if order.Side == domain.OrderSideBuy {
			buyerID, sellerID = order.AccountID, resting.AccountID
		} else {
			buyerID, sellerID = resting.AccountID, order.AccountID
		}

		tx.SettleTransfer(sellerID, buyerID, order.AssetID, qty, ledger.SourceLocked)
		tx.SpendLockedCash(buyerID, sellerID, qty.Mul(price))

		// Refund the incoming buyer's over-escrowed surplus when the
		// execution price improves on the limit. Resting buys escrowed
		// at their own limit, which is the execution price, so only the
		// incoming side can have a surplus.
		if order.Side == domain.OrderSideBuy && order.LimitPrice.GreaterThan(price) {
			tx.UnlockCash(order.AccountID, qty.Mul(order.LimitPrice.Sub(price)))
		}

		fills = append(fills, fill{resting: resting, qty: qty, price: price})
		remaining = remaining.Sub(qty)
	}

	if len(fills) == 0 {
		book.Insert(order)
		return nil, nil
	}

	// Step 4: Commit. The staged transaction applies every settlement of
	// the loop or none of them.
	if err := tx.Commit(); err != nil {
		m.abortSubmission(order)
		return nil, fmt.Errorf("settlement failed: %w", err)
	}

	executedAt := time.Now()
	trades := make([]*domain.Trade, 0, len(fills))

	for _, f := range fills {
		if _, err := m.orderStore.ApplyFill(f.resting.OrderID, f.qty); err != nil {
			// Unreachable while the per-asset lock is held; would mean
			// another writer raced the book.
			return trades, fmt.Errorf("apply fill on resting order %s: %w", f.resting.OrderID, err)
		}
		if f.resting.Status == domain.OrderStatusFilled {
			book.Remove(f.resting.OrderID)
		}

		var buyOrder, sellOrder *domain.Order
		if order.Side == domain.OrderSideBuy {
			buyOrder, sellOrder = order, f.resting
		} else {
			buyOrder, sellOrder = f.resting, order
		}

		trade := &domain.Trade{
			TradeID:     uuid.New().String(),
			AssetID:     order.AssetID,
			BuyOrderID:  buyOrder.OrderID,
			SellOrderID: sellOrder.OrderID,
			BuyerID:     buyOrder.AccountID,
			SellerID:    sellOrder.AccountID,
			Quantity:    f.qty,
			Price:       f.price,
			Fee:         f.qty.Mul(f.price).Mul(takerFeeRate),
			ExecutedAt:  executedAt,
		}

		order.Trades = append(order.Trades, trade)
		f.resting.Trades = append(f.resting.Trades, trade)
		m.tradeStore.Append(order.AssetID, trade)
		trades = append(trades, trade)
	}

	// Persist the incoming order's final remaining quantity and status
	// once, at loop end.
	filled := order.Quantity.Sub(remaining)
	if _, err := m.orderStore.ApplyFill(order.OrderID, filled); err != nil {
		return trades, fmt.Errorf("apply fill on incoming order %s: %w", order.OrderID, err)
	}

	if order.RemainingQuantity.IsPositive() {
		book.Insert(order)
	}

	return trades, nil
}

// abortSubmission unwinds a submission whose settlement could not
// commit: the order is cancelled and its full escrow released. The
// resting orders and every balance are untouched, so the caller sees a
// failed submission with no side effects beyond the cancelled record.
func (m *Matcher) abortSubmission(order *domain.Order) {
	if order.Side == domain.OrderSideSell {
		_ = m.ledger.UnlockAsset(order.AccountID, order.AssetID, order.Quantity)
	} else {
		_ = m.ledger.UnlockCash(order.AccountID, order.LimitPrice.Mul(order.Quantity))
	}
	_, _ = m.orderStore.ApplyCancel(order.OrderID)
}

// CancelOrder cancels an open or partially filled order, removes it from
// the book, and releases the escrow still held against it (remaining
// quantity for sells, remaining notional at the limit price for buys).
//
// Returns domain.ErrOrderNotFound if the order does not exist and
// domain.ErrOrderNotActive if it is already terminal.
func (m *Matcher) CancelOrder(orderID string) (*domain.Order, error) {
	order, err := m.orderStore.Get(orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Active() {
		return nil, domain.ErrOrderNotActive
	}

	book := m.books.GetOrCreate(order.AssetID)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Re-check under the asset lock (a matching pass may have finished
	// the order in the meantime).
	if !order.Status.Active() {
		return nil, domain.ErrOrderNotActive
	}

	book.Remove(order.OrderID)

	// Escrow to release is determined before the cancel freezes the
	// remaining quantity.
	escrow := order.EscrowRemaining()

	if _, err := m.orderStore.ApplyCancel(order.OrderID); err != nil {
		return nil, err
	}

	if order.Side == domain.OrderSideSell {
		if err := m.ledger.UnlockAsset(order.AccountID, order.AssetID, escrow); err != nil {
			return nil, err
		}
	} else {
		if err := m.ledger.UnlockCash(order.AccountID, escrow); err != nil {
			return nil, err
		}
	}

	return order, nil
}
