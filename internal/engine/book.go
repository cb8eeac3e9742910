package engine

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Price   decimal.Decimal
	Seq     uint64
	OrderID string
	Order   *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         decimal.Decimal
	TotalQuantity decimal.Decimal
	OrderCount    int
}

// bidLess defines ordering for the buy side: price descending, then
// submission sequence ascending. Min() returns the best bid (highest
// price, earliest submission). Ties at equal price are broken only by
// submission order, never by order ID.
func bidLess(a, b OrderBookEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.Seq < b.Seq
}

// askLess defines ordering for the sell side: price ascending, then
// submission sequence ascending. Min() returns the best ask (lowest
// price, earliest submission).
func askLess(a, b OrderBookEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.Seq < b.Seq
}

// OrderBook maintains the resting buy and sell orders for a single asset
// using B-trees with a secondary index for removal by order ID. Its
// mutex is the per-asset serialization point: the matcher holds the
// write lock for an entire escrow-and-match pass, so two submissions for
// the same asset never interleave.
type OrderBook struct {
	assetID string
	mu      sync.RWMutex
	bids    *btree.BTreeG[OrderBookEntry]
	asks    *btree.BTreeG[OrderBookEntry]
	index   map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given asset.
func NewOrderBook(assetID string) *OrderBook {
	const degree = 32
	return &OrderBook{
		assetID: assetID,
		bids:    btree.NewG[OrderBookEntry](degree, bidLess),
		asks:    btree.NewG[OrderBookEntry](degree, askLess),
		index:   make(map[string]OrderBookEntry),
	}
}

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// Insert rests an order on the appropriate side of the book.
func (ob *OrderBook) Insert(o *domain.Order) {
	entry := OrderBookEntry{
		Price:   o.LimitPrice,
		Seq:     o.Seq,
		OrderID: o.OrderID,
		Order:   o,
	}
	if o.Side == domain.OrderSideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. It tries both sides since the caller may not
// know which side the order is on.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	// Try both sides — Delete is a no-op if the entry isn't found.
	ob.bids.Delete(entry)
	ob.asks.Delete(entry)
}

// BestBid returns the highest-priority bid (highest price, earliest
// submission).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest
// submission).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// Matchable returns the resting orders of the opposite side whose price
// is compatible with an incoming order at limitPrice, in strict
// price-time priority: best price first (cheapest sell for an incoming
// buy, highest buy for an incoming sell), then earliest submission at
// equal price. The caller must hold the book lock.
func (ob *OrderBook) Matchable(side domain.OrderSide, limitPrice decimal.Decimal) []*domain.Order {
	var result []*domain.Order
	if side == domain.OrderSideBuy {
		// Buys match sells priced at or below the limit.
		ob.asks.Ascend(func(entry OrderBookEntry) bool {
			if entry.Price.GreaterThan(limitPrice) {
				return false
			}
			result = append(result, entry.Order)
			return true
		})
	} else {
		// Sells match buys priced at or above the limit.
		ob.bids.Ascend(func(entry OrderBookEntry) bool {
			if entry.Price.LessThan(limitPrice) {
				return false
			}
			result = append(result, entry.Order)
			return true
		})
	}
	return result
}

// TopBids returns up to n aggregated price levels from the buy side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the sell side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price.Equal(entry.Price) {
			levels[len(levels)-1].TotalQuantity = levels[len(levels)-1].TotalQuantity.Add(entry.Order.RemainingQuantity)
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BidCount returns the number of individual buy orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual sell orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BookManager is a thread-safe map of asset_id → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given asset, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(assetID string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[assetID]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[assetID]; ok {
		return book
	}
	book = NewOrderBook(assetID)
	bm.books[assetID] = book
	return book
}
