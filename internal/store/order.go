package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a primary
// index by order_id and secondary indexes by account_id and asset_id.
// It also assigns the monotone submission sequence used as the
// price-time priority tiebreak.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	accountOrders map[string][]*domain.Order // account_id → orders (append-only)
	assetOrders   map[string][]*domain.Order // asset_id → orders (append-only)
	seq           uint64
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[string]*domain.Order),
		accountOrders: make(map[string][]*domain.Order),
		assetOrders:   make(map[string][]*domain.Order),
	}
}

// Create persists a new order, assigns its submission sequence, and
// appends it to the secondary indexes. The caller sets OrderID and
// CreatedAt; remaining quantity must equal the original quantity.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	o.Seq = s.seq

	s.orders[o.OrderID] = o
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
	s.assetOrders[o.AssetID] = append(s.assetOrders[o.AssetID], o)
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ApplyFill decrements an order's remaining quantity by qty and moves
// its status to filled (remaining zero) or partially_filled. It returns
// domain.ErrOrderNotActive when the order is already terminal, guarding
// against double application of a fill, and rejects fills larger than
// the remaining quantity.
func (s *OrderStore) ApplyFill(orderID string, qty decimal.Decimal) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !o.Status.Active() {
		return nil, domain.ErrOrderNotActive
	}
	if qty.GreaterThan(o.RemainingQuantity) {
		return nil, fmt.Errorf("fill %s exceeds remaining %s: %w",
			qty, o.RemainingQuantity, domain.ErrOrderNotActive)
	}

	o.RemainingQuantity = o.RemainingQuantity.Sub(qty)
	if o.RemainingQuantity.IsZero() {
		o.Status = domain.OrderStatusFilled
	} else {
		o.Status = domain.OrderStatusPartiallyFilled
	}
	return o, nil
}

// ApplyCancel flags an active order as cancelled, freezing its remaining
// quantity. It returns domain.ErrOrderNotActive for terminal orders.
func (s *OrderStore) ApplyCancel(orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !o.Status.Active() {
		return nil, domain.ErrOrderNotActive
	}

	now := time.Now()
	o.Status = domain.OrderStatusCancelled
	o.CancelledAt = &now
	return o, nil
}

// ListByAccount returns orders for an account in reverse chronological
// order (newest first). If status is non-nil, only orders matching that
// status are included. Pagination is 1-based. Returns the page and the
// total count of matches before pagination.
func (s *OrderStore) ListByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginateOrders(s.accountOrders[accountID], status, page, limit)
}

// ListByAsset returns orders for an asset, newest first, with the same
// filtering and pagination rules as ListByAccount.
func (s *OrderStore) ListByAsset(assetID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginateOrders(s.assetOrders[assetID], status, page, limit)
}

func paginateOrders(all []*domain.Order, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
