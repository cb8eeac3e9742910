package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/engine"
	"github.com/tokeniq/assetmarket/internal/store"
)

// ValidOrderStatuses lists all valid order status values for filtering.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:            true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCancelled:       true,
}

// SubmitOrderRequest represents the input for order submission. The
// account comes from the authenticated principal, never the body.
type SubmitOrderRequest struct {
	AssetID    string
	Side       domain.OrderSide
	LimitPrice decimal.Decimal
	Quantity   decimal.Decimal
}

// OrderService handles order submission, retrieval, cancellation, and
// listing on top of the matching engine.
type OrderService struct {
	matcher    *engine.Matcher
	accounts   *store.AccountStore
	orderStore *store.OrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(matcher *engine.Matcher, accounts *store.AccountStore, orderStore *store.OrderStore) *OrderService {
	return &OrderService{
		matcher:    matcher,
		accounts:   accounts,
		orderStore: orderStore,
	}
}

// Submit validates the request and runs the matching engine. The
// returned order carries its final status and any trades executed.
func (s *OrderService) Submit(p domain.Principal, req SubmitOrderRequest) (*domain.Order, error) {
	if req.AssetID == "" {
		return nil, &domain.ValidationError{Message: "asset_id is required"}
	}
	if !req.Side.Valid() {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !req.LimitPrice.IsPositive() {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if !req.Quantity.IsPositive() {
		return nil, &domain.ValidationError{Message: "quantity must be greater than 0"}
	}
	if !s.accounts.Exists(p.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	order := &domain.Order{
		AccountID:  p.AccountID,
		AssetID:    req.AssetID,
		Side:       req.Side,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
	}

	if _, err := s.matcher.SubmitOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Get retrieves an order by ID. Only the submitting account or an admin
// may read it.
func (s *OrderService) Get(p domain.Principal, orderID string) (*domain.Order, error) {
	order, err := s.orderStore.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != p.AccountID && !p.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// Cancel cancels an active order and releases its escrow. Only the
// submitting account or an admin may cancel.
func (s *OrderService) Cancel(p domain.Principal, orderID string) (*domain.Order, error) {
	order, err := s.orderStore.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != p.AccountID && !p.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return s.matcher.CancelOrder(orderID)
}

// List returns a paginated list of an account's orders with optional
// status filtering. Only the account itself or an admin may list.
func (s *OrderService) List(p domain.Principal, accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if accountID != p.AccountID && !p.HasRole(domain.RoleAdmin) {
		return nil, 0, domain.ErrForbidden
	}
	if !s.accounts.Exists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("invalid status filter %q: must be one of open, partially_filled, filled, cancelled", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	orders, total := s.orderStore.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
