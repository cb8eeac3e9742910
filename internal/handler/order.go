package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	AssetID  string          `json:"asset_id"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// orderResponse is the JSON representation of an order. Nullable fields
// use pointers.
type orderResponse struct {
	OrderID           string           `json:"order_id"`
	AccountID         string           `json:"account_id"`
	AssetID           string           `json:"asset_id"`
	Side              string           `json:"side"`
	Price             decimal.Decimal  `json:"price"`
	Quantity          decimal.Decimal  `json:"quantity"`
	FilledQuantity    decimal.Decimal  `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	Status            string           `json:"status"`
	CreatedAt         string           `json:"created_at"`
	CancelledAt       *string          `json:"cancelled_at"`
	AveragePrice      *decimal.Decimal `json:"average_price"`
	Trades            []tradeResponse  `json:"trades"`
}

// tradeResponse is a single trade in order and market responses.
type tradeResponse struct {
	TradeID    string          `json:"trade_id"`
	AssetID    string          `json:"asset_id"`
	BuyerID    string          `json:"buyer_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt string          `json:"executed_at"`
}

// Submit handles POST /orders.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.Submit(principalFrom(r), service.SubmitOrderRequest{
		AssetID:    req.AssetID,
		Side:       domain.OrderSide(req.Side),
		LimitPrice: req.Price,
		Quantity:   req.Quantity,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Get(principalFrom(r), orderID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Cancel(principalFrom(r), orderID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// buildOrderResponse converts a domain order to its JSON representation.
func buildOrderResponse(o *domain.Order) orderResponse {
	trades := make([]tradeResponse, len(o.Trades))
	for i, t := range o.Trades {
		trades[i] = buildTradeResponse(t)
	}

	var avgPrice *decimal.Decimal
	if avg, ok := o.AveragePrice(); ok {
		avgPrice = &avg
	}

	resp := orderResponse{
		OrderID:           o.OrderID,
		AccountID:         o.AccountID,
		AssetID:           o.AssetID,
		Side:              string(o.Side),
		Price:             o.LimitPrice,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity(),
		RemainingQuantity: o.RemainingQuantity,
		Status:            string(o.Status),
		CreatedAt:         formatTime(o.CreatedAt),
		AveragePrice:      avgPrice,
		Trades:            trades,
	}
	if o.CancelledAt != nil {
		s := formatTime(*o.CancelledAt)
		resp.CancelledAt = &s
	}
	return resp
}

// buildTradeResponse converts a domain trade to its JSON representation.
func buildTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		TradeID:    t.TradeID,
		AssetID:    t.AssetID,
		BuyerID:    t.BuyerID,
		SellerID:   t.SellerID,
		Quantity:   t.Quantity,
		Price:      t.Price,
		Fee:        t.Fee,
		ExecutedAt: formatTime(t.ExecutedAt),
	}
}

// formatTime renders timestamps the way every response does.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
