package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, orderSvc: orderSvc}
}

// registerAccountRequest is the JSON request body for POST /accounts.
type registerAccountRequest struct {
	Email       string          `json:"email"`
	Roles       []string        `json:"roles"`
	InitialCash decimal.Decimal `json:"initial_cash"`
}

// accountResponse is the JSON response for account creation.
type accountResponse struct {
	AccountID   string          `json:"account_id"`
	Email       string          `json:"email"`
	Roles       []string        `json:"roles"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	CreatedAt   string          `json:"created_at"`
}

// holdingResponse is one asset position in the balance response.
type holdingResponse struct {
	AssetID string          `json:"asset_id"`
	Free    decimal.Decimal `json:"free_balance"`
	Locked  decimal.Decimal `json:"locked_balance"`
}

// balanceResponse is the JSON response for GET /accounts/{id}/balance.
type balanceResponse struct {
	AccountID   string            `json:"account_id"`
	CashBalance decimal.Decimal   `json:"cash_balance"`
	LockedCash  decimal.Decimal   `json:"locked_cash"`
	Holdings    []holdingResponse `json:"holdings"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := h.accountSvc.Register(service.RegisterAccountRequest{
		Email:       req.Email,
		Roles:       req.Roles,
		InitialCash: req.InitialCash,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID:   account.AccountID,
		Email:       account.Email,
		Roles:       account.Roles,
		CashBalance: account.CashBalance,
		CreatedAt:   formatTime(account.CreatedAt),
	})
}

// GetBalance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	view, err := h.accountSvc.GetBalance(principalFrom(r), accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	holdings := make([]holdingResponse, 0, len(view.Holdings))
	for assetID, holding := range view.Holdings {
		holdings = append(holdings, holdingResponse{
			AssetID: assetID,
			Free:    holding.Free,
			Locked:  holding.Locked,
		})
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountID:   view.AccountID,
		CashBalance: view.CashBalance,
		LockedCash:  view.LockedCash,
		Holdings:    holdings,
	})
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	orders, total, err := h.orderSvc.List(principalFrom(r), accountID, status, page, limit)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	items := make([]orderResponse, len(orders))
	for i, o := range orders {
		items[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"orders": items,
		"pagination": paginationResponse{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: pageCount(total, limit),
		},
	})
}

// paginationResponse mirrors the pagination block on list endpoints.
type paginationResponse struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func pageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// queryInt reads an integer query parameter, falling back to def for
// missing or malformed values.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
