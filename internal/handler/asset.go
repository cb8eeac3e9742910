package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/service"
)

// AssetHandler handles HTTP requests for asset endpoints.
type AssetHandler struct {
	assetSvc *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc *service.AssetService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc}
}

// createAssetRequest is the JSON request body for POST /assets.
type createAssetRequest struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	AssetType      string          `json:"asset_type"`
	TotalSupply    decimal.Decimal `json:"total_supply"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

// updateAssetStatusRequest is the body for PATCH /assets/{id}/status.
type updateAssetStatusRequest struct {
	Status string `json:"status"`
}

// assetResponse is the JSON representation of an asset.
type assetResponse struct {
	AssetID        string          `json:"asset_id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	AssetType      string          `json:"asset_type"`
	IssuerID       string          `json:"issuer_id"`
	TotalSupply    decimal.Decimal `json:"total_supply"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
}

// Create handles POST /assets.
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	asset, err := h.assetSvc.Create(principalFrom(r), service.CreateAssetRequest{
		Symbol:         req.Symbol,
		Name:           req.Name,
		AssetType:      req.AssetType,
		TotalSupply:    req.TotalSupply,
		ReferencePrice: req.ReferencePrice,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAssetResponse(asset))
}

// Get handles GET /assets/{asset_id}.
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := h.assetSvc.Get(chi.URLParam(r, "asset_id"))
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAssetResponse(asset))
}

// List handles GET /assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.ListAssetsRequest{
		AssetType: q.Get("asset_type"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 10),
	}
	if s := q.Get("status"); s != "" {
		st := domain.AssetStatus(s)
		req.Status = &st
	} else {
		// Listings default to live assets, like the storefront view.
		live := domain.AssetStatusLive
		req.Status = &live
	}
	if v := q.Get("min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "min_price must be a decimal number")
			return
		}
		req.MinPrice = &d
	}
	if v := q.Get("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "max_price must be a decimal number")
			return
		}
		req.MaxPrice = &d
	}

	assets, total, err := h.assetSvc.List(req)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	items := make([]assetResponse, len(assets))
	for i, a := range assets {
		items[i] = buildAssetResponse(a)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"assets": items,
		"pagination": paginationResponse{
			Total: total,
			Page:  req.Page,
			Limit: req.Limit,
			Pages: pageCount(total, req.Limit),
		},
	})
}

// UpdateStatus handles PATCH /assets/{asset_id}/status.
func (h *AssetHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateAssetStatusRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	asset, err := h.assetSvc.UpdateStatus(principalFrom(r), chi.URLParam(r, "asset_id"), domain.AssetStatus(req.Status))
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAssetResponse(asset))
}

// buildAssetResponse converts a domain asset to its JSON representation.
func buildAssetResponse(a *domain.Asset) assetResponse {
	return assetResponse{
		AssetID:        a.AssetID,
		Symbol:         a.Symbol,
		Name:           a.Name,
		AssetType:      a.AssetType,
		IssuerID:       a.IssuerID,
		TotalSupply:    a.TotalSupply,
		ReferencePrice: a.ReferencePrice,
		Status:         string(a.Status),
		CreatedAt:      formatTime(a.CreatedAt),
	}
}
