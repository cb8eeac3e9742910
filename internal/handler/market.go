package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/engine"
	"github.com/tokeniq/assetmarket/internal/service"
)

// MarketHandler handles HTTP requests for the read-only market views.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// snapshotResponse is the JSON response for GET /assets/{id}/market.
type snapshotResponse struct {
	AssetID        string          `json:"asset_id"`
	Symbol         string          `json:"symbol"`
	BestBid        decimal.Decimal `json:"best_bid"`
	BestAsk        decimal.Decimal `json:"best_ask"`
	LastPrice      decimal.Decimal `json:"last_price"`
	VolumeWindow   decimal.Decimal `json:"volume_window"`
	TradesInWindow int             `json:"trades_in_window"`
	Window         string          `json:"window"`
	SnapshotAt     string          `json:"snapshot_at"`
}

// bookLevelResponse is one aggregated price level in the book response.
type bookLevelResponse struct {
	Price         decimal.Decimal `json:"price"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	OrderCount    int             `json:"order_count"`
}

// bookResponse is the JSON response for GET /assets/{id}/book.
type bookResponse struct {
	AssetID    string              `json:"asset_id"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	SnapshotAt string              `json:"snapshot_at"`
}

// Snapshot handles GET /assets/{asset_id}/market.
func (h *MarketHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.marketSvc.Snapshot(chi.URLParam(r, "asset_id"))
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, snapshotResponse{
		AssetID:        snap.AssetID,
		Symbol:         snap.Symbol,
		BestBid:        snap.BestBid,
		BestAsk:        snap.BestAsk,
		LastPrice:      snap.LastPrice,
		VolumeWindow:   snap.VolumeWindow,
		TradesInWindow: snap.TradesInWindow,
		Window:         snap.Window.String(),
		SnapshotAt:     formatTime(snap.SnapshotAt),
	})
}

// Book handles GET /assets/{asset_id}/book.
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", 10)

	view, err := h.marketSvc.Book(chi.URLParam(r, "asset_id"), depth)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		AssetID:    view.AssetID,
		Bids:       buildLevelResponses(view.Bids),
		Asks:       buildLevelResponses(view.Asks),
		SnapshotAt: formatTime(view.SnapshotAt),
	})
}

// Trades handles GET /assets/{asset_id}/trades.
func (h *MarketHandler) Trades(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	trades, err := h.marketSvc.Trades(chi.URLParam(r, "asset_id"), limit)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	items := make([]tradeResponse, len(trades))
	for i, t := range trades {
		items[i] = buildTradeResponse(t)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trades": items})
}

func buildLevelResponses(levels []engine.PriceLevel) []bookLevelResponse {
	result := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		result[i] = bookLevelResponse{
			Price:         l.Price,
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return result
}
