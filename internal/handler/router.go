package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokeniq/assetmarket/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, Content-Type validation, and bearer-token authentication on
// the account-scoped routes.
func NewRouter(
	accountSvc *service.AccountService,
	assetSvc *service.AssetService,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	jwtSecret []byte,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	accountH := NewAccountHandler(accountSvc, orderSvc)
	assetH := NewAssetHandler(assetSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes: registration and market data.
	r.Post("/accounts", accountH.Register)
	r.Get("/assets", assetH.List)
	r.Get("/assets/{asset_id}", assetH.Get)
	r.Get("/assets/{asset_id}/market", marketH.Snapshot)
	r.Get("/assets/{asset_id}/book", marketH.Book)
	r.Get("/assets/{asset_id}/trades", marketH.Trades)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(jwtSecret))

		r.Get("/accounts/{account_id}/balance", accountH.GetBalance)
		r.Get("/accounts/{account_id}/orders", accountH.ListOrders)

		r.Post("/assets", assetH.Create)
		r.Patch("/assets/{asset_id}/status", assetH.UpdateStatus)

		r.Post("/orders", orderH.Submit)
		r.Get("/orders/{order_id}", orderH.Get)
		r.Delete("/orders/{order_id}", orderH.Cancel)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT,
// and PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
