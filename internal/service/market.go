package service

import (
	"time"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/engine"
	"github.com/tokeniq/assetmarket/internal/market"
	"github.com/tokeniq/assetmarket/internal/store"
)

// BookView is the aggregated order book for display.
type BookView struct {
	AssetID    string
	Bids       []engine.PriceLevel
	Asks       []engine.PriceLevel
	SnapshotAt time.Time
}

// MarketService exposes the read-only market views: snapshot, depth,
// and recent trades.
type MarketService struct {
	snapshots  *market.SnapshotBuilder
	books      *engine.BookManager
	assets     *store.AssetStore
	tradeStore *store.TradeStore
}

// NewMarketService creates a new MarketService.
func NewMarketService(
	snapshots *market.SnapshotBuilder,
	books *engine.BookManager,
	assets *store.AssetStore,
	tradeStore *store.TradeStore,
) *MarketService {
	return &MarketService{
		snapshots:  snapshots,
		books:      books,
		assets:     assets,
		tradeStore: tradeStore,
	}
}

// Snapshot returns the derived market state for an asset.
func (s *MarketService) Snapshot(assetID string) (*market.Snapshot, error) {
	return s.snapshots.Snapshot(assetID)
}

// Book returns the top depth price levels of an asset's order book.
func (s *MarketService) Book(assetID string, depth int) (*BookView, error) {
	if _, err := s.assets.Get(assetID); err != nil {
		return nil, err
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{Message: "depth must be between 1 and 50"}
	}

	book := s.books.GetOrCreate(assetID)
	book.RLock()
	defer book.RUnlock()

	return &BookView{
		AssetID:    assetID,
		Bids:       book.TopBids(depth),
		Asks:       book.TopAsks(depth),
		SnapshotAt: time.Now(),
	}, nil
}

// Trades returns up to limit recent trades for an asset, newest first.
func (s *MarketService) Trades(assetID string, limit int) ([]*domain.Trade, error) {
	if _, err := s.assets.Get(assetID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 200 {
		return nil, &domain.ValidationError{Message: "limit must be between 1 and 200"}
	}
	return s.tradeStore.Recent(assetID, limit), nil
}
