// Package market derives read-only market views from the order books
// and the trade history. It never mutates engine state; readers see a
// consistent snapshot that may be momentarily stale under concurrent
// matching, never a corrupted one.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/engine"
	"github.com/tokeniq/assetmarket/internal/store"
)

// Snapshot is the derived market state for a single asset. BestBid and
// BestAsk are zero when the corresponding side of the book is empty.
// LastPrice is the most recent in-window trade's execution price,
// falling back to the asset's reference price when no trade exists in
// the window.
type Snapshot struct {
	AssetID        string
	Symbol         string
	BestBid        decimal.Decimal
	BestAsk        decimal.Decimal
	LastPrice      decimal.Decimal
	VolumeWindow   decimal.Decimal // Σ quantity × price over in-window trades
	TradesInWindow int
	Window         time.Duration
	SnapshotAt     time.Time
}

// SnapshotBuilder builds market snapshots from the books and the trade
// store.
type SnapshotBuilder struct {
	books      *engine.BookManager
	tradeStore *store.TradeStore
	assets     *store.AssetStore
	window     time.Duration
}

// NewSnapshotBuilder creates a SnapshotBuilder with the given lookback
// window.
func NewSnapshotBuilder(
	books *engine.BookManager,
	tradeStore *store.TradeStore,
	assets *store.AssetStore,
	window time.Duration,
) *SnapshotBuilder {
	return &SnapshotBuilder{
		books:      books,
		tradeStore: tradeStore,
		assets:     assets,
		window:     window,
	}
}

// Snapshot derives the current market view for an asset. It returns
// domain.ErrAssetNotFound for unknown assets.
func (b *SnapshotBuilder) Snapshot(assetID string) (*Snapshot, error) {
	asset, err := b.assets.Get(assetID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		AssetID:    asset.AssetID,
		Symbol:     asset.Symbol,
		Window:     b.window,
		SnapshotAt: time.Now(),
	}

	book := b.books.GetOrCreate(assetID)
	book.RLock()
	if best, ok := book.BestBid(); ok {
		snap.BestBid = best.Price
	}
	if best, ok := book.BestAsk(); ok {
		snap.BestAsk = best.Price
	}
	book.RUnlock()

	// GetByAsset returns a copy, so the walk below is consistent even
	// while the matcher appends new trades.
	trades := b.tradeStore.GetByAsset(assetID)
	windowStart := snap.SnapshotAt.Add(-b.window)

	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(windowStart) {
			break
		}
		if snap.TradesInWindow == 0 {
			snap.LastPrice = t.Price
		}
		snap.VolumeWindow = snap.VolumeWindow.Add(t.Notional())
		snap.TradesInWindow++
	}

	if snap.TradesInWindow == 0 {
		snap.LastPrice = asset.ReferencePrice
	}

	return snap, nil
}
