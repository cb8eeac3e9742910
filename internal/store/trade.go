package store

import (
	"sync"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades,
// keyed by asset_id. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // asset_id → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the asset's chronological list.
func (s *TradeStore) Append(assetID string, t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[assetID] = append(s.trades[assetID], t)
}

// GetByAsset returns all trades for an asset in chronological order.
// Returns an empty slice if no trades exist for the asset.
func (s *TradeStore) GetByAsset(assetID string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[assetID]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// Recent returns up to limit trades for an asset, newest first.
func (s *TradeStore) Recent(assetID string, limit int) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[assetID]
	if limit > len(all) {
		limit = len(all)
	}
	result := make([]*domain.Trade, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		result = append(result, all[i])
	}
	return result
}
