package store

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// AssetFilter narrows asset listings. Nil fields are ignored.
type AssetFilter struct {
	AssetType string
	Status    *domain.AssetStatus
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
}

// AssetStore is a thread-safe in-memory store for assets, keyed by
// asset_id, with insertion order preserved for listing.
type AssetStore struct {
	mu      sync.RWMutex
	assets  map[string]*domain.Asset
	ordered []*domain.Asset // creation order (oldest first)
}

// NewAssetStore creates an empty AssetStore.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets: make(map[string]*domain.Asset),
	}
}

// Create adds an asset to the store.
func (s *AssetStore) Create(a *domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[a.AssetID] = a
	s.ordered = append(s.ordered, a)
}

// Get retrieves an asset by ID. It returns
// domain.ErrAssetNotFound if the asset does not exist.
func (s *AssetStore) Get(id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return a, nil
}

// SetStatus updates an asset's status. Transition validity is the
// caller's responsibility; the store only persists the new value.
func (s *AssetStore) SetStatus(id string, status domain.AssetStatus) (*domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	a.Status = status
	return a, nil
}

// List returns assets matching the filter in reverse creation order
// (newest first), paginated 1-based. It returns the page of assets and
// the total count of matches before pagination.
func (s *AssetStore) List(filter AssetFilter, page, limit int) ([]*domain.Asset, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*domain.Asset, 0)
	for i := len(s.ordered) - 1; i >= 0; i-- {
		a := s.ordered[i]
		if filter.AssetType != "" && a.AssetType != filter.AssetType {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.MinPrice != nil && a.ReferencePrice.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && a.ReferencePrice.GreaterThan(*filter.MaxPrice) {
			continue
		}
		filtered = append(filtered, a)
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Asset{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
