package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/ledger"
	"github.com/tokeniq/assetmarket/internal/store"
)

var assetSymbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)

// validAssetStatuses lists the status values accepted in transitions
// and filters.
var validAssetStatuses = map[domain.AssetStatus]bool{
	domain.AssetStatusPending: true,
	domain.AssetStatusLive:    true,
	domain.AssetStatusPaused:  true,
	domain.AssetStatusRetired: true,
}

// CreateAssetRequest represents the input for asset issuance.
type CreateAssetRequest struct {
	Symbol         string
	Name           string
	AssetType      string
	TotalSupply    decimal.Decimal
	ReferencePrice decimal.Decimal
}

// ListAssetsRequest narrows and paginates asset listings.
type ListAssetsRequest struct {
	AssetType string
	Status    *domain.AssetStatus
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Page      int
	Limit     int
}

// AssetService handles asset issuance, approval, and listing.
type AssetService struct {
	assets   *store.AssetStore
	accounts *store.AccountStore
	ledger   *ledger.Ledger
}

// NewAssetService creates a new AssetService.
func NewAssetService(assets *store.AssetStore, accounts *store.AccountStore, led *ledger.Ledger) *AssetService {
	return &AssetService{assets: assets, accounts: accounts, ledger: led}
}

// Create issues a new asset in pending status and credits the issuer's
// free holding with the total supply. Requires the issuer role.
func (s *AssetService) Create(p domain.Principal, req CreateAssetRequest) (*domain.Asset, error) {
	if !p.HasRole(domain.RoleIssuer) {
		return nil, domain.ErrForbidden
	}
	if !assetSymbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{Message: "symbol must match ^[A-Z]{1,10}$"}
	}
	if req.Name == "" {
		return nil, &domain.ValidationError{Message: "name is required"}
	}
	if !req.TotalSupply.IsPositive() {
		return nil, &domain.ValidationError{Message: "total_supply must be greater than 0"}
	}
	if !req.ReferencePrice.IsPositive() {
		return nil, &domain.ValidationError{Message: "reference_price must be greater than 0"}
	}
	if !s.accounts.Exists(p.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	asset := &domain.Asset{
		AssetID:        uuid.New().String(),
		Symbol:         req.Symbol,
		Name:           req.Name,
		AssetType:      req.AssetType,
		IssuerID:       p.AccountID,
		TotalSupply:    req.TotalSupply,
		ReferencePrice: req.ReferencePrice,
		Status:         domain.AssetStatusPending,
		CreatedAt:      time.Now(),
	}

	s.assets.Create(asset)

	// The full supply enters circulation on the issuer's account; every
	// later movement happens through trades.
	if err := s.ledger.CreditAsset(p.AccountID, asset.AssetID, req.TotalSupply); err != nil {
		return nil, err
	}

	return asset, nil
}

// Get retrieves an asset by ID.
func (s *AssetService) Get(assetID string) (*domain.Asset, error) {
	return s.assets.Get(assetID)
}

// List returns assets matching the filter, newest first, paginated.
func (s *AssetService) List(req ListAssetsRequest) ([]*domain.Asset, int, error) {
	if req.Status != nil && !validAssetStatuses[*req.Status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("invalid status filter %q: must be one of pending, live, paused, retired", *req.Status),
		}
	}
	if req.Page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if req.Limit < 1 || req.Limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	assets, total := s.assets.List(store.AssetFilter{
		AssetType: req.AssetType,
		Status:    req.Status,
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
	}, req.Page, req.Limit)
	return assets, total, nil
}

// UpdateStatus moves an asset through its lifecycle (approval, pause,
// retirement). Requires the admin role and a valid transition.
func (s *AssetService) UpdateStatus(p domain.Principal, assetID string, target domain.AssetStatus) (*domain.Asset, error) {
	if !p.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	if !validAssetStatuses[target] {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("invalid status %q: must be one of pending, live, paused, retired", target),
		}
	}

	asset, err := s.assets.Get(assetID)
	if err != nil {
		return nil, err
	}
	if !asset.CanTransition(target) {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("cannot transition asset from %s to %s", asset.Status, target),
		}
	}

	return s.assets.SetStatus(assetID, target)
}
