package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetStatus represents the lifecycle state of a tokenized asset.
// Only live assets can be traded.
type AssetStatus string

const (
	AssetStatusPending AssetStatus = "pending"
	AssetStatusLive    AssetStatus = "live"
	AssetStatusPaused  AssetStatus = "paused"
	AssetStatusRetired AssetStatus = "retired"
)

// Asset represents a tokenized asset listed on the marketplace. New
// assets are created in pending status by an issuer and become tradable
// once an admin moves them to live. ReferencePrice is the issue price,
// used as the market snapshot fallback when no recent trades exist.
type Asset struct {
	AssetID        string
	Symbol         string
	Name           string
	AssetType      string
	IssuerID       string // account_id of the issuing account
	TotalSupply    decimal.Decimal
	ReferencePrice decimal.Decimal
	Status         AssetStatus
	CreatedAt      time.Time
}

// Tradable returns true if orders may be submitted for the asset.
func (a *Asset) Tradable() bool {
	return a.Status == AssetStatusLive
}

// validAssetTransitions encodes the allowed status transitions:
// pending → live|retired, live → paused|retired, paused → live|retired.
var validAssetTransitions = map[AssetStatus][]AssetStatus{
	AssetStatusPending: {AssetStatusLive, AssetStatusRetired},
	AssetStatusLive:    {AssetStatusPaused, AssetStatusRetired},
	AssetStatusPaused:  {AssetStatusLive, AssetStatusRetired},
}

// CanTransition returns true if the asset may move from its current
// status to the target status. Retired is terminal.
func (a *Asset) CanTransition(target AssetStatus) bool {
	for _, s := range validAssetTransitions[a.Status] {
		if s == target {
			return true
		}
	}
	return false
}
