package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents an account's position in a single asset, split into
// a free bucket and a bucket locked by open sell orders.
type Holding struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns the holding's combined free and locked quantity.
func (h *Holding) Total() decimal.Decimal {
	return h.Free.Add(h.Locked)
}

// Account represents a registered marketplace participant. CashBalance is
// freely spendable cash; LockedCash is cash escrowed by open buy orders.
// Holdings are created lazily on first credit and never deleted.
type Account struct {
	AccountID   string
	Email       string
	Roles       []string
	CashBalance decimal.Decimal
	LockedCash  decimal.Decimal
	Holdings    map[string]*Holding // asset_id → holding
	CreatedAt   time.Time
	Mu          sync.Mutex // per-account lock for balance mutations
}

// HasRole returns true if the account carries the given role.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Holding returns the account's holding for an asset, or nil if the
// account has never held it. Callers must hold Mu when the account is
// shared.
func (a *Account) Holding(assetID string) *Holding {
	return a.Holdings[assetID]
}

// Principal is the authenticated identity attached to a request by the
// identity provider. The engine trusts it and performs no credential
// checks of its own.
type Principal struct {
	AccountID string
	Roles     []string
}

// HasRole returns true if the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Well-known roles. Role enforcement happens in the service layer,
// before the matching engine is invoked.
const (
	RoleTrader = "trader"
	RoleIssuer = "issuer"
	RoleAdmin  = "admin"
)
