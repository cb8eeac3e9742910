// Package ledger owns cash balances and per-asset token balances. Every
// operation is all-or-nothing: a failed check leaves state untouched,
// and no balance ever goes negative. Multi-fill settlement uses a staged
// transaction (see Tx) so an entire matching pass commits as one unit.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/store"
)

// Source selects which bucket a settlement transfer draws from.
type Source string

const (
	SourceLocked Source = "locked"
	SourceFree   Source = "free"
)

// ErrInvalidAmount is returned when an operation is invoked with a
// negative amount. It indicates a caller bug, not a balance condition.
var ErrInvalidAmount = errors.New("invalid_amount")

// Ledger performs atomic balance mutations against the account store.
// Single-account operations hold the account's mutex; cross-account
// operations lock both accounts in sorted ID order.
type Ledger struct {
	accounts *store.AccountStore
}

// New creates a Ledger backed by the given account store.
func New(accounts *store.AccountStore) *Ledger {
	return &Ledger{accounts: accounts}
}

// DebitCash removes amount from the account's free cash. It returns
// domain.ErrInsufficientFunds if the balance would go negative.
func (l *Ledger) DebitCash(accountID string, amount decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		if a.CashBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		a.CashBalance = a.CashBalance.Sub(amount)
		return nil
	}, amount)
}

// CreditCash adds amount to the account's free cash.
func (l *Ledger) CreditCash(accountID string, amount decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		a.CashBalance = a.CashBalance.Add(amount)
		return nil
	}, amount)
}

// LockCash moves amount from free cash into the locked bucket (buy-order
// escrow). It returns domain.ErrInsufficientFunds if free cash is short.
func (l *Ledger) LockCash(accountID string, amount decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		if a.CashBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		a.CashBalance = a.CashBalance.Sub(amount)
		a.LockedCash = a.LockedCash.Add(amount)
		return nil
	}, amount)
}

// UnlockCash releases amount of escrowed cash back to the free bucket.
// A short locked bucket means an escrow accounting bug; the operation
// fails with domain.ErrInsufficientFunds and changes nothing.
func (l *Ledger) UnlockCash(accountID string, amount decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		if a.LockedCash.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		a.LockedCash = a.LockedCash.Sub(amount)
		a.CashBalance = a.CashBalance.Add(amount)
		return nil
	}, amount)
}

// LockAsset moves qty of an asset from the account's free holding into
// the locked bucket (sell-order escrow). It returns
// domain.ErrInsufficientHolding if the free balance is short.
func (l *Ledger) LockAsset(accountID, assetID string, qty decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		h := a.Holdings[assetID]
		if h == nil || h.Free.LessThan(qty) {
			return domain.ErrInsufficientHolding
		}
		h.Free = h.Free.Sub(qty)
		h.Locked = h.Locked.Add(qty)
		return nil
	}, qty)
}

// UnlockAsset releases qty of an escrowed asset back to the free bucket.
func (l *Ledger) UnlockAsset(accountID, assetID string, qty decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		h := a.Holdings[assetID]
		if h == nil || h.Locked.LessThan(qty) {
			return domain.ErrInsufficientHolding
		}
		h.Locked = h.Locked.Sub(qty)
		h.Free = h.Free.Add(qty)
		return nil
	}, qty)
}

// CreditAsset adds qty to the account's free holding, creating the
// holding on first credit. Used when an asset is issued.
func (l *Ledger) CreditAsset(accountID, assetID string, qty decimal.Decimal) error {
	return l.mutate(accountID, func(a *domain.Account) error {
		h := a.Holdings[assetID]
		if h == nil {
			h = &domain.Holding{}
			a.Holdings[assetID] = h
		}
		h.Free = h.Free.Add(qty)
		return nil
	}, qty)
}

// SettleTransfer moves qty of an asset out of the sender's chosen bucket
// and into the receiver's free holding, creating the receiver's holding
// if needed. It returns domain.ErrInsufficientHolding if the source
// bucket lacks qty.
func (l *Ledger) SettleTransfer(fromID, toID, assetID string, qty decimal.Decimal, source Source) error {
	return l.mutatePair(fromID, toID, func(from, to *domain.Account) error {
		h := from.Holdings[assetID]
		if h == nil {
			return domain.ErrInsufficientHolding
		}
		switch source {
		case SourceLocked:
			if h.Locked.LessThan(qty) {
				return domain.ErrInsufficientHolding
			}
			h.Locked = h.Locked.Sub(qty)
		case SourceFree:
			if h.Free.LessThan(qty) {
				return domain.ErrInsufficientHolding
			}
			h.Free = h.Free.Sub(qty)
		default:
			return ErrInvalidAmount
		}

		th := to.Holdings[assetID]
		if th == nil {
			th = &domain.Holding{}
			to.Holdings[assetID] = th
		}
		th.Free = th.Free.Add(qty)
		return nil
	}, qty)
}

// SpendLockedCash moves amount of the sender's escrowed cash into the
// receiver's free cash (fill settlement). It returns
// domain.ErrInsufficientFunds if the locked bucket lacks amount.
func (l *Ledger) SpendLockedCash(fromID, toID string, amount decimal.Decimal) error {
	return l.mutatePair(fromID, toID, func(from, to *domain.Account) error {
		if from.LockedCash.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		from.LockedCash = from.LockedCash.Sub(amount)
		to.CashBalance = to.CashBalance.Add(amount)
		return nil
	}, amount)
}

// mutate runs fn on the account under its mutex.
func (l *Ledger) mutate(accountID string, fn func(*domain.Account) error, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	a, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}
	a.Mu.Lock()
	defer a.Mu.Unlock()
	return fn(a)
}

// mutatePair runs fn with both accounts locked, acquiring the mutexes in
// sorted ID order to avoid deadlock. A self-transfer locks once.
func (l *Ledger) mutatePair(fromID, toID string, fn func(from, to *domain.Account) error, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	from, err := l.accounts.Get(fromID)
	if err != nil {
		return err
	}
	to, err := l.accounts.Get(toID)
	if err != nil {
		return err
	}

	if fromID == toID {
		from.Mu.Lock()
		defer from.Mu.Unlock()
		return fn(from, from)
	}

	first, second := from, to
	if toID < fromID {
		first, second = to, from
	}
	first.Mu.Lock()
	defer first.Mu.Unlock()
	second.Mu.Lock()
	defer second.Mu.Unlock()
	return fn(from, to)
}
