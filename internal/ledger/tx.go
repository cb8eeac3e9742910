package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// Tx is a staged ledger transaction: an arena of pending balance deltas
// that commit together or not at all. The matching engine stages every
// settlement of a matching pass into one Tx, so a mid-loop failure rolls
// the whole pass back by simply discarding the Tx.
//
// Tx is not safe for concurrent use; each matching pass owns its own.
type Tx struct {
	l        *Ledger
	cash     map[string]*bucketDelta
	holdings map[holdingKey]*bucketDelta
}

type holdingKey struct {
	accountID string
	assetID   string
}

type bucketDelta struct {
	free   decimal.Decimal
	locked decimal.Decimal
}

// Begin starts an empty staged transaction.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		l:        l,
		cash:     make(map[string]*bucketDelta),
		holdings: make(map[holdingKey]*bucketDelta),
	}
}

func (tx *Tx) cashDelta(accountID string) *bucketDelta {
	d := tx.cash[accountID]
	if d == nil {
		d = &bucketDelta{}
		tx.cash[accountID] = d
	}
	return d
}

func (tx *Tx) holdingDelta(accountID, assetID string) *bucketDelta {
	k := holdingKey{accountID, assetID}
	d := tx.holdings[k]
	if d == nil {
		d = &bucketDelta{}
		tx.holdings[k] = d
	}
	return d
}

// SettleTransfer stages a token transfer from the sender's chosen bucket
// into the receiver's free holding.
func (tx *Tx) SettleTransfer(fromID, toID, assetID string, qty decimal.Decimal, source Source) {
	from := tx.holdingDelta(fromID, assetID)
	if source == SourceLocked {
		from.locked = from.locked.Sub(qty)
	} else {
		from.free = from.free.Sub(qty)
	}
	to := tx.holdingDelta(toID, assetID)
	to.free = to.free.Add(qty)
}

// SpendLockedCash stages a move of escrowed cash from the sender into
// the receiver's free cash.
func (tx *Tx) SpendLockedCash(fromID, toID string, amount decimal.Decimal) {
	from := tx.cashDelta(fromID)
	from.locked = from.locked.Sub(amount)
	to := tx.cashDelta(toID)
	to.free = to.free.Add(amount)
}

// UnlockCash stages a release of escrowed cash back to the account's
// free bucket (price-improvement refund).
func (tx *Tx) UnlockCash(accountID string, amount decimal.Decimal) {
	d := tx.cashDelta(accountID)
	d.locked = d.locked.Sub(amount)
	d.free = d.free.Add(amount)
}

// Commit applies all staged deltas atomically. It locks every touched
// account in sorted ID order, validates that no resulting bucket is
// negative, and only then mutates. On a validation failure nothing is
// applied and the bucket's error (insufficient funds or holding) is
// returned. A failed Commit leaves the Tx unusable.
func (tx *Tx) Commit() error {
	ids := tx.touchedAccounts()

	accounts := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		a, err := tx.l.accounts.Get(id)
		if err != nil {
			return err
		}
		accounts[id] = a
	}

	for _, id := range ids {
		accounts[id].Mu.Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			accounts[ids[i]].Mu.Unlock()
		}
	}()

	// Validate every resulting bucket before touching anything.
	for id, d := range tx.cash {
		a := accounts[id]
		if a.CashBalance.Add(d.free).IsNegative() || a.LockedCash.Add(d.locked).IsNegative() {
			return domain.ErrInsufficientFunds
		}
	}
	for k, d := range tx.holdings {
		a := accounts[k.accountID]
		h := a.Holdings[k.assetID]
		free, locked := decimal.Zero, decimal.Zero
		if h != nil {
			free, locked = h.Free, h.Locked
		}
		if free.Add(d.free).IsNegative() || locked.Add(d.locked).IsNegative() {
			return domain.ErrInsufficientHolding
		}
	}

	// Apply. Cannot fail past this point.
	for id, d := range tx.cash {
		a := accounts[id]
		a.CashBalance = a.CashBalance.Add(d.free)
		a.LockedCash = a.LockedCash.Add(d.locked)
	}
	for k, d := range tx.holdings {
		a := accounts[k.accountID]
		h := a.Holdings[k.assetID]
		if h == nil {
			h = &domain.Holding{}
			a.Holdings[k.assetID] = h
		}
		h.Free = h.Free.Add(d.free)
		h.Locked = h.Locked.Add(d.locked)
	}
	return nil
}

func (tx *Tx) touchedAccounts() []string {
	seen := make(map[string]bool)
	for id := range tx.cash {
		seen[id] = true
	}
	for k := range tx.holdings {
		seen[k.accountID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
