package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/store"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validRoles lists the roles an account may be registered with.
var validRoles = map[string]bool{
	domain.RoleTrader: true,
	domain.RoleIssuer: true,
	domain.RoleAdmin:  true,
}

// RegisterAccountRequest represents the input for account registration.
type RegisterAccountRequest struct {
	Email       string
	Roles       []string
	InitialCash decimal.Decimal
}

// BalanceView is the balance report for a single account.
type BalanceView struct {
	AccountID   string
	CashBalance decimal.Decimal
	LockedCash  decimal.Decimal
	Holdings    map[string]domain.Holding // asset_id → holding (copy)
}

// AccountService handles account registration and balance queries.
type AccountService struct {
	accounts *store.AccountStore
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts *store.AccountStore) *AccountService {
	return &AccountService{accounts: accounts}
}

// Register validates the request and creates a new account. Accounts
// with no roles default to trader.
func (s *AccountService) Register(req RegisterAccountRequest) (*domain.Account, error) {
	if !emailRegex.MatchString(req.Email) {
		return nil, &domain.ValidationError{Message: "email must be a valid address"}
	}
	if req.InitialCash.IsNegative() {
		return nil, &domain.ValidationError{Message: "initial_cash must not be negative"}
	}
	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{domain.RoleTrader}
	}
	for _, r := range roles {
		if !validRoles[r] {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("unknown role %q: must be one of trader, issuer, admin", r),
			}
		}
	}

	account := &domain.Account{
		AccountID:   uuid.New().String(),
		Email:       req.Email,
		Roles:       roles,
		CashBalance: req.InitialCash,
		Holdings:    make(map[string]*domain.Holding),
		CreatedAt:   time.Now(),
	}

	if err := s.accounts.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetBalance returns an account's cash and holdings. Only the account
// itself or an admin may read it.
func (s *AccountService) GetBalance(p domain.Principal, accountID string) (*BalanceView, error) {
	if p.AccountID != accountID && !p.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}

	account, err := s.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	account.Mu.Lock()
	defer account.Mu.Unlock()

	view := &BalanceView{
		AccountID:   account.AccountID,
		CashBalance: account.CashBalance,
		LockedCash:  account.LockedCash,
		Holdings:    make(map[string]domain.Holding, len(account.Holdings)),
	}
	for assetID, h := range account.Holdings {
		view.Holdings[assetID] = *h
	}
	return view, nil
}
