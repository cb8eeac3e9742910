package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/engine"
	"github.com/tokeniq/assetmarket/internal/ledger"
	"github.com/tokeniq/assetmarket/internal/market"
	"github.com/tokeniq/assetmarket/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// services wires the full service layer against in-memory stores, the
// same way main does.
type services struct {
	account *AccountService
	asset   *AssetService
	order   *OrderService
	market  *MarketService

	accounts *store.AccountStore
	assets   *store.AssetStore
	orders   *store.OrderStore
	trades   *store.TradeStore
	ledger   *ledger.Ledger
	books    *engine.BookManager
}

func newServices() *services {
	accounts := store.NewAccountStore()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	led := ledger.New(accounts)
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, led, accounts, assets, orders, trades)
	snapshots := market.NewSnapshotBuilder(books, trades, assets, time.Hour)

	return &services{
		account:  NewAccountService(accounts),
		asset:    NewAssetService(assets, accounts, led),
		order:    NewOrderService(matcher, accounts, orders),
		market:   NewMarketService(snapshots, books, assets, trades),
		accounts: accounts,
		assets:   assets,
		orders:   orders,
		trades:   trades,
		ledger:   led,
		books:    books,
	}
}

// register creates an account through the service and returns it with a
// matching principal.
func (s *services) register(email string, roles []string, cash string) (*domain.Account, domain.Principal) {
	account, err := s.account.Register(RegisterAccountRequest{
		Email:       email,
		Roles:       roles,
		InitialCash: dec(cash),
	})
	if err != nil {
		panic(err)
	}
	return account, domain.Principal{AccountID: account.AccountID, Roles: account.Roles}
}

// issueLiveAsset creates an asset as the issuer and approves it as the
// admin, leaving it live and the supply on the issuer's account.
func (s *services) issueLiveAsset(issuer, admin domain.Principal, symbol, supply, refPrice string) *domain.Asset {
	asset, err := s.asset.Create(issuer, CreateAssetRequest{
		Symbol:         symbol,
		Name:           symbol + " Token",
		AssetType:      "equity",
		TotalSupply:    dec(supply),
		ReferencePrice: dec(refPrice),
	})
	if err != nil {
		panic(err)
	}
	if _, err := s.asset.UpdateStatus(admin, asset.AssetID, domain.AssetStatusLive); err != nil {
		panic(err)
	}
	return asset
}
