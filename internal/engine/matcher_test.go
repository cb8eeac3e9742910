package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokeniq/assetmarket/internal/domain"
	"github.com/tokeniq/assetmarket/internal/ledger"
	"github.com/tokeniq/assetmarket/internal/store"
)

// dec parses a decimal literal for test fixtures.
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testEnv bundles a Matcher with fresh stores for testing.
type testEnv struct {
	matcher  *Matcher
	books    *BookManager
	ledger   *ledger.Ledger
	accounts *store.AccountStore
	assets   *store.AssetStore
	orders   *store.OrderStore
	trades   *store.TradeStore
}

func newTestEnv() *testEnv {
	accounts := store.NewAccountStore()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	led := ledger.New(accounts)
	books := NewBookManager()
	m := NewMatcher(books, led, accounts, assets, orders, trades)
	return &testEnv{
		matcher:  m,
		books:    books,
		ledger:   led,
		accounts: accounts,
		assets:   assets,
		orders:   orders,
		trades:   trades,
	}
}

// addAccount creates and stores an account with the given free cash and
// free holdings.
func (e *testEnv) addAccount(id, cash string, holdings map[string]string) *domain.Account {
	a := &domain.Account{
		AccountID:   id,
		Email:       id + "@example.com",
		Roles:       []string{domain.RoleTrader},
		CashBalance: dec(cash),
		Holdings:    make(map[string]*domain.Holding),
		CreatedAt:   time.Now(),
	}
	for assetID, qty := range holdings {
		a.Holdings[assetID] = &domain.Holding{Free: dec(qty)}
	}
	_ = e.accounts.Create(a)
	return a
}

// addAsset creates and stores a live asset unless a status is given.
func (e *testEnv) addAsset(id string, status ...domain.AssetStatus) *domain.Asset {
	st := domain.AssetStatusLive
	if len(status) > 0 {
		st = status[0]
	}
	a := &domain.Asset{
		AssetID:        id,
		Symbol:         "TKN",
		Name:           "Test Token",
		AssetType:      "equity",
		IssuerID:       "issuer",
		TotalSupply:    dec("1000000"),
		ReferencePrice: dec("10"),
		Status:         st,
		CreatedAt:      time.Now(),
	}
	e.assets.Create(a)
	return a
}

// newOrder creates an order struct not yet submitted to the matcher.
func newOrder(accountID, assetID string, side domain.OrderSide, price, qty string) *domain.Order {
	return &domain.Order{
		AccountID:  accountID,
		AssetID:    assetID,
		Side:       side,
		LimitPrice: dec(price),
		Quantity:   dec(qty),
	}
}

func TestSubmitOrder_BuyNoMatch_RestsOnBook(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	buyer := e.addAccount("buyer", "1000", nil)

	order := newOrder("buyer", "T", domain.OrderSideBuy, "150", "5")
	trades, err := e.matcher.SubmitOrder(order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("expected status open, got %s", order.Status)
	}
	if !order.RemainingQuantity.Equal(dec("5")) {
		t.Errorf("expected remaining 5, got %s", order.RemainingQuantity)
	}
	if order.OrderID == "" {
		t.Error("expected order_id to be assigned")
	}

	// Escrow: 150 × 5 = 750 moved from free to locked cash.
	if !buyer.CashBalance.Equal(dec("250")) {
		t.Errorf("expected free cash 250, got %s", buyer.CashBalance)
	}
	if !buyer.LockedCash.Equal(dec("750")) {
		t.Errorf("expected locked cash 750, got %s", buyer.LockedCash)
	}

	book := e.books.GetOrCreate("T")
	if book.BidCount() != 1 {
		t.Errorf("expected 1 bid on book, got %d", book.BidCount())
	}
}

func TestSubmitOrder_SellNoMatch_RestsOnBook(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	seller := e.addAccount("seller", "0", map[string]string{"T": "10"})

	order := newOrder("seller", "T", domain.OrderSideSell, "150", "5")
	trades, err := e.matcher.SubmitOrder(order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("expected status open, got %s", order.Status)
	}

	h := seller.Holdings["T"]
	if !h.Free.Equal(dec("5")) || !h.Locked.Equal(dec("5")) {
		t.Errorf("expected free 5 / locked 5, got %s / %s", h.Free, h.Locked)
	}

	book := e.books.GetOrCreate("T")
	if book.AskCount() != 1 {
		t.Errorf("expected 1 ask on book, got %d", book.AskCount())
	}
}

func TestSubmitOrder_FullMatch(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	seller := e.addAccount("seller", "0", map[string]string{"T": "10"})
	buyer := e.addAccount("buyer", "10000", nil)

	ask := newOrder("seller", "T", domain.OrderSideSell, "150", "5")
	if _, err := e.matcher.SubmitOrder(ask); err != nil {
		t.Fatalf("ask order error: %v", err)
	}

	bid := newOrder("buyer", "T", domain.OrderSideBuy, "150", "5")
	trades, err := e.matcher.SubmitOrder(bid)
	if err != nil {
		t.Fatalf("bid order error: %v", err)
	}

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if !tr.Quantity.Equal(dec("5")) || !tr.Price.Equal(dec("150")) {
		t.Errorf("expected 5 @ 150, got %s @ %s", tr.Quantity, tr.Price)
	}
	if tr.BuyerID != "buyer" || tr.SellerID != "seller" {
		t.Errorf("wrong parties: buyer=%s seller=%s", tr.BuyerID, tr.SellerID)
	}
	// fee = 5 × 150 × 0.002 = 1.5
	if !tr.Fee.Equal(dec("1.5")) {
		t.Errorf("expected fee 1.5, got %s", tr.Fee)
	}

	if bid.Status != domain.OrderStatusFilled || ask.Status != domain.OrderStatusFilled {
		t.Errorf("expected both filled, got %s / %s", bid.Status, ask.Status)
	}

	// Settlement: tokens to the buyer, cash to the seller, no residual
	// escrow on either side.
	if !buyer.Holdings["T"].Free.Equal(dec("5")) {
		t.Errorf("expected buyer holding 5, got %s", buyer.Holdings["T"].Free)
	}
	if !seller.CashBalance.Equal(dec("750")) {
		t.Errorf("expected seller cash 750, got %s", seller.CashBalance)
	}
	if !buyer.LockedCash.IsZero() {
		t.Errorf("expected buyer locked cash 0, got %s", buyer.LockedCash)
	}
	if !seller.Holdings["T"].Locked.IsZero() {
		t.Errorf("expected seller locked 0, got %s", seller.Holdings["T"].Locked)
	}

	book := e.books.GetOrCreate("T")
	if book.AskCount() != 0 || book.BidCount() != 0 {
		t.Errorf("expected empty book, got %d bids / %d asks", book.BidCount(), book.AskCount())
	}
}

func TestSubmitOrder_PriceTimePriority(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("a", "0", map[string]string{"T": "10"})
	e.addAccount("b", "0", map[string]string{"T": "10"})
	e.addAccount("c", "0", map[string]string{"T": "10"})
	e.addAccount("buyer", "10000", nil)

	// Resting sells: A at 10, then B at 9, then C at 9. B is older than
	// C at the same price, so B must fill first.
	for _, o := range []*domain.Order{
		newOrder("a", "T", domain.OrderSideSell, "10", "3"),
		newOrder("b", "T", domain.OrderSideSell, "9", "3"),
		newOrder("c", "T", domain.OrderSideSell, "9", "3"),
	} {
		if _, err := e.matcher.SubmitOrder(o); err != nil {
			t.Fatalf("resting sell error: %v", err)
		}
	}

	// A buy for 6 at limit 9 covers both 9-priced orders and must not
	// touch A.
	bid := newOrder("buyer", "T", domain.OrderSideBuy, "9", "6")
	trades, err := e.matcher.SubmitOrder(bid)
	if err != nil {
		t.Fatalf("bid error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].SellerID != "b" {
		t.Errorf("expected first fill against b (older at 9), got %s", trades[0].SellerID)
	}
	if trades[1].SellerID != "c" {
		t.Errorf("expected second fill against c, got %s", trades[1].SellerID)
	}
	if !trades[0].Price.Equal(dec("9")) || !trades[1].Price.Equal(dec("9")) {
		t.Errorf("expected both fills at 9, got %s and %s", trades[0].Price, trades[1].Price)
	}
}

func TestSubmitOrder_PriceImprovement_RefundsSurplus(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("seller", "0", map[string]string{"T": "10"})
	buyer := e.addAccount("buyer", "120", nil)

	ask := newOrder("seller", "T", domain.OrderSideSell, "10", "10")
	if _, err := e.matcher.SubmitOrder(ask); err != nil {
		t.Fatalf("ask error: %v", err)
	}

	// Buy 10 at limit 12: escrows 120, executes at 10 (cost 100), the
	// 20 surplus must come back to free cash.
	bid := newOrder("buyer", "T", domain.OrderSideBuy, "12", "10")
	trades, err := e.matcher.SubmitOrder(bid)
	if err != nil {
		t.Fatalf("bid error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(dec("10")) {
		t.Errorf("expected execution at 10, got %s", trades[0].Price)
	}
	if !buyer.CashBalance.Equal(dec("20")) {
		t.Errorf("expected refunded free cash 20, got %s", buyer.CashBalance)
	}
	if !buyer.LockedCash.IsZero() {
		t.Errorf("expected locked cash 0, got %s", buyer.LockedCash)
	}
}

func TestSubmitOrder_PartialFill(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("seller", "0", map[string]string{"T": "10"})
	e.addAccount("buyer", "10000", nil)

	ask := newOrder("seller", "T", domain.OrderSideSell, "100", "10")
	if _, err := e.matcher.SubmitOrder(ask); err != nil {
		t.Fatalf("ask error: %v", err)
	}

	bid := newOrder("buyer", "T", domain.OrderSideBuy, "100", "4")
	if _, err := e.matcher.SubmitOrder(bid); err != nil {
		t.Fatalf("bid error: %v", err)
	}

	if ask.Status != domain.OrderStatusPartiallyFilled {
		t.Errorf("expected partially_filled, got %s", ask.Status)
	}
	if !ask.RemainingQuantity.Equal(dec("6")) {
		t.Errorf("expected remaining 6, got %s", ask.RemainingQuantity)
	}
	if bid.Status != domain.OrderStatusFilled {
		t.Errorf("expected filled, got %s", bid.Status)
	}

	// The partially filled ask stays on the book.
	book := e.books.GetOrCreate("T")
	if book.AskCount() != 1 {
		t.Errorf("expected 1 ask on book, got %d", book.AskCount())
	}
}

func TestSubmitOrder_InsufficientHolding_NoSideEffects(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	seller := e.addAccount("seller", "0", map[string]string{"T": "5"})

	order := newOrder("seller", "T", domain.OrderSideSell, "10", "6")
	_, err := e.matcher.SubmitOrder(order)
	if !errors.Is(err, domain.ErrInsufficientHolding) {
		t.Fatalf("expected ErrInsufficientHolding, got %v", err)
	}

	if order.OrderID != "" {
		t.Error("expected no order to be created")
	}
	h := seller.Holdings["T"]
	if !h.Free.Equal(dec("5")) || !h.Locked.IsZero() {
		t.Errorf("expected balances untouched, got free %s locked %s", h.Free, h.Locked)
	}
	if _, total := e.orders.ListByAccount("seller", nil, 1, 10); total != 0 {
		t.Errorf("expected no stored orders, got %d", total)
	}
}

func TestSubmitOrder_InsufficientFunds_NoSideEffects(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	buyer := e.addAccount("buyer", "99", nil)

	order := newOrder("buyer", "T", domain.OrderSideBuy, "10", "10")
	_, err := e.matcher.SubmitOrder(order)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !buyer.CashBalance.Equal(dec("99")) || !buyer.LockedCash.IsZero() {
		t.Errorf("expected balances untouched, got %s / %s", buyer.CashBalance, buyer.LockedCash)
	}
}

func TestSubmitOrder_AssetNotTradable(t *testing.T) {
	e := newTestEnv()
	e.addAsset("P", domain.AssetStatusPending)
	e.addAccount("buyer", "1000", nil)

	_, err := e.matcher.SubmitOrder(newOrder("buyer", "P", domain.OrderSideBuy, "10", "1"))
	if !errors.Is(err, domain.ErrAssetNotTradable) {
		t.Fatalf("expected ErrAssetNotTradable, got %v", err)
	}
}

func TestSubmitOrder_UnknownAsset(t *testing.T) {
	e := newTestEnv()
	e.addAccount("buyer", "1000", nil)

	_, err := e.matcher.SubmitOrder(newOrder("buyer", "nope", domain.OrderSideBuy, "10", "1"))
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestSubmitOrder_InvalidParameters(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("buyer", "1000", nil)

	cases := []struct {
		name  string
		order *domain.Order
	}{
		{"zero quantity", newOrder("buyer", "T", domain.OrderSideBuy, "10", "0")},
		{"negative price", newOrder("buyer", "T", domain.OrderSideBuy, "-1", "1")},
		{"zero price", newOrder("buyer", "T", domain.OrderSideBuy, "0", "1")},
		{"bad side", newOrder("buyer", "T", domain.OrderSide("short"), "10", "1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.matcher.SubmitOrder(tc.order)
			if !errors.Is(err, domain.ErrInvalidOrderParams) {
				t.Fatalf("expected ErrInvalidOrderParams, got %v", err)
			}
		})
	}
}

// TestSubmitOrder_SettlementScenario walks a full settlement: X sells
// 100 @ 5, Y buys 60 @ 6, and every balance, status, and the fee land
// exactly where they should.
func TestSubmitOrder_SettlementScenario(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	x := e.addAccount("x", "0", map[string]string{"T": "100"})
	y := e.addAccount("y", "1000", nil)

	sell := newOrder("x", "T", domain.OrderSideSell, "5", "100")
	if _, err := e.matcher.SubmitOrder(sell); err != nil {
		t.Fatalf("sell error: %v", err)
	}
	if !x.Holdings["T"].Locked.Equal(dec("100")) {
		t.Fatalf("expected locked 100, got %s", x.Holdings["T"].Locked)
	}

	buy := newOrder("y", "T", domain.OrderSideBuy, "6", "60")
	trades, err := e.matcher.SubmitOrder(buy)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if !tr.Quantity.Equal(dec("60")) || !tr.Price.Equal(dec("5")) {
		t.Errorf("expected 60 @ 5, got %s @ %s", tr.Quantity, tr.Price)
	}
	if !tr.Fee.Equal(dec("0.6")) {
		t.Errorf("expected fee 0.6, got %s", tr.Fee)
	}

	if !x.Holdings["T"].Locked.Equal(dec("40")) {
		t.Errorf("expected X locked 40, got %s", x.Holdings["T"].Locked)
	}
	if !y.Holdings["T"].Free.Equal(dec("60")) {
		t.Errorf("expected Y holding 60, got %s", y.Holdings["T"].Free)
	}
	if !x.CashBalance.Equal(dec("300")) {
		t.Errorf("expected X cash 300, got %s", x.CashBalance)
	}
	// Y escrowed 360, spent 300, and got the 60 price-improvement
	// surplus back.
	if !y.CashBalance.Equal(dec("700")) {
		t.Errorf("expected Y cash 700, got %s", y.CashBalance)
	}
	if !y.LockedCash.IsZero() {
		t.Errorf("expected Y locked cash 0, got %s", y.LockedCash)
	}

	if buy.Status != domain.OrderStatusFilled || !buy.RemainingQuantity.IsZero() {
		t.Errorf("expected buy filled/0, got %s/%s", buy.Status, buy.RemainingQuantity)
	}
	if sell.Status != domain.OrderStatusPartiallyFilled || !sell.RemainingQuantity.Equal(dec("40")) {
		t.Errorf("expected sell partially_filled/40, got %s/%s", sell.Status, sell.RemainingQuantity)
	}

	// Trade is recorded on both orders and in the trade store.
	if len(sell.Trades) != 1 || len(buy.Trades) != 1 {
		t.Errorf("expected trade on both orders, got %d / %d", len(sell.Trades), len(buy.Trades))
	}
	if got := e.trades.Recent("T", 10); len(got) != 1 {
		t.Errorf("expected 1 stored trade, got %d", len(got))
	}
}

func TestCancelOrder_ReleasesSellEscrow(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	seller := e.addAccount("seller", "0", map[string]string{"T": "10"})

	order := newOrder("seller", "T", domain.OrderSideSell, "10", "10")
	if _, err := e.matcher.SubmitOrder(order); err != nil {
		t.Fatalf("submit error: %v", err)
	}

	cancelled, err := e.matcher.CancelOrder(order.OrderID)
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}

	h := seller.Holdings["T"]
	if !h.Free.Equal(dec("10")) || !h.Locked.IsZero() {
		t.Errorf("expected escrow released, got free %s locked %s", h.Free, h.Locked)
	}
	if e.books.GetOrCreate("T").AskCount() != 0 {
		t.Error("expected order removed from book")
	}
}

func TestCancelOrder_ReleasesRemainingBuyEscrow(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("seller", "0", map[string]string{"T": "4"})
	buyer := e.addAccount("buyer", "100", nil)

	ask := newOrder("seller", "T", domain.OrderSideSell, "10", "4")
	if _, err := e.matcher.SubmitOrder(ask); err != nil {
		t.Fatalf("ask error: %v", err)
	}

	// Buy 10 at 10: escrows 100, fills 4 (cost 40), rests 6.
	bid := newOrder("buyer", "T", domain.OrderSideBuy, "10", "10")
	if _, err := e.matcher.SubmitOrder(bid); err != nil {
		t.Fatalf("bid error: %v", err)
	}
	if !buyer.LockedCash.Equal(dec("60")) {
		t.Fatalf("expected locked 60 after partial fill, got %s", buyer.LockedCash)
	}

	if _, err := e.matcher.CancelOrder(bid.OrderID); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if !buyer.LockedCash.IsZero() {
		t.Errorf("expected locked cash released, got %s", buyer.LockedCash)
	}
	if !buyer.CashBalance.Equal(dec("60")) {
		t.Errorf("expected free cash 60, got %s", buyer.CashBalance)
	}
	// Remaining quantity is frozen by the cancel.
	if !bid.RemainingQuantity.Equal(dec("6")) {
		t.Errorf("expected remaining frozen at 6, got %s", bid.RemainingQuantity)
	}
}

func TestCancelOrder_TerminalOrderFails(t *testing.T) {
	e := newTestEnv()
	e.addAsset("T")
	e.addAccount("seller", "0", map[string]string{"T": "5"})
	e.addAccount("buyer", "1000", nil)

	ask := newOrder("seller", "T", domain.OrderSideSell, "10", "5")
	if _, err := e.matcher.SubmitOrder(ask); err != nil {
		t.Fatalf("ask error: %v", err)
	}
	bid := newOrder("buyer", "T", domain.OrderSideBuy, "10", "5")
	if _, err := e.matcher.SubmitOrder(bid); err != nil {
		t.Fatalf("bid error: %v", err)
	}

	if _, err := e.matcher.CancelOrder(ask.OrderID); !errors.Is(err, domain.ErrOrderNotActive) {
		t.Fatalf("expected ErrOrderNotActive, got %v", err)
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	e := newTestEnv()
	if _, err := e.matcher.CancelOrder("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
