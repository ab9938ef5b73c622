package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	t    *testing.T
	conn *gorm.DB
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &fixture{t: t, conn: conn, now: time.Now().UTC()}
}

func (f *fixture) user(name, balance string) models.User {
	f.t.Helper()
	u := models.User{Username: name, DisplayName: strings.ToUpper(name[:1]) + name[1:], WalletBalance: decimal.RequireFromString(balance)}
	if err := f.conn.Create(&u).Error; err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) game(title, price string, discount int) models.Game {
	f.t.Helper()
	g := models.Game{Title: title, BasePrice: decimal.RequireFromString(price), DiscountPercent: discount}
	if err := f.conn.Create(&g).Error; err != nil {
		f.t.Fatalf("create game: %v", err)
	}
	return g
}

func (f *fixture) sale(discount int) {
	f.t.Helper()
	s := models.SaleEvent{Name: "sale", DiscountPercent: discount, StartsAt: f.now.Add(-time.Hour), EndsAt: f.now.Add(24 * time.Hour), IsActive: true}
	if err := f.conn.Create(&s).Error; err != nil {
		f.t.Fatalf("create sale: %v", err)
	}
}

func (f *fixture) voucher(code string, percent, maxUses int) models.Voucher {
	f.t.Helper()
	v := models.Voucher{Code: code, DiscountPercent: percent, MaxUses: maxUses, ExpiresAt: f.now.Add(24 * time.Hour), IsActive: true}
	if err := f.conn.Create(&v).Error; err != nil {
		f.t.Fatalf("create voucher: %v", err)
	}
	return v
}

func (f *fixture) own(userID, gameID uint64) {
	f.t.Helper()
	e := models.LibraryEntry{UserID: userID, GameID: gameID, TransactionID: 0, AcquiredVia: models.AcquiredViaPurchase}
	if err := f.conn.Create(&e).Error; err != nil {
		f.t.Fatalf("create library entry: %v", err)
	}
}

func (f *fixture) count(model any, where string, args ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.conn.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		f.t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) balance(userID uint64) decimal.Decimal {
	f.t.Helper()
	var u models.User
	if err := f.conn.First(&u, userID).Error; err != nil {
		f.t.Fatalf("load user: %v", err)
	}
	return u.WalletBalance
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v uint64) *uint64 { return &v }

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveCheckout(outcome, kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome+":"+kind)
}

type memorySink struct {
	mu         sync.Mutex
	notes      map[uint64][]string
	activities []string
	fail       bool
}

func (s *memorySink) Notify(_ context.Context, userID uint64, _ string, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notes == nil {
		s.notes = map[uint64][]string{}
	}
	s.notes[userID] = append(s.notes[userID], kind)
	if s.fail {
		return errors.New("inbox unavailable")
	}
	return nil
}

func (s *memorySink) LogActivity(_ context.Context, _ uint64, kind, _ string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, kind)
	if s.fail {
		return errors.New("feed unavailable")
	}
	return nil
}

func TestWalletCheckoutDebitsBalance(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("ada", "50")
	game := f.game("Orbit", "20", 10)
	rec := &recorder{}
	engine := NewEngine(f.conn, WithRecorder(rec))

	txn, err := engine.Checkout(context.Background(), Request{
		PurchaserID:   buyer.ID,
		GameIDs:       []uint64{game.ID},
		PaymentMethod: models.PaymentWallet,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !txn.Total.Equal(money("18")) {
		t.Fatalf("expected total 18.00, got %s", txn.Total)
	}
	if got := f.balance(buyer.ID); !got.Equal(money("32")) {
		t.Fatalf("expected balance 32.00, got %s", got)
	}
	if n := f.count(&models.LibraryEntry{}, "user_id = ? AND game_id = ?", buyer.ID, game.ID); n != 1 {
		t.Fatalf("expected one library row, got %d", n)
	}
	if txn.Status != models.TransactionStatusCompleted || txn.Reference == "" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if len(txn.Items) != 1 || !txn.Items[0].Price.Equal(money("18")) || txn.Items[0].DiscountPercent != 10 {
		t.Fatalf("unexpected items %+v", txn.Items)
	}
	if txn.PointsEarned != 18 {
		t.Fatalf("expected 18 loyalty points, got %d", txn.PointsEarned)
	}
	var reloaded models.User
	if err := f.conn.First(&reloaded, buyer.ID).Error; err != nil {
		t.Fatalf("reload buyer: %v", err)
	}
	if reloaded.LoyaltyPoints != 18 {
		t.Fatalf("expected buyer credited 18 points, got %d", reloaded.LoyaltyPoints)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != OutcomeCommitted+":" {
		t.Fatalf("unexpected recorded outcomes %v", rec.outcomes)
	}
}

func TestSaleAndVoucherStacking(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("bea", "0")
	game := f.game("Lantern", "20", 10)
	f.sale(20)
	v := f.voucher("HALF", 50, 10)
	engine := NewEngine(f.conn)

	txn, err := engine.Checkout(context.Background(), Request{
		PurchaserID: buyer.ID,
		GameIDs:     []uint64{game.ID},
		VoucherCode: " half ",
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !txn.Subtotal.Equal(money("14")) {
		t.Fatalf("expected subtotal 14.00, got %s", txn.Subtotal)
	}
	if !txn.Total.Equal(money("7")) || !txn.DiscountTotal.Equal(money("7")) {
		t.Fatalf("expected total 7.00 and discount 7.00, got %s and %s", txn.Total, txn.DiscountTotal)
	}
	if txn.PaymentMethod != models.PaymentCreditCard {
		t.Fatalf("expected default card payment, got %s", txn.PaymentMethod)
	}
	item := txn.Items[0]
	if item.DiscountPercent != 30 || item.VoucherPercent != 50 || !item.OriginalPrice.Equal(money("20")) {
		t.Fatalf("unexpected item snapshot %+v", item)
	}

	var reloaded models.Voucher
	if err := f.conn.First(&reloaded, v.ID).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used count 1, got %d", reloaded.UsedCount)
	}
	var usage models.VoucherUsage
	if err := f.conn.Where("voucher_id = ? AND user_id = ?", v.ID, buyer.ID).First(&usage).Error; err != nil {
		t.Fatalf("load usage: %v", err)
	}
	if usage.TransactionID == nil || *usage.TransactionID != txn.ID {
		t.Fatalf("expected usage linked to transaction %d, got %v", txn.ID, usage.TransactionID)
	}
}

func TestPreconditionFailures(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("cal", "100")
	game := f.game("Quarry", "10", 0)
	engine := NewEngine(f.conn)
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		want *apperr.Error
	}{
		{"empty cart", Request{PurchaserID: buyer.ID}, apperr.ErrNoGamesSelected},
		{"self gift", Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, RecipientID: ptr(buyer.ID)}, apperr.ErrCannotGiftSelf},
		{"unknown game", Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID, 404, 405}}, apperr.ErrGameNotFound},
		{"bad method", Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, PaymentMethod: "BITCOIN"}, apperr.ErrInvalidPaymentMethod},
		{"missing recipient", Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, RecipientID: ptr(9999)}, apperr.ErrRecipientNotFound},
		{"unknown voucher", Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, VoucherCode: "NOPE"}, apperr.ErrVoucherNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Checkout(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want.Kind, err)
			}
		})
	}

	_, err := engine.Checkout(ctx, Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID, 404, 405}})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || len(appErr.GameIDs) != 2 || appErr.GameIDs[0] != 404 {
		t.Fatalf("expected missing ids named, got %v", err)
	}
	if n := f.count(&models.Transaction{}, ""); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
}

func TestAlreadyOwnedByPurchaser(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("dee", "100")
	game := f.game("Echo", "15", 0)
	f.own(buyer.ID, game.ID)
	engine := NewEngine(f.conn)

	_, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, PaymentMethod: models.PaymentWallet})
	if !errors.Is(err, apperr.ErrAlreadyOwned) {
		t.Fatalf("expected already owned, got %v", err)
	}
	if n := f.count(&models.Transaction{}, ""); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
	if n := f.count(&models.LibraryEntry{}, ""); n != 1 {
		t.Fatalf("expected library unchanged, got %d rows", n)
	}
	if got := f.balance(buyer.ID); !got.Equal(money("100")) {
		t.Fatalf("expected balance unchanged, got %s", got)
	}
}

func TestGiftConflictNamesRecipient(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("eve", "100")
	friend := f.user("finn", "0")
	game := f.game("Drift", "12", 0)
	f.own(friend.ID, game.ID)
	engine := NewEngine(f.conn)

	_, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, RecipientID: ptr(friend.ID)})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindAlreadyOwned {
		t.Fatalf("expected already owned, got %v", err)
	}
	if !strings.Contains(appErr.Message, "recipient") {
		t.Fatalf("expected message about the recipient, got %q", appErr.Message)
	}
	if len(appErr.GameIDs) != 1 || appErr.GameIDs[0] != game.ID {
		t.Fatalf("expected conflicting id %d, got %v", game.ID, appErr.GameIDs)
	}

	// The purchaser owning the game does not block a gift.
	other := f.game("Ember", "5", 0)
	f.own(buyer.ID, other.ID)
	txn, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{other.ID}, RecipientID: ptr(friend.ID)})
	if err != nil {
		t.Fatalf("gift checkout: %v", err)
	}
	if txn.Recipient == nil || txn.Recipient.Name() != "Finn" {
		t.Fatalf("expected recipient on result, got %+v", txn.Recipient)
	}
	var entry models.LibraryEntry
	if err := f.conn.Where("user_id = ? AND game_id = ?", friend.ID, other.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected recipient library entry: %v", err)
	}
	if entry.AcquiredVia != models.AcquiredViaGift {
		t.Fatalf("expected gift acquisition, got %s", entry.AcquiredVia)
	}
}

func TestInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("gus", "10")
	game := f.game("Summit", "25", 0)
	v := f.voucher("TENOFF", 10, 5)
	engine := NewEngine(f.conn)

	_, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, VoucherCode: "TENOFF", PaymentMethod: models.PaymentWallet})
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := f.balance(buyer.ID); !got.Equal(money("10")) {
		t.Fatalf("expected balance unchanged, got %s", got)
	}
	if n := f.count(&models.VoucherUsage{}, "voucher_id = ?", v.ID); n != 0 {
		t.Fatalf("expected voucher not consumed, got %d usages", n)
	}
	var reloaded models.Voucher
	if err := f.conn.First(&reloaded, v.ID).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if reloaded.UsedCount != 0 {
		t.Fatalf("expected used count 0, got %d", reloaded.UsedCount)
	}
	if n := f.count(&models.Transaction{}, ""); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
}

func TestOwnershipRaceRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("hal", "40")
	game := f.game("Relay", "20", 0)
	v := f.voucher("RACE", 25, 5)
	engine := NewEngine(f.conn)
	engine.beforeGrant = func(ctx context.Context, tx *gorm.DB) error {
		// A competing checkout granted the same game after the advisory check.
		return tx.Create(&models.LibraryEntry{UserID: buyer.ID, GameID: game.ID, TransactionID: 0, AcquiredVia: models.AcquiredViaPurchase}).Error
	}

	_, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, VoucherCode: "RACE", PaymentMethod: models.PaymentWallet})
	if !errors.Is(err, apperr.ErrAlreadyOwned) || !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("expected already owned race, got %v", err)
	}

	if n := f.count(&models.Transaction{}, ""); n != 0 {
		t.Fatalf("expected no transaction rows, got %d", n)
	}
	if n := f.count(&models.TransactionItem{}, ""); n != 0 {
		t.Fatalf("expected no transaction items, got %d", n)
	}
	if n := f.count(&models.VoucherUsage{}, "voucher_id = ?", v.ID); n != 0 {
		t.Fatalf("expected no voucher usage, got %d", n)
	}
	if got := f.balance(buyer.ID); !got.Equal(money("40")) {
		t.Fatalf("expected wallet untouched, got %s", got)
	}
	if n := f.count(&models.LibraryEntry{}, ""); n != 0 {
		t.Fatalf("expected no library rows, got %d", n)
	}
}

func TestConcurrentVoucherRedemptionSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("ivy", "0")
	first := f.game("Nova", "10", 0)
	second := f.game("Pulse", "10", 0)
	v := f.voucher("LASTONE", 50, 1)
	engine := NewEngine(f.conn)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, g := range []models.Game{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{g.ID}, VoucherCode: "LASTONE"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrVoucherAlreadyUsed), errors.Is(err, apperr.ErrVoucherExhausted):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one success, got %d (%v)", succeeded, errs)
	}
	var reloaded models.Voucher
	if err := f.conn.First(&reloaded, v.ID).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used count 1, got %d", reloaded.UsedCount)
	}
}

func TestConcurrentWalletCheckoutsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("jo", "30")
	engine := NewEngine(f.conn)
	games := []models.Game{f.game("A", "20", 0), f.game("B", "20", 0), f.game("C", "20", 0)}

	var wg sync.WaitGroup
	errs := make([]error, len(games))
	for i, g := range games {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{g.ID}, PaymentMethod: models.PaymentWallet})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrInsufficientFunds), errors.Is(err, apperr.ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected one success, got %d (%v)", succeeded, errs)
	}
	if got := f.balance(buyer.ID); !got.Equal(money("10")) {
		t.Fatalf("expected balance 10.00, got %s", got)
	}
	if n := f.count(&models.Transaction{}, ""); n != 1 {
		t.Fatalf("expected one transaction, got %d", n)
	}
}

func TestConcurrentGrantsOfSameGame(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("kai", "0")
	game := f.game("Tide", "8", 0)
	engine := NewEngine(f.conn)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, apperr.ErrAlreadyOwned) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected one success, got %d", succeeded)
	}
	if n := f.count(&models.LibraryEntry{}, "user_id = ? AND game_id = ?", buyer.ID, game.ID); n != 1 {
		t.Fatalf("expected one library row, got %d", n)
	}
}

func TestDuplicateIDsAreCollapsed(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("lou", "0")
	game := f.game("Mirror", "9.99", 0)
	engine := NewEngine(f.conn)

	txn, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID, game.ID}})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(txn.Items) != 1 || !txn.Total.Equal(money("9.99")) {
		t.Fatalf("expected a single line of 9.99, got %d lines total %s", len(txn.Items), txn.Total)
	}
}

func TestPublisherVoucherMustMatchCart(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("max", "0")
	pub := models.Publisher{Name: "Northwind"}
	if err := f.conn.Create(&pub).Error; err != nil {
		t.Fatalf("create publisher: %v", err)
	}
	own := f.game("House Game", "10", 0)
	if err := f.conn.Model(&own).Update("publisher_id", pub.ID).Error; err != nil {
		t.Fatalf("assign publisher: %v", err)
	}
	foreign := f.game("Other Game", "10", 0)
	v := models.Voucher{Code: "NORTH", DiscountPercent: 20, MaxUses: 10, ExpiresAt: f.now.Add(time.Hour), IsActive: true, PublisherID: &pub.ID}
	if err := f.conn.Create(&v).Error; err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	engine := NewEngine(f.conn)

	_, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{foreign.ID}, VoucherCode: "NORTH"})
	if !errors.Is(err, apperr.ErrVoucherNotApplicable) {
		t.Fatalf("expected voucher not applicable, got %v", err)
	}

	txn, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{own.ID, foreign.ID}, VoucherCode: "NORTH"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !txn.Total.Equal(money("18")) {
		t.Fatalf("expected only the publisher's game discounted (8+10), got %s", txn.Total)
	}
}

func TestGiftSendsNotificationsAfterCommit(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("nia", "0")
	friend := f.user("oto", "0")
	game := f.game("Comet", "5", 0)
	sink := &memorySink{}
	dispatcher := notify.NewDispatcher(time.Second)
	engine := NewEngine(f.conn, WithNotifications(sink, dispatcher))

	if _, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, RecipientID: ptr(friend.ID)}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	dispatcher.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if got := sink.notes[buyer.ID]; len(got) != 1 || got[0] != notify.KindGiftSent {
		t.Fatalf("unexpected purchaser notifications %v", got)
	}
	if got := sink.notes[friend.ID]; len(got) != 1 || got[0] != notify.KindGiftReceived {
		t.Fatalf("unexpected recipient notifications %v", got)
	}
	if len(sink.activities) != 1 || sink.activities[0] != notify.ActivityGifted {
		t.Fatalf("unexpected activities %v", sink.activities)
	}
}

func TestNotificationFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("pia", "0")
	game := f.game("Vale", "3", 0)
	dispatcher := notify.NewDispatcher(time.Second)
	engine := NewEngine(f.conn, WithNotifications(&memorySink{fail: true}, dispatcher))

	txn, err := engine.Checkout(context.Background(), Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}})
	dispatcher.Wait()
	if err != nil {
		t.Fatalf("expected checkout to succeed, got %v", err)
	}
	if n := f.count(&models.Transaction{}, "id = ?", txn.ID); n != 1 {
		t.Fatalf("expected committed transaction")
	}
}

func TestHistoryAndGetAreScopedToParticipants(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("quin", "0")
	friend := f.user("rae", "0")
	stranger := f.user("sol", "0")
	game := f.game("Glow", "4", 0)
	engine := NewEngine(f.conn)
	ctx := context.Background()

	txn, err := engine.Checkout(ctx, Request{PurchaserID: buyer.ID, GameIDs: []uint64{game.ID}, RecipientID: ptr(friend.ID)})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	for _, userID := range []uint64{buyer.ID, friend.ID} {
		rows, total, err := engine.History(ctx, userID, 1, 10)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if total != 1 || len(rows) != 1 || len(rows[0].Items) != 1 {
			t.Fatalf("user %d: expected one transaction with items, got %d/%d", userID, len(rows), total)
		}
		if rows[0].Recipient == nil || rows[0].Recipient.ID != friend.ID {
			t.Fatalf("expected recipient preloaded")
		}
	}

	if _, err := engine.Get(ctx, friend.ID, txn.ID); err != nil {
		t.Fatalf("recipient get: %v", err)
	}
	if _, err := engine.Get(ctx, stranger.ID, txn.ID); !errors.Is(err, apperr.ErrTransactionNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
}
