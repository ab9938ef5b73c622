// Package checkout turns a cart into a priced, paid and ownership-granting
// transaction. A checkout either commits every effect or none.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/catalog"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/library"
	"github.com/playvault/storefront/internal/logging"
	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/notify"
	"github.com/playvault/storefront/internal/pricing"
	"github.com/playvault/storefront/internal/settings"
	"github.com/playvault/storefront/internal/voucher"
	"github.com/playvault/storefront/internal/wallet"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Phase is the state of one checkout call. Nothing is persisted before
// Committed, so other readers only ever see a checkout absent or complete.
type Phase string

// Checkout phases.
const (
	PhaseValidating Phase = "Validating"
	PhasePricing    Phase = "Pricing"
	PhaseCommitting Phase = "Committing"
	PhaseCommitted  Phase = "Committed"
	PhaseAborted    Phase = "Aborted"
)

// Outcome labels passed to the Recorder.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// Request is one checkout call. The purchaser is already authenticated.
type Request struct {
	PurchaserID   uint64
	GameIDs       []uint64
	RecipientID   *uint64
	VoucherCode   string
	PaymentMethod models.PaymentMethod
}

// Recorder observes checkout outcomes, e.g. for metrics.
type Recorder interface {
	ObserveCheckout(outcome, kind string, elapsed time.Duration)
}

// Engine runs checkouts against the store.
type Engine struct {
	db         *gorm.DB
	now        func() time.Time
	sink       notify.Sink
	dispatcher *notify.Dispatcher
	recorder   Recorder
	tracer     trace.Tracer

	// beforeGrant runs inside the transaction right before ownership rows are
	// inserted. Tests use it to stage a competing grant.
	beforeGrant func(ctx context.Context, tx *gorm.DB) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for sale windows and voucher expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifications sends post-commit notifications and activity entries to
// sink through dispatcher.
func WithNotifications(sink notify.Sink, dispatcher *notify.Dispatcher) Option {
	return func(e *Engine) {
		e.sink = sink
		e.dispatcher = dispatcher
	}
}

// WithRecorder reports every checkout outcome to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine returns an engine over conn.
func NewEngine(conn *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:     conn,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("github.com/playvault/storefront/internal/checkout"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// line is one priced cart entry.
type line struct {
	game           models.Game
	quote          pricing.Quote
	voucherPercent int
	price          decimal.Decimal
	points         int64
}

// plan is everything computed before the atomic phase.
type plan struct {
	req       Request
	gameIDs   []uint64
	purchaser *models.User
	recipient *models.User
	voucher   *models.Voucher
	lines     []line
	subtotal  decimal.Decimal
	total     decimal.Decimal
	points    int64
	now       time.Time
}

func (p *plan) ownerID() uint64 {
	if p.recipient != nil {
		return p.recipient.ID
	}
	return p.purchaser.ID
}

func (p *plan) gift() bool { return p.recipient != nil }

// Checkout validates, prices and commits req. Business failures are
// *apperr.Error values; anything else is an infrastructure failure.
func (e *Engine) Checkout(ctx context.Context, req Request) (*models.Transaction, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.Int64("checkout.purchaser_id", int64(req.PurchaserID)),
		attribute.Int("checkout.items", len(req.GameIDs)),
		attribute.Bool("checkout.gift", req.RecipientID != nil),
	))
	defer span.End()

	txn, err := e.run(ctx, span, req)
	elapsed := time.Since(start)
	if err != nil {
		kind := string(apperr.KindOf(err))
		enter(span, PhaseAborted)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.recorder != nil {
			e.recorder.ObserveCheckout(OutcomeAborted, kindLabel(kind), elapsed)
		}
		entry := logging.FromContext(ctx).WithField("purchaser_id", req.PurchaserID).WithField("kind", kindLabel(kind))
		if kind == "" {
			entry.WithError(err).Error("checkout aborted")
		} else {
			entry.Debugf("checkout rejected: %v", err)
		}
		return nil, err
	}

	enter(span, PhaseCommitted)
	span.SetAttributes(attribute.String("checkout.reference", txn.Reference))
	if e.recorder != nil {
		e.recorder.ObserveCheckout(OutcomeCommitted, "", elapsed)
	}
	logging.FromContext(ctx).WithFields(log.Fields{
		"reference":    txn.Reference,
		"purchaser_id": txn.UserID,
		"owner_id":     txn.OwnerID(),
		"total":        txn.Total.StringFixed(2),
		"method":       txn.PaymentMethod,
	}).Info("checkout committed")
	return txn, nil
}

func (e *Engine) run(ctx context.Context, span trace.Span, req Request) (*models.Transaction, error) {
	enter(span, PhaseValidating)
	p, err := e.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	enter(span, PhasePricing)
	if err := e.price(ctx, p); err != nil {
		return nil, err
	}

	enter(span, PhaseCommitting)
	txn, err := e.commit(ctx, p)
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, p, txn)
	return txn, nil
}

func (e *Engine) validate(ctx context.Context, req Request) (*plan, error) {
	if len(req.GameIDs) == 0 {
		return nil, apperr.New(apperr.KindNoGamesSelected, "no games selected")
	}
	if req.RecipientID != nil && *req.RecipientID == req.PurchaserID {
		return nil, apperr.New(apperr.KindCannotGiftSelf, "you cannot gift a game to yourself")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentCreditCard
	}
	req.PaymentMethod = models.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.PaymentMethod))))
	if !req.PaymentMethod.Valid() {
		return nil, apperr.Newf(apperr.KindInvalidPaymentMethod, "unsupported payment method %q", req.PaymentMethod)
	}

	p := &plan{req: req, gameIDs: catalog.UniqueIDs(req.GameIDs), now: e.now()}

	purchaser, err := e.findUser(ctx, req.PurchaserID)
	if err != nil {
		return nil, err
	}
	if purchaser == nil {
		return nil, apperr.Newf(apperr.KindUserNotFound, "user %d not found", req.PurchaserID)
	}
	p.purchaser = purchaser

	if req.RecipientID != nil {
		recipient, err := e.findUser(ctx, *req.RecipientID)
		if err != nil {
			return nil, err
		}
		if recipient == nil {
			return nil, apperr.Newf(apperr.KindRecipientNotFound, "recipient %d not found", *req.RecipientID)
		}
		p.recipient = recipient
	}

	games, missing, err := catalog.FindGames(ctx, e.db, p.gameIDs)
	if err != nil {
		return nil, errors.Wrap(err, "checkout: load games")
	}
	if len(missing) > 0 {
		return nil, apperr.GameNotFound(missing)
	}

	owned, err := library.Owned(ctx, e.db, p.ownerID(), p.gameIDs)
	if err != nil {
		return nil, errors.Wrap(err, "checkout: check ownership")
	}
	if len(owned) > 0 {
		return nil, apperr.AlreadyOwned(owned, p.gift())
	}

	if strings.TrimSpace(req.VoucherCode) != "" {
		v, err := voucher.Validate(ctx, e.db, req.VoucherCode, purchaser.ID, p.now)
		if err != nil {
			return nil, err
		}
		p.voucher = v
	}

	p.lines = make([]line, 0, len(p.gameIDs))
	for _, id := range p.gameIDs {
		p.lines = append(p.lines, line{game: games[id]})
	}
	return p, nil
}

// price resolves the sale once so every line sees the same snapshot, then
// layers the voucher on top of each stacked price.
func (e *Engine) price(ctx context.Context, p *plan) error {
	sale, err := catalog.ActiveSale(ctx, e.db, p.now)
	if err != nil {
		return errors.Wrap(err, "checkout: resolve sale")
	}
	rate := int64(settings.IntValue(settings.LoyaltyPointsPerUnitKey, settings.DefaultLoyaltyPointsPerUnit))

	p.subtotal = decimal.Zero
	p.total = decimal.Zero
	p.points = 0
	discounted := false
	for i := range p.lines {
		l := &p.lines[i]
		l.quote = pricing.Resolve(&l.game, sale, p.now)
		l.price = l.quote.FinalPrice
		if p.voucher != nil && p.voucher.AppliesTo(l.game.PublisherID) {
			l.voucherPercent = p.voucher.DiscountPercent
			l.price = pricing.ApplyVoucher(l.quote.FinalPrice, l.voucherPercent)
			discounted = true
		}
		l.points = loyaltyPoints(&l.game, l.price, rate)

		p.subtotal = p.subtotal.Add(l.quote.FinalPrice)
		p.total = p.total.Add(l.price)
		p.points += l.points
	}
	if p.voucher != nil && !discounted {
		return apperr.New(apperr.KindVoucherNotApplicable, "this voucher does not apply to any game in your cart")
	}
	return nil
}

// loyaltyPoints uses the game's fixed award when set, otherwise rate points
// per whole currency unit paid.
func loyaltyPoints(game *models.Game, paid decimal.Decimal, rate int64) int64 {
	if game.LoyaltyPoints > 0 {
		return game.LoyaltyPoints
	}
	if rate <= 0 || !paid.IsPositive() {
		return 0
	}
	return paid.Floor().IntPart() * rate
}

func (e *Engine) commit(ctx context.Context, p *plan) (*models.Transaction, error) {
	var txn *models.Transaction
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var usage *models.VoucherUsage
		if p.voucher != nil {
			consumed, u, err := voucher.Consume(ctx, tx, p.req.VoucherCode, p.purchaser.ID, p.now)
			if err != nil {
				return err
			}
			if consumed.DiscountPercent != p.voucher.DiscountPercent || !samePublisher(consumed.PublisherID, p.voucher.PublisherID) {
				return apperr.ErrConcurrencyConflict
			}
			usage = u
		}

		if p.req.PaymentMethod == models.PaymentWallet {
			if _, err := wallet.Debit(ctx, tx, p.purchaser.ID, p.total); err != nil {
				return err
			}
		}

		txn = p.transaction()
		if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
			return errors.Wrap(err, "checkout: insert transaction")
		}
		if usage != nil {
			if err := voucher.AttachTransaction(ctx, tx, usage.ID, txn.ID); err != nil {
				return err
			}
		}

		if e.beforeGrant != nil {
			if err := e.beforeGrant(ctx, tx); err != nil {
				return err
			}
		}
		via := models.AcquiredViaPurchase
		if p.gift() {
			via = models.AcquiredViaGift
		}
		if _, err := library.Grant(ctx, tx, p.ownerID(), txn.ID, p.gameIDs, via, p.gift()); err != nil {
			return err
		}

		if p.points > 0 {
			if err := tx.WithContext(ctx).
				Model(&models.User{}).
				Where("id = ?", p.purchaser.ID).
				Update("loyalty_points", gorm.Expr("loyalty_points + ?", p.points)).Error; err != nil {
				return errors.Wrap(err, "checkout: credit loyalty points")
			}
		}
		return nil
	}, db.TxOptions(e.db))
	if errTx != nil {
		var appErr *apperr.Error
		if errors.As(errTx, &appErr) {
			return nil, errTx
		}
		return nil, errors.Wrap(errTx, "checkout: commit")
	}

	txn.Recipient = p.recipient
	return txn, nil
}

// transaction builds the record with every price snapshotted from the plan.
func (p *plan) transaction() *models.Transaction {
	txn := &models.Transaction{
		Reference:     uuid.NewString(),
		UserID:        p.purchaser.ID,
		Subtotal:      p.subtotal,
		DiscountTotal: p.subtotal.Sub(p.total),
		Total:         p.total,
		Status:        models.TransactionStatusCompleted,
		PaymentMethod: p.req.PaymentMethod,
		PointsEarned:  p.points,
		Items:         make([]models.TransactionItem, 0, len(p.lines)),
	}
	if p.recipient != nil {
		id := p.recipient.ID
		txn.RecipientID = &id
	}
	if p.voucher != nil {
		id := p.voucher.ID
		txn.VoucherID = &id
		txn.VoucherCode = p.voucher.Code
	}
	for _, l := range p.lines {
		txn.Items = append(txn.Items, models.TransactionItem{
			GameID:          l.game.ID,
			Title:           l.game.Title,
			OriginalPrice:   l.quote.OriginalPrice,
			DiscountPercent: l.quote.DiscountPercent,
			VoucherPercent:  l.voucherPercent,
			Price:           l.price,
		})
	}
	return txn
}

func (e *Engine) findUser(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	res := e.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "checkout: load user %d", id)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &user, nil
}

func samePublisher(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func enter(span trace.Span, phase Phase) {
	span.AddEvent("checkout.phase", trace.WithAttributes(attribute.String("phase", string(phase))))
}

func kindLabel(kind string) string {
	if kind == "" {
		return "internal"
	}
	return kind
}
