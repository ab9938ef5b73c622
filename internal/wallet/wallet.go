// Package wallet keeps per-user stored-value balances.
package wallet

import (
	"context"
	"fmt"

	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger reads and mutates wallet balances. Every mutation reads the row and
// writes it back guarded by wallet_version, so a concurrent writer turns into
// a ConcurrencyConflict instead of a lost update.
type Ledger struct {
	db *gorm.DB
}

// NewLedger returns a ledger over db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	user, err := loadUser(ctx, l.db, userID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

// Credit tops up the wallet in its own transaction and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, userID uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "top-up amount must be greater than zero")
	}
	var balance decimal.Decimal
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		balance = user.WalletBalance.Add(amount)
		return writeBalance(ctx, tx, user, balance)
	}, db.TxOptions(l.db))
	if errTx != nil {
		return decimal.Zero, errTx
	}
	return balance, nil
}

// Debit withdraws amount from the user's wallet inside the caller's
// transaction and returns the new balance. It fails with InsufficientFunds,
// leaving the balance untouched, when the balance does not cover amount.
func Debit(ctx context.Context, tx *gorm.DB, userID uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperr.New(apperr.KindInvalidAmount, "debit amount must not be negative")
	}
	user, err := loadUser(ctx, tx, userID, true)
	if err != nil {
		return decimal.Zero, err
	}
	if user.WalletBalance.LessThan(amount) {
		return decimal.Zero, apperr.Newf(apperr.KindInsufficientFunds,
			"insufficient wallet balance: %s available, %s required",
			user.WalletBalance.StringFixed(2), amount.StringFixed(2))
	}
	if amount.IsZero() {
		return user.WalletBalance, nil
	}
	balance := user.WalletBalance.Sub(amount)
	if err := writeBalance(ctx, tx, user, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func loadUser(ctx context.Context, conn *gorm.DB, userID uint64, lock bool) (*models.User, error) {
	q := conn.WithContext(ctx)
	if lock {
		q = db.ForUpdate(q)
	}
	var user models.User
	res := q.Select("id", "wallet_balance", "wallet_version").Where("id = ?", userID).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, fmt.Errorf("wallet: load user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Newf(apperr.KindUserNotFound, "user %d not found", userID)
	}
	return &user, nil
}

func writeBalance(ctx context.Context, tx *gorm.DB, user *models.User, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return apperr.New(apperr.KindInsufficientFunds, "insufficient wallet balance")
	}
	res := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND wallet_version = ?", user.ID, user.WalletVersion).
		Updates(map[string]any{
			"wallet_balance": balance,
			"wallet_version": gorm.Expr("wallet_version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("wallet: update user %d: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConcurrencyConflict
	}
	user.WalletBalance = balance
	user.WalletVersion++
	return nil
}
