// Package voucher validates and redeems discount codes.
package voucher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/models"
	"gorm.io/gorm"
)

// NormalizeCode trims and upper-cases a code the way it is stored.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that code can be redeemed by userID at now without
// consuming it. The first failing check wins: not found, inactive, expired,
// exhausted, already used by this user.
func Validate(ctx context.Context, conn *gorm.DB, code string, userID uint64, now time.Time) (*models.Voucher, error) {
	v, err := lookup(ctx, conn, code, false)
	if err != nil {
		return nil, err
	}
	if err := check(v, now); err != nil {
		return nil, err
	}
	if err := checkUnused(ctx, conn, v.ID, userID); err != nil {
		return nil, err
	}
	return v, nil
}

// Consume repeats the validation inside tx and then redeems the code: the
// global counter moves only while it is below the cap and the per-user usage
// row is guarded by its unique index. Either guard failing means a concurrent
// checkout took the redemption first.
func Consume(ctx context.Context, tx *gorm.DB, code string, userID uint64, now time.Time) (*models.Voucher, *models.VoucherUsage, error) {
	v, err := lookup(ctx, tx, code, true)
	if err != nil {
		return nil, nil, err
	}
	if err := check(v, now); err != nil {
		return nil, nil, err
	}
	if err := checkUnused(ctx, tx, v.ID, userID); err != nil {
		return nil, nil, err
	}

	res := tx.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND used_count < max_uses", v.ID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, nil, fmt.Errorf("voucher: increment usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, exhausted()
	}

	usage := &models.VoucherUsage{VoucherID: v.ID, UserID: userID}
	if errCreate := tx.WithContext(ctx).Create(usage).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return nil, nil, alreadyUsed()
		}
		return nil, nil, fmt.Errorf("voucher: record usage: %w", errCreate)
	}
	v.UsedCount++
	return v, usage, nil
}

// AttachTransaction links a usage row to the checkout that consumed it.
func AttachTransaction(ctx context.Context, tx *gorm.DB, usageID, transactionID uint64) error {
	if err := tx.WithContext(ctx).
		Model(&models.VoucherUsage{}).
		Where("id = ?", usageID).
		Update("transaction_id", transactionID).Error; err != nil {
		return fmt.Errorf("voucher: link usage: %w", err)
	}
	return nil
}

func lookup(ctx context.Context, conn *gorm.DB, code string, lock bool) (*models.Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, notFound()
	}
	q := conn.WithContext(ctx)
	if lock {
		q = db.ForUpdate(q)
	}
	var v models.Voucher
	res := q.Where("code = ?", code).Limit(1).Find(&v)
	if res.Error != nil {
		return nil, fmt.Errorf("voucher: load %s: %w", code, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound()
	}
	return &v, nil
}

func check(v *models.Voucher, now time.Time) error {
	if !v.IsActive {
		return apperr.New(apperr.KindVoucherInactive, "this voucher is no longer active")
	}
	if now.After(v.ExpiresAt) {
		return apperr.New(apperr.KindVoucherExpired, "this voucher has expired")
	}
	if v.UsedCount >= v.MaxUses {
		return exhausted()
	}
	return nil
}

func checkUnused(ctx context.Context, conn *gorm.DB, voucherID, userID uint64) error {
	var n int64
	if err := conn.WithContext(ctx).
		Model(&models.VoucherUsage{}).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		Count(&n).Error; err != nil {
		return fmt.Errorf("voucher: check usage: %w", err)
	}
	if n > 0 {
		return alreadyUsed()
	}
	return nil
}

func notFound() error {
	return apperr.New(apperr.KindVoucherNotFound, "voucher code not found")
}

func exhausted() error {
	return apperr.New(apperr.KindVoucherExhausted, "this voucher has reached its usage limit")
}

func alreadyUsed() error {
	return apperr.New(apperr.KindVoucherAlreadyUsed, "you have already used this voucher")
}
