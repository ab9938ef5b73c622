package models

import "time"

// Voucher is a discount code redeemed at checkout.
type Voucher struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code            string    `gorm:"type:text;not null;uniqueIndex"` // Upper-cased redemption code.
	DiscountPercent int       `gorm:"not null"`                       // Discount applied after sale pricing, 0-100.
	MaxUses         int       `gorm:"not null;default:1"`             // Global redemption cap.
	UsedCount       int       `gorm:"not null;default:0"`             // Redemptions so far, never above MaxUses.
	ExpiresAt       time.Time `gorm:"not null"`                       // Last instant the code is redeemable.
	IsActive        bool      `gorm:"not null;default:true"`          // Whether the code can be redeemed.

	PublisherID *uint64 `gorm:"index"` // Issuing publisher; nil for global vouchers.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AppliesTo reports whether the voucher discounts a game from the given publisher.
func (v *Voucher) AppliesTo(publisherID *uint64) bool {
	if v == nil {
		return false
	}
	if v.PublisherID == nil {
		return true
	}
	return publisherID != nil && *publisherID == *v.PublisherID
}

// VoucherUsage records that a user redeemed a voucher. Its existence is the
// only source of truth for "already used".
type VoucherUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VoucherID     uint64  `gorm:"not null;uniqueIndex:idx_voucher_usages_voucher_user"`       // Redeemed voucher.
	UserID        uint64  `gorm:"not null;uniqueIndex:idx_voucher_usages_voucher_user;index"` // Redeeming user.
	TransactionID *uint64 `gorm:"index"`                                                      // Checkout that consumed it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Redemption timestamp.
}
