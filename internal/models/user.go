package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a storefront account. Identities are issued by the external auth
// service; this row carries the wallet and loyalty state owned by checkout.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username    string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	DisplayName string `gorm:"type:text"`                      // Name shown to friends and gift recipients.

	WalletBalance decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Stored-value balance, never negative.
	WalletVersion int64           `gorm:"not null;default:0"`                    // Bumped on every wallet mutation.
	LoyaltyPoints int64           `gorm:"not null;default:0"`                    // Accrued loyalty points.

	Disabled bool `gorm:"not null;default:false"` // Disabled accounts cannot authenticate.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
