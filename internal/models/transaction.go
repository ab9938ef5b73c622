package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod selects how a checkout is paid.
type PaymentMethod string

// Supported payment methods. Card payments are simulated.
const (
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentWallet     PaymentMethod = "WALLET"
)

// Valid reports whether the method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCreditCard || m == PaymentWallet
}

// TransactionStatusCompleted is the only persisted status; failed checkouts leave no row.
const TransactionStatusCompleted = "COMPLETED"

// Transaction is the append-only financial record of one checkout.
type Transaction struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`       // Primary key.
	Reference string `gorm:"type:text;not null;uniqueIndex"` // Public reference for support and logs.

	UserID      uint64  `gorm:"not null;index"`        // Purchaser.
	RecipientID *uint64 `gorm:"index"`                 // Gift recipient, if any.
	Recipient   *User   `gorm:"foreignKey:RecipientID"` // Gift recipient record.

	Subtotal      decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Sum of sale-priced lines before the voucher.
	DiscountTotal decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Voucher savings.
	Total         decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Amount charged.

	Status        string        `gorm:"type:text;not null"` // Always COMPLETED once persisted.
	PaymentMethod PaymentMethod `gorm:"type:text;not null"` // CREDIT_CARD or WALLET.

	VoucherID   *uint64 `gorm:"index"`     // Redeemed voucher, if any.
	VoucherCode string  `gorm:"type:text"` // Code snapshot.

	PointsEarned int64 `gorm:"not null;default:0"` // Loyalty points credited to the purchaser.

	Items []TransactionItem `gorm:"foreignKey:TransactionID"` // Line items.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Commit timestamp.
}

// IsGift reports whether ownership went to someone other than the purchaser.
func (t *Transaction) IsGift() bool {
	return t != nil && t.RecipientID != nil
}

// OwnerID returns the user who received ownership.
func (t *Transaction) OwnerID() uint64 {
	if t.IsGift() {
		return *t.RecipientID
	}
	return t.UserID
}

// TransactionItem is one purchased game with its snapshotted prices.
type TransactionItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TransactionID uint64 `gorm:"not null;index"` // Owning transaction.
	GameID        uint64 `gorm:"not null;index"` // Purchased game.

	Title           string          `gorm:"type:text;not null"`          // Title snapshot.
	OriginalPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Base price snapshot.
	DiscountPercent int             `gorm:"not null;default:0"`          // Publisher+sale discount applied, capped at 100.
	VoucherPercent  int             `gorm:"not null;default:0"`          // Voucher discount applied on top.
	Price           decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Final price paid.
}
