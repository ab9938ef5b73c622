package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Publisher owns games and may issue its own vouchers.
type Publisher struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null;uniqueIndex"` // Publisher display name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Game is a catalog entry.
type Game struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublisherID *uint64    `gorm:"index"`                  // Owning publisher.
	Publisher   *Publisher `gorm:"foreignKey:PublisherID"` // Owning publisher record.

	Title           string          `gorm:"type:text;not null"`                    // Display title.
	BasePrice       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // List price before any discount.
	DiscountPercent int             `gorm:"not null;default:0"`                    // Publisher discount, 0-100.
	FlashSaleEndsAt *time.Time      // When set, the publisher discount ends at this instant.
	LoyaltyPoints   int64           `gorm:"not null;default:0"` // Fixed points per purchase; 0 derives points from price.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// SaleEvent is a storewide, time-bounded discount.
type SaleEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name            string    `gorm:"type:text;not null"`           // Event name.
	DiscountPercent int       `gorm:"not null;default:0"`           // Storewide discount, 0-100.
	StartsAt        time.Time `gorm:"not null;index"`               // Window start, inclusive.
	EndsAt          time.Time `gorm:"not null;index"`               // Window end, inclusive.
	IsActive        bool      `gorm:"not null;default:true"`        // Manual kill switch.
	CreatedAt       time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp, used for tie-breaks.
}

// Covers reports whether the event is enabled and its window contains now.
func (e *SaleEvent) Covers(now time.Time) bool {
	if e == nil || !e.IsActive {
		return false
	}
	return !now.Before(e.StartsAt) && !now.After(e.EndsAt)
}
