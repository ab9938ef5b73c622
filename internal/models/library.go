package models

import "time"

// Acquisition channels for library entries.
const (
	AcquiredViaPurchase = "PURCHASE"
	AcquiredViaGift     = "GIFT"
)

// LibraryEntry records that a user owns a game. A user owns a game at most once.
type LibraryEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_library_entries_user_game"`       // Owner.
	GameID uint64 `gorm:"not null;uniqueIndex:idx_library_entries_user_game;index"` // Owned game.
	Game   *Game  `gorm:"foreignKey:GameID"`                                        // Owned game record.

	TransactionID uint64 `gorm:"not null;index"`     // Granting transaction.
	AcquiredVia   string `gorm:"type:text;not null"` // PURCHASE or GIFT.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Grant timestamp.
}
