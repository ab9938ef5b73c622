package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a message delivered to a user's inbox.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64     `gorm:"not null;index"`     // Recipient.
	Kind    string     `gorm:"type:text;not null"` // Notification kind.
	Message string     `gorm:"type:text;not null"` // Human-readable text.
	ReadAt  *time.Time // When the user read it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// Activity is an entry in a user's activity feed.
type Activity struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64         `gorm:"not null;index"`     // Acting user.
	Kind     string         `gorm:"type:text;not null"` // Activity kind.
	Message  string         `gorm:"type:text;not null"` // Human-readable text.
	Metadata datatypes.JSON `gorm:"type:jsonb"`         // Structured details.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
