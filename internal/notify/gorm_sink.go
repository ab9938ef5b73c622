package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playvault/storefront/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormSink stores notifications and activity entries in the database.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink returns a sink writing to db.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Notify implements Notifier.
func (s *GormSink) Notify(ctx context.Context, userID uint64, message, kind string) error {
	row := models.Notification{UserID: userID, Kind: kind, Message: message}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("notify: store notification: %w", err)
	}
	return nil
}

// LogActivity implements ActivityLogger.
func (s *GormSink) LogActivity(ctx context.Context, userID uint64, kind, message string, metadata map[string]any) error {
	row := models.Activity{UserID: userID, Kind: kind, Message: message}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("notify: encode activity metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("notify: store activity: %w", err)
	}
	return nil
}

// Notifications returns the user's latest notifications, newest first.
func (s *GormSink) Notifications(ctx context.Context, userID uint64, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	return rows, nil
}
