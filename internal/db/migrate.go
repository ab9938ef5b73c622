package db

import (
	"fmt"

	"github.com/playvault/storefront/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the storefront owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Setting{},
		&models.User{},
		&models.Publisher{},
		&models.Game{},
		&models.SaleEvent{},
		&models.Voucher{},
		&models.VoucherUsage{},
		&models.Transaction{},
		&models.TransactionItem{},
		&models.LibraryEntry{},
		&models.Notification{},
		&models.Activity{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
