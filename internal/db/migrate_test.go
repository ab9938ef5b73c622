package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/playvault/storefront/internal/models"
	"github.com/shopspring/decimal"
)

func TestMigrateCreatesUniqueOwnershipIndexes(t *testing.T) {
	conn, errOpen := Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, idx := range []struct {
		table string
		name  string
	}{
		{"library_entries", "idx_library_entries_user_game"},
		{"voucher_usages", "idx_voucher_usages_voucher_user"},
		{"vouchers", "idx_vouchers_code"},
	} {
		if !conn.Migrator().HasIndex(idx.table, idx.name) {
			t.Fatalf("%s missing index %s", idx.table, idx.name)
		}
	}
	for _, column := range []string{"wallet_balance", "wallet_version", "loyalty_points"} {
		if !conn.Migrator().HasColumn(&models.User{}, column) {
			t.Fatalf("users missing column %s", column)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, errOpen := Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i+1, errMigrate)
		}
	}
}

func TestIsUniqueViolationOnDuplicateLibraryEntry(t *testing.T) {
	conn, errOpen := Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	user := models.User{Username: "owner"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	game := models.Game{Title: "Hollow Depths", BasePrice: decimal.NewFromInt(20)}
	if errCreate := conn.Create(&game).Error; errCreate != nil {
		t.Fatalf("create game: %v", errCreate)
	}

	first := models.LibraryEntry{UserID: user.ID, GameID: game.ID, TransactionID: 1, AcquiredVia: models.AcquiredViaPurchase}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first entry: %v", errCreate)
	}
	second := models.LibraryEntry{UserID: user.ID, GameID: game.ID, TransactionID: 2, AcquiredVia: models.AcquiredViaPurchase}
	errCreate := conn.Create(&second).Error
	if errCreate == nil {
		t.Fatalf("expected duplicate ownership to fail")
	}
	if !IsUniqueViolation(errCreate) {
		t.Fatalf("expected unique violation, got %v", errCreate)
	}
}

func TestOpenPicksDialectFromDSN(t *testing.T) {
	dir := t.TempDir()
	for _, dsn := range []string{
		":memory:",
		"file:" + filepath.Join(dir, "file.db"),
		"sqlite://" + filepath.Join(dir, "scheme.db"),
		"SQLite://" + filepath.Join(dir, "upper.db"),
	} {
		conn, errOpen := Open(dsn)
		if errOpen != nil {
			t.Fatalf("open %q: %v", dsn, errOpen)
		}
		if got := DialectName(conn); got != DialectSQLite {
			t.Fatalf("open %q: expected %s, got %s", dsn, DialectSQLite, got)
		}
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}
	if _, errStat := os.Stat(filepath.Join(dir, "scheme.db")); errStat != nil {
		t.Fatalf("expected sqlite:// dsn to create the file: %v", errStat)
	}
	if _, errOpen := Open("mysql://root@localhost/x"); errOpen == nil {
		t.Fatalf("expected mysql dsn to be rejected")
	}
}
