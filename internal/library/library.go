// Package library is the ownership ledger: which user owns which game.
package library

import (
	"context"
	"fmt"

	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/models"
	"gorm.io/gorm"
)

const grantSavePoint = "library_grant"

// Owned returns the subset of gameIDs that userID already owns.
func Owned(ctx context.Context, conn *gorm.DB, userID uint64, gameIDs []uint64) ([]uint64, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	var owned []uint64
	if err := conn.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Where("user_id = ? AND game_id IN ?", userID, gameIDs).
		Order("game_id ASC").
		Pluck("game_id", &owned).Error; err != nil {
		return nil, fmt.Errorf("library: load owned games: %w", err)
	}
	return owned, nil
}

// Grant inserts one entry per game for ownerID inside the caller's
// transaction. The (user, game) unique index is the authoritative ownership
// guard: a violation means another checkout granted the game first, and the
// error names only the games that collided.
func Grant(ctx context.Context, tx *gorm.DB, ownerID, transactionID uint64, gameIDs []uint64, via string, gift bool) ([]models.LibraryEntry, error) {
	entries := make([]models.LibraryEntry, 0, len(gameIDs))
	for _, gameID := range gameIDs {
		entries = append(entries, models.LibraryEntry{
			UserID:        ownerID,
			GameID:        gameID,
			TransactionID: transactionID,
			AcquiredVia:   via,
		})
	}
	if len(entries) == 0 {
		return entries, nil
	}
	session := tx.WithContext(ctx)
	if err := session.SavePoint(grantSavePoint).Error; err != nil {
		return nil, fmt.Errorf("library: savepoint: %w", err)
	}
	if err := session.Create(&entries).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.AlreadyOwnedRace(conflicting(ctx, session, ownerID, gameIDs), gift)
		}
		return nil, fmt.Errorf("library: grant games: %w", err)
	}
	return entries, nil
}

// conflicting rewinds a failed grant and returns the games ownerID already
// holds. Postgres refuses further statements in a failed transaction until the
// savepoint is restored. Falls back to every requested game.
func conflicting(ctx context.Context, tx *gorm.DB, ownerID uint64, gameIDs []uint64) []uint64 {
	if err := tx.RollbackTo(grantSavePoint).Error; err != nil {
		return gameIDs
	}
	owned, err := Owned(ctx, tx, ownerID, gameIDs)
	if err != nil || len(owned) == 0 {
		return gameIDs
	}
	return owned
}

// List returns a page of the user's library, newest first, with games loaded.
func List(ctx context.Context, conn *gorm.DB, userID uint64, page, size int) ([]models.LibraryEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 50
	}
	q := conn.WithContext(ctx).Model(&models.LibraryEntry{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("library: count: %w", err)
	}
	var entries []models.LibraryEntry
	if err := conn.WithContext(ctx).
		Preload("Game").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("library: list: %w", err)
	}
	return entries, total, nil
}
