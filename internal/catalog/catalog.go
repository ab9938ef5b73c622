// Package catalog reads games and sale events and attaches resolved prices.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/pricing"
	"gorm.io/gorm"
)

// Listing is a game together with its current price.
type Listing struct {
	Game  models.Game
	Quote pricing.Quote
	Sale  *models.SaleEvent
}

// ActiveSale loads the sale events whose window contains now and returns the
// one that applies, or nil.
func ActiveSale(ctx context.Context, db *gorm.DB, now time.Time) (*models.SaleEvent, error) {
	var events []models.SaleEvent
	if err := db.WithContext(ctx).
		Where("is_active = ? AND starts_at <= ? AND ends_at >= ?", true, now, now).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("catalog: load sale events: %w", err)
	}
	return pricing.PickSale(events, now), nil
}

// FindGames loads the requested games keyed by id and returns the ids that do
// not exist, in request order.
func FindGames(ctx context.Context, db *gorm.DB, ids []uint64) (map[uint64]models.Game, []uint64, error) {
	found := make(map[uint64]models.Game, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}
	var games []models.Game
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&games).Error; err != nil {
		return nil, nil, fmt.Errorf("catalog: load games: %w", err)
	}
	for _, g := range games {
		found[g.ID] = g
	}
	var missing []uint64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

// List returns a page of games ordered by id with prices resolved against the
// sale active at now.
func List(ctx context.Context, db *gorm.DB, now time.Time, page, size int) ([]Listing, int64, error) {
	page, size = NormalizePage(page, size)

	var total int64
	if err := db.WithContext(ctx).Model(&models.Game{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("catalog: count games: %w", err)
	}
	var games []models.Game
	if err := db.WithContext(ctx).
		Preload("Publisher").
		Order("id ASC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&games).Error; err != nil {
		return nil, 0, fmt.Errorf("catalog: list games: %w", err)
	}
	sale, err := ActiveSale(ctx, db, now)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Listing, 0, len(games))
	for _, g := range games {
		out = append(out, Listing{Game: g, Quote: pricing.Resolve(&g, sale, now), Sale: sale})
	}
	return out, total, nil
}

// Get returns one game with its current price.
func Get(ctx context.Context, db *gorm.DB, id uint64, now time.Time) (*Listing, error) {
	var game models.Game
	res := db.WithContext(ctx).Preload("Publisher").Where("id = ?", id).Limit(1).Find(&game)
	if res.Error != nil {
		return nil, fmt.Errorf("catalog: load game: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.GameNotFound([]uint64{id})
	}
	sale, err := ActiveSale(ctx, db, now)
	if err != nil {
		return nil, err
	}
	return &Listing{Game: game, Quote: pricing.Resolve(&game, sale, now), Sale: sale}, nil
}

// UniqueIDs drops duplicates while keeping first-seen order.
func UniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NormalizePage clamps pagination input.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
