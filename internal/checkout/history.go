package checkout

import (
	"context"

	"github.com/pkg/errors"
	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/catalog"
	"github.com/playvault/storefront/internal/models"
)

// History returns a page of transactions the user bought or received, newest first.
func (e *Engine) History(ctx context.Context, userID uint64, page, size int) ([]models.Transaction, int64, error) {
	page, size = catalog.NormalizePage(page, size)
	scope := e.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ? OR recipient_id = ?", userID, userID)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "checkout: count transactions")
	}
	var rows []models.Transaction
	if err := e.db.WithContext(ctx).
		Preload("Items").
		Preload("Recipient").
		Where("user_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error; err != nil {
		return nil, 0, errors.Wrap(err, "checkout: list transactions")
	}
	return rows, total, nil
}

// Get returns one transaction visible to the user as purchaser or recipient.
func (e *Engine) Get(ctx context.Context, userID, id uint64) (*models.Transaction, error) {
	var txn models.Transaction
	res := e.db.WithContext(ctx).
		Preload("Items").
		Preload("Recipient").
		Where("id = ? AND (user_id = ? OR recipient_id = ?)", id, userID, userID).
		Limit(1).
		Find(&txn)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "checkout: load transaction")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Newf(apperr.KindTransactionNotFound, "transaction %d not found", id)
	}
	return &txn, nil
}
