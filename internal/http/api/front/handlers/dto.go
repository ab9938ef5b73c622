package handlers

import (
	"time"

	"github.com/playvault/storefront/internal/catalog"
	"github.com/playvault/storefront/internal/models"
)

// transactionItemDTO is one purchased line with its snapshotted prices.
type transactionItemDTO struct {
	GameID          uint64  `json:"gameId"`
	Title           string  `json:"title"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountPercent int     `json:"discountPercent"`
	VoucherPercent  int     `json:"voucherPercent"`
	Price           float64 `json:"price"`
}

// transactionDTO is the transaction response payload.
type transactionDTO struct {
	ID            uint64               `json:"id"`
	Reference     string               `json:"reference"`
	UserID        uint64               `json:"userId"`
	RecipientID   *uint64              `json:"recipientId,omitempty"`
	RecipientName string               `json:"recipientName,omitempty"`
	IsGift        bool                 `json:"isGift"`
	Subtotal      float64              `json:"subtotal"`
	DiscountTotal float64              `json:"discountTotal"`
	Total         float64              `json:"total"`
	Status        string               `json:"status"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	VoucherCode   string               `json:"voucherCode,omitempty"`
	PointsEarned  int64                `json:"pointsEarned"`
	CreatedAt     time.Time            `json:"createdAt"`
	Items         []transactionItemDTO `json:"items"`
}

func toTransactionDTO(t *models.Transaction) transactionDTO {
	out := transactionDTO{
		ID:            t.ID,
		Reference:     t.Reference,
		UserID:        t.UserID,
		RecipientID:   t.RecipientID,
		IsGift:        t.IsGift(),
		Subtotal:      money(t.Subtotal),
		DiscountTotal: money(t.DiscountTotal),
		Total:         money(t.Total),
		Status:        t.Status,
		PaymentMethod: t.PaymentMethod,
		VoucherCode:   t.VoucherCode,
		PointsEarned:  t.PointsEarned,
		CreatedAt:     t.CreatedAt,
		Items:         make([]transactionItemDTO, 0, len(t.Items)),
	}
	if t.Recipient != nil {
		out.RecipientName = t.Recipient.Name()
	}
	for _, item := range t.Items {
		out.Items = append(out.Items, transactionItemDTO{
			GameID:          item.GameID,
			Title:           item.Title,
			OriginalPrice:   money(item.OriginalPrice),
			DiscountPercent: item.DiscountPercent,
			VoucherPercent:  item.VoucherPercent,
			Price:           money(item.Price),
		})
	}
	return out
}

// saleDTO describes the storewide sale applied to a price.
type saleDTO struct {
	Name            string    `json:"name"`
	DiscountPercent int       `json:"discountPercent"`
	EndsAt          time.Time `json:"endsAt"`
}

// gameDTO is a catalog entry with its resolved price.
type gameDTO struct {
	ID              uint64     `json:"id"`
	Title           string     `json:"title"`
	Publisher       string     `json:"publisher,omitempty"`
	BasePrice       float64    `json:"basePrice"`
	DiscountPercent int        `json:"discountPercent"`
	FinalPrice      float64    `json:"finalPrice"`
	IsFree          bool       `json:"isFree"`
	FlashSaleEndsAt *time.Time `json:"flashSaleEndsAt,omitempty"`
	Sale            *saleDTO   `json:"sale,omitempty"`
}

func toGameDTO(l *catalog.Listing) gameDTO {
	out := gameDTO{
		ID:              l.Game.ID,
		Title:           l.Game.Title,
		BasePrice:       money(l.Quote.OriginalPrice),
		DiscountPercent: l.Quote.DiscountPercent,
		FinalPrice:      money(l.Quote.FinalPrice),
		IsFree:          l.Quote.IsFree,
		FlashSaleEndsAt: l.Game.FlashSaleEndsAt,
	}
	if l.Game.Publisher != nil {
		out.Publisher = l.Game.Publisher.Name
	}
	if l.Sale != nil {
		out.Sale = &saleDTO{Name: l.Sale.Name, DiscountPercent: l.Sale.DiscountPercent, EndsAt: l.Sale.EndsAt}
	}
	return out
}
