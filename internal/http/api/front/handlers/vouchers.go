package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/voucher"
	"gorm.io/gorm"
)

// VoucherHandler previews voucher codes.
type VoucherHandler struct {
	db *gorm.DB
}

// NewVoucherHandler constructs a VoucherHandler.
func NewVoucherHandler(db *gorm.DB) *VoucherHandler {
	return &VoucherHandler{db: db}
}

type validateVoucherRequest struct {
	Code string `json:"code"`
}

// Validate checks a code for the current user without redeeming it.
func (h *VoucherHandler) Validate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body validateVoucherRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondMessage(c, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := voucher.Validate(c.Request.Context(), h.db, body.Code, userID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"code":            v.Code,
		"discountPercent": v.DiscountPercent,
		"expiresAt":       v.ExpiresAt,
		"publisherId":     v.PublisherID,
		"remainingUses":   v.MaxUses - v.UsedCount,
	})
}
