package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/checkout"
	"github.com/playvault/storefront/internal/models"
)

// TransactionHandler exposes checkout and purchase history.
type TransactionHandler struct {
	engine *checkout.Engine
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(engine *checkout.Engine) *TransactionHandler {
	return &TransactionHandler{engine: engine}
}

// createTransactionRequest is the checkout body. Prices are never accepted
// from the client.
type createTransactionRequest struct {
	GameIDs       []uint64 `json:"gameIds"`
	RecipientID   *uint64  `json:"recipientId"`
	VoucherCode   string   `json:"voucherCode"`
	PaymentMethod string   `json:"paymentMethod"`
}

// Create runs a checkout for the current user.
func (h *TransactionHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body createTransactionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondMessage(c, http.StatusBadRequest, "invalid json")
		return
	}
	recipientID := body.RecipientID
	if recipientID != nil && *recipientID == 0 {
		recipientID = nil
	}

	txn, err := h.engine.Checkout(c.Request.Context(), checkout.Request{
		PurchaserID:   userID,
		GameIDs:       body.GameIDs,
		RecipientID:   recipientID,
		VoucherCode:   body.VoucherCode,
		PaymentMethod: models.PaymentMethod(body.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, toTransactionDTO(txn))
}

// List returns the user's purchases and received gifts.
func (h *TransactionHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, size := parsePage(c)
	rows, total, err := h.engine.History(c.Request.Context(), userID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]transactionDTO, 0, len(rows))
	for i := range rows {
		items = append(items, toTransactionDTO(&rows[i]))
	}
	respondOK(c, http.StatusOK, gin.H{"items": items, "total": total})
}

// Get returns one transaction.
func (h *TransactionHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.engine.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toTransactionDTO(txn))
}
