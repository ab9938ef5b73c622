package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/notify"
	"github.com/playvault/storefront/internal/wallet"
	"github.com/shopspring/decimal"
)

// WalletHandler reads balances and handles simulated card top-ups.
type WalletHandler struct {
	ledger     *wallet.Ledger
	maxTopUp   decimal.Decimal
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
}

// NewWalletHandler constructs a WalletHandler. notifier and dispatcher may be nil.
func NewWalletHandler(ledger *wallet.Ledger, maxTopUp decimal.Decimal, notifier notify.Notifier, dispatcher *notify.Dispatcher) *WalletHandler {
	return &WalletHandler{ledger: ledger, maxTopUp: maxTopUp, notifier: notifier, dispatcher: dispatcher}
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Get returns the current balance.
func (h *WalletHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"balance": money(balance)})
}

// TopUp credits the wallet.
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body topUpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondMessage(c, http.StatusBadRequest, "invalid json")
		return
	}
	if h.maxTopUp.IsPositive() && body.Amount.GreaterThan(h.maxTopUp) {
		respondError(c, apperr.Newf(apperr.KindInvalidAmount, "a single top-up cannot exceed %s", h.maxTopUp.StringFixed(2)))
		return
	}
	balance, err := h.ledger.Credit(c.Request.Context(), userID, body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.notifier != nil && h.dispatcher != nil {
		message := fmt.Sprintf("Your wallet was topped up with %s. New balance: %s", body.Amount.Round(2).StringFixed(2), balance.StringFixed(2))
		notifier := h.notifier
		h.dispatcher.Dispatch(c.Request.Context(), "wallet top-up", func(ctx context.Context) error {
			return notifier.Notify(ctx, userID, message, notify.KindWalletTopUp)
		})
	}
	respondOK(c, http.StatusOK, gin.H{"balance": money(balance)})
}
