package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/notify"
)

// NotificationHandler lists inbox notifications.
type NotificationHandler struct {
	inbox *notify.GormSink
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(inbox *notify.GormSink) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List returns the latest notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.inbox.Notifications(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, n := range rows {
		items = append(items, gin.H{
			"id":        n.ID,
			"kind":      n.Kind,
			"message":   n.Message,
			"readAt":    n.ReadAt,
			"createdAt": n.CreatedAt,
		})
	}
	respondOK(c, http.StatusOK, gin.H{"items": items})
}
