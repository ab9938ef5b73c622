package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/library"
	"gorm.io/gorm"
)

// LibraryHandler lists owned games.
type LibraryHandler struct {
	db *gorm.DB
}

// NewLibraryHandler constructs a LibraryHandler.
func NewLibraryHandler(db *gorm.DB) *LibraryHandler {
	return &LibraryHandler{db: db}
}

type libraryEntryDTO struct {
	GameID        uint64    `json:"gameId"`
	Title         string    `json:"title"`
	AcquiredVia   string    `json:"acquiredVia"`
	TransactionID uint64    `json:"transactionId"`
	AcquiredAt    time.Time `json:"acquiredAt"`
}

// List returns the user's library.
func (h *LibraryHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	page, size := parsePage(c)
	entries, total, err := library.List(c.Request.Context(), h.db, userID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]libraryEntryDTO, 0, len(entries))
	for _, e := range entries {
		dto := libraryEntryDTO{GameID: e.GameID, AcquiredVia: e.AcquiredVia, TransactionID: e.TransactionID, AcquiredAt: e.CreatedAt}
		if e.Game != nil {
			dto.Title = e.Game.Title
		}
		items = append(items, dto)
	}
	respondOK(c, http.StatusOK, gin.H{"items": items, "total": total})
}
