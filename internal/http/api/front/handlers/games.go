package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/catalog"
	"gorm.io/gorm"
)

// GameHandler serves the public catalog with current prices.
type GameHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGameHandler constructs a GameHandler.
func NewGameHandler(db *gorm.DB) *GameHandler {
	return &GameHandler{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// List returns a page of games.
func (h *GameHandler) List(c *gin.Context) {
	page, size := parsePage(c)
	listings, total, err := catalog.List(c.Request.Context(), h.db, h.now(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]gameDTO, 0, len(listings))
	for i := range listings {
		items = append(items, toGameDTO(&listings[i]))
	}
	respondOK(c, http.StatusOK, gin.H{"items": items, "total": total})
}

// Get returns one game.
func (h *GameHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	listing, err := catalog.Get(c.Request.Context(), h.db, id, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toGameDTO(listing))
}
