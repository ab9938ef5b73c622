package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/apperr"
	"github.com/playvault/storefront/internal/logging"
	"github.com/shopspring/decimal"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// respondOK writes the success envelope.
func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondMessage writes a failure envelope without a business kind.
func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// respondError maps err to a status and failure envelope. Infrastructure
// errors are logged and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).WithError(err).Error("request failed")
		_ = c.Error(err)
		respondMessage(c, status, "internal server error")
		return
	}
	body := gin.H{"success": false, "error": err.Error(), "kind": apperr.KindOf(err)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.GameIDs) > 0 {
		body["gameIds"] = appErr.GameIDs
	}
	c.JSON(status, body)
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		respondMessage(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// parsePage reads page and pageSize query parameters.
func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, size
}

// money converts an amount for JSON output.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
