package front

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/checkout"
	"github.com/playvault/storefront/internal/config"
	"github.com/playvault/storefront/internal/http/api/front/handlers"
	"github.com/playvault/storefront/internal/idempotency"
	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/notify"
	"github.com/playvault/storefront/internal/security"
	"github.com/playvault/storefront/internal/wallet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Deps bundles the services behind the storefront routes.
type Deps struct {
	DB          *gorm.DB
	JWT         config.JWTConfig
	Engine      *checkout.Engine
	Inbox       *notify.GormSink
	Notifier    notify.Notifier
	Dispatcher  *notify.Dispatcher
	Idempotency idempotency.Store
	MaxTopUp    decimal.Decimal
}

// RegisterFrontRoutes registers public and authenticated storefront routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Engine == nil {
		return
	}

	api := r.Group("/api")

	gameHandler := handlers.NewGameHandler(deps.DB)
	api.GET("/games", gameHandler.List)
	api.GET("/games/:id", gameHandler.Get)

	authed := api.Group("")
	authed.Use(userAuthMiddleware(deps.DB, deps.JWT))

	txHandler := handlers.NewTransactionHandler(deps.Engine)
	authed.POST("/transactions", idempotency.Middleware(deps.Idempotency, idempotency.DefaultTTL, userScope), txHandler.Create)
	authed.GET("/transactions", txHandler.List)
	authed.GET("/transactions/:id", txHandler.Get)

	voucherHandler := handlers.NewVoucherHandler(deps.DB)
	authed.POST("/vouchers/validate", voucherHandler.Validate)

	walletHandler := handlers.NewWalletHandler(wallet.NewLedger(deps.DB), deps.MaxTopUp, deps.Notifier, deps.Dispatcher)
	authed.GET("/wallet", walletHandler.Get)
	authed.POST("/wallet/top-up", walletHandler.TopUp)

	libraryHandler := handlers.NewLibraryHandler(deps.DB)
	authed.GET("/library", libraryHandler.List)

	if deps.Inbox != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Inbox)
		authed.GET("/notifications", notificationHandler.List)
	}
}

// userScope namespaces idempotency keys per authenticated user.
func userScope(c *gin.Context) string {
	id, _ := c.Get("userID")
	if v, ok := id.(uint64); ok {
		return "user:" + strconv.FormatUint(v, 10)
	}
	return "anonymous"
}

func unauthorized(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			unauthorized(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			unauthorized(c, http.StatusUnauthorized, "empty token")
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			unauthorized(c, http.StatusUnauthorized, "invalid token")
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			unauthorized(c, http.StatusUnauthorized, "user not found")
			return
		}
		if user.Disabled {
			unauthorized(c, http.StatusForbidden, "user disabled")
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
