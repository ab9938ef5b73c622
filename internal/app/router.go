package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playvault/storefront/internal/checkout"
	"github.com/playvault/storefront/internal/config"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/http/api/front"
	"github.com/playvault/storefront/internal/idempotency"
	"github.com/playvault/storefront/internal/logging"
	"github.com/playvault/storefront/internal/metrics"
	"github.com/playvault/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type routerDeps struct {
	conn        *gorm.DB
	conf        *config.Config
	engine      *checkout.Engine
	inbox       *notify.GormSink
	notifier    notify.Notifier
	dispatcher  *notify.Dispatcher
	idempotency idempotency.Store
	maxTopUp    decimal.Decimal
	metrics     *metrics.Metrics
}

// newRouter assembles middleware, probes and the storefront API.
func newRouter(deps routerDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.RequestID(), logging.AccessLog(), gin.Recovery())
	if deps.metrics != nil {
		engine.Use(deps.metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(deps.metrics.Handler()))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := deps.conn.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": db.DialectName(deps.conn)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": db.DialectName(deps.conn)})
	})

	front.RegisterFrontRoutes(engine, front.Deps{
		DB:          deps.conn,
		JWT:         deps.conf.JWT,
		Engine:      deps.engine,
		Inbox:       deps.inbox,
		Notifier:    deps.notifier,
		Dispatcher:  deps.dispatcher,
		Idempotency: deps.idempotency,
		MaxTopUp:    deps.maxTopUp,
	})

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})
	return engine
}
