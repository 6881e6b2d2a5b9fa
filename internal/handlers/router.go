package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/dashboard"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Products    *catalog.Store
	Orders      *orders.Store
	Workflow    *orders.Service
	Idempotency *idempotency.Store // optional; Idempotency-Key is ignored when nil
	Dashboard   *dashboard.Aggregator
	Calculator  *pricing.Calculator
	Logger      *zap.Logger

	AdminAPIKey       string
	LowStockThreshold int
	Location          *time.Location // zone for startDate/endDate filters
}

// NewRouter builds the gin engine with middleware, health check and all routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = catalog.DefaultLowStockThreshold
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(cfg.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v := validation.New()
	api := r.Group("/api")
	admin := api.Group("/admin", AdminAuth(cfg.AdminAPIKey))

	RegisterOrdersRoutes(api, admin, cfg, v)
	RegisterProductsRoutes(api, admin, cfg, v)
	RegisterCartRoutes(api, cfg, v)

	return r
}

func bindOrAbort(c *gin.Context, out interface{}, v *validatorv10.Validate) bool {
	return validation.BindAndValidate(c, out, v) == nil
}

func bindQueryOrAbort(c *gin.Context, out interface{}, v *validatorv10.Validate) bool {
	return validation.BindQueryAndValidate(c, out, v) == nil
}
