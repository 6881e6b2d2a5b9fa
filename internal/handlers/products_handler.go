package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// lowStockLimit caps the admin low-stock list.
const lowStockLimit = 10

// RegisterProductsRoutes registers the storefront catalog and admin product management routes.
func RegisterProductsRoutes(public, admin *gin.RouterGroup, cfg HandlerConfig, v *validatorv10.Validate) {
	logger := cfg.Logger
	store := cfg.Products

	public.GET("/products", func(c *gin.Context) {
		var q validation.ListProductsQuery
		if !bindQueryOrAbort(c, &q, v) {
			return
		}
		// the storefront only ever lists Active products
		list, err := store.List(c.Request.Context(), catalog.Filter{
			Status:   catalog.StatusActive,
			Category: q.Category,
			Search:   q.Search,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respondPage(c, list, q.Page, q.Limit)
	})

	public.GET("/products/categories", func(c *gin.Context) {
		categories, err := store.Categories(c.Request.Context())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, categories)
	})

	public.GET("/products/:id", func(c *gin.Context) {
		p, err := store.FindActiveProduct(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if p == nil {
			writeError(c, logger, catalog.ErrProductNotFound)
			return
		}
		respond(c, http.StatusOK, p)
	})

	admin.GET("/products", func(c *gin.Context) {
		var q validation.ListProductsQuery
		if !bindQueryOrAbort(c, &q, v) {
			return
		}
		list, err := store.List(c.Request.Context(), catalog.Filter{
			Status:   q.Status,
			Category: q.Category,
			Search:   q.Search,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respondPage(c, list, q.Page, q.Limit)
	})

	admin.GET("/products/low-stock", func(c *gin.Context) {
		var q validation.LowStockQuery
		if !bindQueryOrAbort(c, &q, v) {
			return
		}
		threshold := cfg.LowStockThreshold
		if q.Threshold != nil {
			threshold = *q.Threshold
		}
		list, err := store.LowStock(c.Request.Context(), threshold, lowStockLimit)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, list)
	})

	admin.GET("/products/:id", func(c *gin.Context) {
		p, err := store.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if p == nil {
			writeError(c, logger, catalog.ErrProductNotFound)
			return
		}
		respond(c, http.StatusOK, p)
	})

	admin.POST("/products", func(c *gin.Context) {
		var req validation.ProductRequest
		if !bindOrAbort(c, &req, v) {
			return
		}
		p := &catalog.Product{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			Category:    req.Category,
			Status:      req.Status,
			ImageURL:    req.ImageURL,
		}
		if err := store.Create(c.Request.Context(), p); err != nil {
			writeError(c, logger, err)
			return
		}
		logger.Info("product created", zap.String("product_id", p.ProductID), zap.String("name", p.Name))
		respond(c, http.StatusCreated, p)
	})

	admin.PUT("/products/:id", func(c *gin.Context) {
		var req validation.ProductRequest
		if !bindOrAbort(c, &req, v) {
			return
		}
		ctx := c.Request.Context()
		existing, err := store.FindByID(ctx, c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if existing == nil {
			writeError(c, logger, catalog.ErrProductNotFound)
			return
		}

		existing.Name = req.Name
		existing.Description = req.Description
		existing.Price = req.Price
		existing.Stock = req.Stock
		existing.Category = req.Category
		if req.Status != "" {
			existing.Status = req.Status
		}
		if req.ImageURL != "" {
			existing.ImageURL = req.ImageURL
		}

		updated, err := store.Update(ctx, existing)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, updated)
	})

	admin.PATCH("/products/:id/toggle-status", func(c *gin.Context) {
		p, err := store.ToggleStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, p)
	})

	admin.PATCH("/products/:id/stock", func(c *gin.Context) {
		var req validation.StockAdjustRequest
		if !bindOrAbort(c, &req, v) {
			return
		}
		p, err := store.AdjustStock(c.Request.Context(), c.Param("id"), req.Delta)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		logger.Info("stock adjusted",
			zap.String("product_id", p.ProductID),
			zap.Int("delta", req.Delta),
			zap.Int("stock", p.Stock))
		respond(c, http.StatusOK, p)
	})
}
