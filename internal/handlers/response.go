package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondPage[T any](c *gin.Context, items []T, page, limit int) {
	pageItems, p := paginate(items, page, limit)
	c.JSON(http.StatusOK, Envelope{Success: true, Data: pageItems, Pagination: &p})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: code, Message: message})
}

// paginate slices items for a 1-based page. Limit is clamped to MaxLimit.
func paginate[T any](items []T, page, limit int) ([]T, Pagination) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	total := len(items)
	p := Pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit}

	start := (page - 1) * limit
	if start >= total {
		return []T{}, p
	}
	end := min(start+limit, total)
	return items[start:end], p
}

// writeError maps workflow and store errors to HTTP. Anything unknown is a 500
// and is logged; its text is not sent to the client.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var coded orders.CodedError
	switch {
	case errors.As(err, &coded):
		status := http.StatusBadRequest
		if coded.Code() == orders.CodeOrderNotFound {
			status = http.StatusNotFound
		}
		fail(c, status, coded.Code(), coded.Error())
	case errors.Is(err, orders.ErrStatusConflict):
		fail(c, http.StatusConflict, "STATUS_CONFLICT", "Order status was changed by another request, reload and retry")
	case errors.Is(err, orders.ErrDuplicateRequest):
		fail(c, http.StatusConflict, "DUPLICATE_REQUEST", "Idempotency key already used")
	case errors.Is(err, catalog.ErrProductNotFound):
		fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	case errors.Is(err, catalog.ErrNegativeStock):
		fail(c, http.StatusBadRequest, "NEGATIVE_STOCK", "Stock cannot go below zero")
	case errors.Is(err, catalog.ErrStatusChanged):
		fail(c, http.StatusConflict, "STATUS_CONFLICT", "Product status was changed by another request")
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "INTERNAL", "Server Error")
	}
}
