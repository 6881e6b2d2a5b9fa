package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// RegisterOrdersRoutes registers the public checkout routes and the admin
// order management routes.
func RegisterOrdersRoutes(public, admin *gin.RouterGroup, cfg HandlerConfig, v *validatorv10.Validate) {
	logger := cfg.Logger

	public.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateOrderRequest
		if !bindOrAbort(c, &req, v) {
			return
		}

		key := c.GetHeader(idempotency.HeaderKey)
		if cfg.Idempotency == nil {
			key = ""
		}
		if key != "" && replay(c, cfg, key) {
			return
		}

		in := orders.PlaceOrderInput{
			Customer: orders.Customer{
				Name:            req.CustomerName,
				Email:           req.Email,
				ContactNumber:   req.ContactNumber,
				ShippingAddress: req.ShippingAddress,
			},
			IdempotencyKey: key,
			RequestID:      requestID(c),
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, orders.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		order, err := cfg.Workflow.PlaceOrder(ctx, in)
		if errors.Is(err, orders.ErrDuplicateRequest) && replay(c, cfg, key) {
			// lost the race to a concurrent request with the same key
			return
		}
		if err != nil {
			writeError(c, logger, err)
			return
		}

		body, err := json.Marshal(Envelope{Success: true, Data: order})
		if err != nil {
			writeError(c, logger, fmt.Errorf("marshal order response: %w", err))
			return
		}
		if key != "" {
			// the order exists either way; a failed MarkDone only costs the replay
			if err := cfg.Idempotency.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
				logger.Warn("store idempotent response failed",
					zap.String("idempotency_key", key),
					zap.String("order_id", order.OrderID),
					zap.Error(err))
			}
		}

		c.Header("Location", fmt.Sprintf("/api/orders/%s", order.OrderID))
		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	})

	public.GET("/orders/:id", func(c *gin.Context) {
		getOrder(c, cfg)
	})

	admin.GET("/orders", func(c *gin.Context) {
		var q validation.ListOrdersQuery
		if !bindQueryOrAbort(c, &q, v) {
			return
		}

		filter := orders.ListFilter{Status: q.Status}
		if q.StartDate != "" {
			from, _ := time.ParseInLocation(validation.DateLayout, q.StartDate, cfg.Location)
			filter.From = from
		}
		if q.EndDate != "" {
			to, _ := time.ParseInLocation(validation.DateLayout, q.EndDate, cfg.Location)
			// whole end day is included
			filter.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}

		list, err := cfg.Orders.List(c.Request.Context(), filter)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respondPage(c, list, q.Page, q.Limit)
	})

	admin.GET("/orders/:id", func(c *gin.Context) {
		getOrder(c, cfg)
	})

	admin.PATCH("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if !bindOrAbort(c, &req, v) {
			return
		}
		order, err := cfg.Workflow.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, order)
	})

	admin.GET("/dashboard", func(c *gin.Context) {
		stats, err := cfg.Dashboard.Stats(c.Request.Context())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, stats)
	})
}

func getOrder(c *gin.Context, cfg HandlerConfig) {
	id := c.Param("id")
	order, err := cfg.Orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, cfg.Logger, err)
		return
	}
	if order == nil {
		writeError(c, cfg.Logger, &orders.OrderNotFoundError{OrderID: id})
		return
	}
	respond(c, http.StatusOK, order)
}

// replay answers from a stored idempotency record. It reports false when no
// record exists and the request should proceed.
func replay(c *gin.Context, cfg HandlerConfig, key string) bool {
	rec, err := cfg.Idempotency.Get(c.Request.Context(), key)
	if err != nil {
		writeError(c, cfg.Logger, err)
		return true
	}
	if rec == nil {
		return false
	}
	if rec.Done() {
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
		return true
	}
	c.Header("Location", fmt.Sprintf("/api/orders/%s", rec.OrderID))
	fail(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed")
	return true
}
