package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/cart"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// RegisterCartRoutes registers the cart quote. The quote is informational;
// the order workflow re-prices everything at checkout.
func RegisterCartRoutes(public *gin.RouterGroup, cfg HandlerConfig, v *validatorv10.Validate) {
	public.POST("/cart/quote", func(c *gin.Context) {
		var req validation.CartQuoteRequest
		if !bindOrAbort(c, &req, v) {
			return
		}
		state := cart.State{Items: make([]cart.Line, 0, len(req.Items))}
		for _, it := range req.Items {
			state.Items = append(state.Items, cart.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		quote, err := cart.Refresh(c.Request.Context(), cfg.Products, cfg.Calculator, state)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		respond(c, http.StatusOK, quote)
	})
}
