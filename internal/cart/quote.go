package cart

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// ProductLookup resolves orderable products.
type ProductLookup interface {
	FindActiveProduct(ctx context.Context, productID string) (*catalog.Product, error)
}

// Quote is a cart re-priced against the live catalog.
type Quote struct {
	Items       []Line   `json:"items"`
	Summary     Summary  `json:"summary"`
	Unavailable []string `json:"unavailable"` // product ids dropped from the cart
}

// Refresh reloads name, price and stock for every line and replays the lines
// through the reducer, so repeated products merge and stock caps match the
// catalog. Lines for products that are gone, inactive or sold out are dropped
// and reported.
func Refresh(ctx context.Context, lookup ProductLookup, calc *pricing.Calculator, s State) (Quote, error) {
	state := State{Items: []Line{}}
	unavailable := []string{}
	for _, l := range s.Items {
		p, err := lookup.FindActiveProduct(ctx, l.ProductID)
		if err != nil {
			return Quote{}, fmt.Errorf("find product %s: %w", l.ProductID, err)
		}
		if p == nil || p.Stock == 0 {
			unavailable = append(unavailable, l.ProductID)
			continue
		}
		state = Reduce(state, AddItem{Line: Line{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Quantity:  l.Quantity,
			MaxStock:  p.Stock,
		}})
	}

	return Quote{
		Items:       state.Items,
		Summary:     Summarize(state, calc),
		Unavailable: unavailable,
	}, nil
}
