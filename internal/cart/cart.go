// Package cart is the client-side cart as a pure reducer. It never owns
// authoritative pricing: orders are always re-priced by the order workflow.
package cart

import (
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// Line is one product selection in the cart.
type Line struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Price     pricing.Money `json:"price"`
	ImageURL  string        `json:"imageUrl,omitempty"`
	Quantity  int           `json:"quantity"`
	MaxStock  int           `json:"maxStock"`
}

// State is the ordered list of lines, at most one per product.
type State struct {
	Items []Line `json:"items"`
}

// Action is one of AddItem, UpdateQuantity, RemoveItem, Clear or Load.
type Action interface {
	apply(State) State
}

// AddItem adds Line, merging with an existing line for the same product.
// The quantity is capped at Line.MaxStock, the freshest stock the client saw.
type AddItem struct{ Line Line }

// UpdateQuantity sets a line's quantity, capped at the line's MaxStock. A
// quantity of zero or less removes the line.
type UpdateQuantity struct {
	ProductID string
	Quantity  int
}

// RemoveItem drops the line for ProductID.
type RemoveItem struct{ ProductID string }

// Clear empties the cart.
type Clear struct{}

// Load replaces the cart, e.g. from local storage.
type Load struct{ Items []Line }

// Reduce returns the state after action. state is never modified.
func Reduce(state State, action Action) State {
	if action == nil {
		return state
	}
	return action.apply(state)
}

func (a AddItem) apply(s State) State {
	items := copyLines(s.Items)
	for i := range items {
		if items[i].ProductID == a.Line.ProductID {
			items[i].Quantity = min(items[i].Quantity+a.Line.Quantity, a.Line.MaxStock)
			items[i].MaxStock = a.Line.MaxStock
			return State{Items: dropEmpty(items)}
		}
	}
	line := a.Line
	line.Quantity = min(line.Quantity, line.MaxStock)
	if line.Quantity <= 0 {
		return State{Items: items}
	}
	return State{Items: append(items, line)}
}

func (a UpdateQuantity) apply(s State) State {
	items := copyLines(s.Items)
	for i := range items {
		if items[i].ProductID == a.ProductID {
			items[i].Quantity = min(a.Quantity, items[i].MaxStock)
		}
	}
	return State{Items: dropEmpty(items)}
}

func (a RemoveItem) apply(s State) State {
	items := make([]Line, 0, len(s.Items))
	for _, l := range s.Items {
		if l.ProductID != a.ProductID {
			items = append(items, l)
		}
	}
	return State{Items: items}
}

func (Clear) apply(State) State { return State{Items: []Line{}} }

func (a Load) apply(State) State { return State{Items: copyLines(a.Items)} }

// Summary is the priced cart shown next to the checkout button.
type Summary struct {
	pricing.Totals
	ItemCount int `json:"itemCount"`
}

// Summarize prices the cart with calc, the same calculator orders use.
func Summarize(s State, calc *pricing.Calculator) Summary {
	subtotal := pricing.Zero
	count := 0
	for _, l := range s.Items {
		subtotal = subtotal.Add(calc.LineTotal(l.Price, l.Quantity))
		count += l.Quantity
	}
	return Summary{Totals: calc.Quote(subtotal), ItemCount: count}
}

func copyLines(in []Line) []Line {
	out := make([]Line, len(in))
	copy(out, in)
	return out
}

func dropEmpty(items []Line) []Line {
	out := items[:0]
	for _, l := range items {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}
