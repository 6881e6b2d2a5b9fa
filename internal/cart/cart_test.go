package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

func line(id string, price string, qty, max int) Line {
	return Line{ProductID: id, Name: "Product " + id, Price: pricing.MustMoney(price), Quantity: qty, MaxStock: max}
}

func TestAddItem(t *testing.T) {
	s := Reduce(State{}, AddItem{Line: line("a", "10", 2, 5)})
	s = Reduce(s, AddItem{Line: line("b", "3", 1, 9)})
	require.Len(t, s.Items, 2)

	// merge keeps position and caps at the incoming max stock
	s = Reduce(s, AddItem{Line: line("a", "10", 4, 5)})
	require.Len(t, s.Items, 2)
	assert.Equal(t, "a", s.Items[0].ProductID)
	assert.Equal(t, 5, s.Items[0].Quantity)

	// stock dropped since the line was added
	s = Reduce(s, AddItem{Line: line("a", "10", 1, 3)})
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.Equal(t, 3, s.Items[0].MaxStock)

	s = Reduce(s, AddItem{Line: line("c", "1", 7, 2)})
	assert.Equal(t, 2, s.Items[2].Quantity, "new lines are capped too")

	s = Reduce(s, AddItem{Line: line("d", "1", 1, 0)})
	assert.Len(t, s.Items, 3, "sold out products are not added")
}

func TestUpdateQuantity(t *testing.T) {
	s := State{Items: []Line{line("a", "1", 1, 4), line("b", "1", 2, 4)}}

	s = Reduce(s, UpdateQuantity{ProductID: "a", Quantity: 10})
	assert.Equal(t, 4, s.Items[0].Quantity)

	s = Reduce(s, UpdateQuantity{ProductID: "a", Quantity: 0})
	require.Len(t, s.Items, 1)
	assert.Equal(t, "b", s.Items[0].ProductID)

	s = Reduce(s, UpdateQuantity{ProductID: "missing", Quantity: 3})
	assert.Len(t, s.Items, 1)
}

func TestRemoveClearLoad(t *testing.T) {
	s := State{Items: []Line{line("a", "1", 1, 4), line("b", "1", 2, 4)}}

	s = Reduce(s, RemoveItem{ProductID: "a"})
	require.Len(t, s.Items, 1)
	assert.Equal(t, "b", s.Items[0].ProductID)

	s = Reduce(s, Clear{})
	assert.Empty(t, s.Items)
	assert.NotNil(t, s.Items)

	loaded := []Line{line("x", "2", 1, 1)}
	s = Reduce(s, Load{Items: loaded})
	require.Len(t, s.Items, 1)
	loaded[0].Quantity = 99
	assert.Equal(t, 1, s.Items[0].Quantity, "load copies its input")

	assert.Equal(t, s, Reduce(s, nil))
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	orig := State{Items: []Line{line("a", "1", 1, 4), line("b", "1", 2, 4)}}
	snapshot := State{Items: append([]Line(nil), orig.Items...)}

	Reduce(orig, AddItem{Line: line("a", "1", 2, 4)})
	Reduce(orig, UpdateQuantity{ProductID: "a", Quantity: 0})
	Reduce(orig, RemoveItem{ProductID: "b"})
	Reduce(orig, Clear{})

	assert.Equal(t, snapshot, orig)
}

func TestSummarize(t *testing.T) {
	calc, err := pricing.NewCalculator(pricing.DefaultTaxRate)
	require.NoError(t, err)

	s := State{Items: []Line{line("a", "100", 3, 10), line("b", "0.10", 3, 10)}}
	sum := Summarize(s, calc)

	assert.True(t, sum.Subtotal.Equal(pricing.MustMoney("300.3")), sum.Subtotal.String())
	assert.True(t, sum.Tax.Equal(pricing.MustMoney("24.024")), sum.Tax.String())
	assert.True(t, sum.Total.Equal(pricing.MustMoney("324.324")), sum.Total.String())
	assert.Equal(t, 6, sum.ItemCount)

	empty := Summarize(State{}, calc)
	assert.True(t, empty.Total.IsZero())
	assert.Equal(t, 0, empty.ItemCount)
}

type lookupFunc func(ctx context.Context, id string) (*catalog.Product, error)

func (f lookupFunc) FindActiveProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return f(ctx, id)
}

func TestRefresh(t *testing.T) {
	calc, _ := pricing.NewCalculator(pricing.DefaultTaxRate)
	live := map[string]*catalog.Product{
		"a": {ProductID: "a", Name: "Lamp", Price: pricing.FromInt(20), Stock: 2, Status: catalog.StatusActive},
		"b": {ProductID: "b", Name: "Rug", Price: pricing.FromInt(50), Stock: 0, Status: catalog.StatusActive},
	}
	lookup := lookupFunc(func(_ context.Context, id string) (*catalog.Product, error) {
		return live[id], nil
	})

	stale := State{Items: []Line{
		line("a", "15", 5, 10),
		line("b", "50", 1, 3),
		line("gone", "1", 1, 1),
	}}
	q, err := Refresh(context.Background(), lookup, calc, stale)
	require.NoError(t, err)

	require.Len(t, q.Items, 1)
	assert.Equal(t, "Lamp", q.Items[0].Name)
	assert.Equal(t, 2, q.Items[0].Quantity)
	assert.True(t, q.Items[0].Price.Equal(pricing.FromInt(20)))
	assert.ElementsMatch(t, []string{"b", "gone"}, q.Unavailable)
	assert.True(t, q.Summary.Total.Equal(pricing.MustMoney("43.2")))

	failing := lookupFunc(func(context.Context, string) (*catalog.Product, error) {
		return nil, errors.New("dynamo down")
	})
	_, err = Refresh(context.Background(), failing, calc, stale)
	assert.Error(t, err)
}
