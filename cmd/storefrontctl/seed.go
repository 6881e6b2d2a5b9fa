package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// ProductWriter is the slice of catalog.Store used by seed.
type ProductWriter interface {
	All(ctx context.Context) ([]catalog.Product, error)
	Create(ctx context.Context, p *catalog.Product) error
}

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{Name: "Wireless Bluetooth Headphones", Description: "Noise cancelling over-ear headphones with 30 hour battery life.", Price: pricing.FromInt(4999), Stock: 50, Category: "Electronics", ImageURL: "/wireless-headphones.png"},
		{Name: "Organic Cotton Kurta", Description: "Breathable organic cotton kurta for everyday wear.", Price: pricing.FromInt(1299), Stock: 100, Category: "Clothing", ImageURL: "/cotton-kurta.png"},
		{Name: "Copper Water Bottle", Description: "Hand-finished copper bottle, 1 litre.", Price: pricing.FromInt(899), Stock: 75, Category: "Home & Kitchen", ImageURL: "/copper-bottle.jpg"},
		{Name: "Smart Fitness Watch", Description: "Heart rate, GPS and sleep tracking with a 7 day battery.", Price: pricing.FromInt(7999), Stock: 30, Category: "Electronics", ImageURL: "/fitness-watch.png"},
		{Name: "Leather Laptop Bag", Description: "Genuine leather bag for laptops up to 15.6 inches.", Price: pricing.FromInt(3499), Stock: 25, Category: "Accessories", ImageURL: "/laptop-bag.jpg"},
		{Name: "Sports Running Shoes", Description: "Lightweight running shoes with a breathable mesh upper.", Price: pricing.FromInt(2999), Stock: 45, Category: "Footwear", ImageURL: "/running-shoes.jpg"},
		{Name: "Premium Yoga Mat", Description: "Extra thick non-slip mat with carrying strap.", Price: pricing.FromInt(1499), Stock: 8, Category: "Sports & Fitness", ImageURL: "/yoga-mat.png"},
		{Name: "Wireless Phone Charger", Description: "Qi fast charging pad with LED indicator.", Price: pricing.FromInt(999), Stock: 120, Category: "Electronics", ImageURL: "/wireless-charger.png"},
		{Name: "Brass Diya Lamp Set", Description: "Set of 5 handcrafted brass diyas.", Price: pricing.FromInt(799), Stock: 5, Category: "Home & Kitchen", ImageURL: "/diya-set.jpg"},
		{Name: "Discontinued Product", Description: "No longer available for sale.", Price: pricing.FromInt(499), Stock: 10, Category: "Other", Status: catalog.StatusInactive},
	}
}

// seed writes the sample catalog. A non-empty table is left alone unless force is set.
func seed(ctx context.Context, store ProductWriter, force bool, logger *zap.Logger) (int, error) {
	existing, err := store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load products: %w", err)
	}
	if len(existing) > 0 && !force {
		logger.Info("products table is not empty, skipping seed", zap.Int("products", len(existing)))
		return 0, nil
	}

	n := 0
	for _, p := range sampleProducts() {
		if err := store.Create(ctx, &p); err != nil {
			return n, fmt.Errorf("create %q: %w", p.Name, err)
		}
		logger.Info("product seeded", zap.String("product_id", p.ProductID), zap.String("name", p.Name))
		n++
	}
	return n, nil
}
