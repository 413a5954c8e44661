// Package catalog stores the shared product list under a single key and keeps
// each product's copy of its merchant's display fields in step with the merchant.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/kv"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/redisx"
)

// Catalog is not safe for concurrent mutation; callers serialize commands.
type Catalog struct {
	store  kv.Store
	logger *logrus.Logger
}

func New(store kv.Store, logger *logrus.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

// List returns every product. A corrupt persisted list is logged and treated
// as empty.
func (c *Catalog) List(ctx context.Context) ([]orders.Product, error) {
	var products []orders.Product
	_, err := kv.GetJSON(ctx, c.store, redisx.KeyProducts, &products)
	if errors.Is(err, kv.ErrCorruptState) {
		c.logger.WithError(err).Warn("Discarding corrupt product list")
		return []orders.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if products == nil {
		products = []orders.Product{}
	}
	return products, nil
}

func (c *Catalog) save(ctx context.Context, products []orders.Product) error {
	if err := kv.SetJSON(ctx, c.store, redisx.KeyProducts, products); err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (orders.Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
}

// Add stores p for merchant, stamping the merchant's current display fields.
func (c *Catalog) Add(ctx context.Context, merchant orders.User, p orders.Product) (orders.Product, error) {
	if err := Validate(p); err != nil {
		return orders.Product{}, err
	}
	products, err := c.List(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.MerchantID = merchant.ID
	p = Stamp(p, merchant)
	products = append(products, p)
	if err := c.save(ctx, products); err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

// Replace overwrites the product with the same id.
func (c *Catalog) Replace(ctx context.Context, p orders.Product) (orders.Product, error) {
	if err := Validate(p); err != nil {
		return orders.Product{}, err
	}
	products, err := c.List(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = p
			if err := c.save(ctx, products); err != nil {
				return orders.Product{}, err
			}
			return p, nil
		}
	}
	return orders.Product{}, fmt.Errorf("product %s: %w", p.ID, orders.ErrNotFound)
}

// AdjustStock adds delta to the product's stock. Stock never drops below
// zero: a decrement past it fails with ErrOutOfStock.
func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) (orders.Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	for i := range products {
		if products[i].ID != id {
			continue
		}
		if products[i].Stock+delta < 0 {
			return orders.Product{}, &orders.ValidationError{
				Field:  "stock",
				Reason: fmt.Sprintf("product %s has %d left", id, products[i].Stock),
				Err:    orders.ErrOutOfStock,
			}
		}
		products[i].Stock += delta
		if err := c.save(ctx, products); err != nil {
			return orders.Product{}, err
		}
		return products[i], nil
	}
	return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
}

// ApplyMerchant rewrites the display fields of every product owned by
// merchant and reports how many changed. Products of other merchants are left
// alone.
func (c *Catalog) ApplyMerchant(ctx context.Context, merchant orders.User) (int, error) {
	products, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range products {
		if products[i].MerchantID != merchant.ID {
			continue
		}
		stamped := Stamp(products[i], merchant)
		if !sameDisplay(stamped, products[i]) {
			changed++
		}
		products[i] = stamped
	}
	if changed == 0 {
		return 0, nil
	}
	if err := c.save(ctx, products); err != nil {
		return 0, err
	}
	return changed, nil
}

// Repair is ApplyMerchant for read paths: it only writes on drift.
func (c *Catalog) Repair(ctx context.Context, merchant orders.User) (int, error) {
	n, err := c.ApplyMerchant(ctx, merchant)
	if err == nil && n > 0 {
		c.logger.WithFields(logrus.Fields{
			"merchant_id": merchant.ID,
			"products":    n,
		}).Info("Repaired stale merchant fields on products")
	}
	return n, err
}

// SeedIfEmpty stores seed when no product list has been persisted yet.
func (c *Catalog) SeedIfEmpty(ctx context.Context, seed []orders.Product) (bool, error) {
	_, ok, err := c.store.Get(ctx, redisx.KeyProducts)
	if err != nil {
		return false, fmt.Errorf("check products: %w", err)
	}
	if ok {
		return false, nil
	}
	return true, c.save(ctx, seed)
}

// Stamp copies the merchant's display fields onto p.
func Stamp(p orders.Product, merchant orders.User) orders.Product {
	p.MerchantName = merchant.StoreName
	p.MerchantOpening = merchant.OpeningTime
	p.MerchantClosing = merchant.ClosingTime
	p.MerchantOpening2 = merchant.OpeningTime2
	p.MerchantClosing2 = merchant.ClosingTime2
	p.MerchantLat = merchant.Lat
	p.MerchantLng = merchant.Lng
	p.Currency = merchant.Currency
	return p
}

func sameDisplay(a, b orders.Product) bool {
	return a.MerchantName == b.MerchantName &&
		a.MerchantOpening == b.MerchantOpening &&
		a.MerchantClosing == b.MerchantClosing &&
		a.MerchantOpening2 == b.MerchantOpening2 &&
		a.MerchantClosing2 == b.MerchantClosing2 &&
		sameCoord(a.MerchantLat, b.MerchantLat) &&
		sameCoord(a.MerchantLng, b.MerchantLng) &&
		a.Currency == b.Currency
}

func sameCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func Validate(p orders.Product) error {
	switch {
	case p.Name == "":
		return orders.Invalid("name", "required")
	case p.Price.IsNegative():
		return orders.Invalid("price", "must not be negative")
	case p.Stock < 0:
		return orders.Invalid("stock", "must not be negative")
	}
	return nil
}
