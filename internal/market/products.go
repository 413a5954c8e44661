package market

import (
	"context"
	"fmt"

	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/orders"
)

func (a *App) AddProduct(ctx context.Context, sid string, p orders.Product) (orders.Product, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleMerchant)
	if err != nil {
		return orders.Product{}, err
	}
	p.ID = ""
	return a.d.Catalog.Add(ctx, u, p)
}

// UpdateProduct replaces one of the merchant's own products.
func (a *App) UpdateProduct(ctx context.Context, sid string, p orders.Product) (orders.Product, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleMerchant)
	if err != nil {
		return orders.Product{}, err
	}
	existing, err := a.d.Catalog.Get(ctx, p.ID)
	if err != nil {
		return orders.Product{}, err
	}
	if existing.MerchantID != u.ID {
		return orders.Product{}, fmt.Errorf("%w: product %s belongs to another merchant", ErrForbidden, p.ID)
	}
	p.MerchantID = u.ID
	return a.d.Catalog.Replace(ctx, catalog.Stamp(p, u))
}

type Listing struct {
	orders.Product
	OpenNow bool `json:"openNow"`
}

type CatalogView struct {
	Products   []Listing `json:"products"`
	Categories []string  `json:"categories"`
}

// Catalog is the customer-facing product list.
func (a *App) Catalog(ctx context.Context, sid string, f catalog.Filter) (CatalogView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.user(ctx, sid); err != nil {
		return CatalogView{}, err
	}
	all, err := a.d.Catalog.List(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	now := a.d.Now()
	view := CatalogView{Categories: catalog.Categories(all), Products: []Listing{}}
	for _, p := range f.Apply(all) {
		view.Products = append(view.Products, Listing{Product: p, OpenNow: catalog.OpenNow(p, now)})
	}
	return view, nil
}
