package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// DemoProducts is the catalog a fresh deployment starts with.
func DemoProducts() []orders.Product {
	return []orders.Product{
		{
			ID:                 "1",
			MerchantID:         "m1",
			Name:               "Specialty Coffee",
			Price:              decimal.RequireFromString("3.5"),
			Stock:              50,
			Description:        "Freshly ground beans.",
			Category:           "Drinks",
			PrepTimeAdjustment: 2,
			MerchantName:       "The Local Shop",
			MerchantOpening:    "08:00",
			MerchantClosing:    "22:00",
			Currency:           "€",
		},
		{
			ID:                 "2",
			MerchantID:         "m1",
			Name:               "Artisan Croissant",
			Price:              decimal.RequireFromString("2.2"),
			Stock:              20,
			Description:        "Pure butter, baked today.",
			Category:           "Pastry",
			PrepTimeAdjustment: 0,
			MerchantName:       "The Local Shop",
			MerchantOpening:    "08:00",
			MerchantClosing:    "22:00",
			Currency:           "€",
		},
	}
}
