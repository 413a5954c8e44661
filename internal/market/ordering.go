package market

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// PlaceOrder orders one unit of the product for the session's customer. The
// stock decrement and the ledger append succeed or fail together.
func (a *App) PlaceOrder(ctx context.Context, sid, productID string) (orders.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleCustomer)
	if err != nil {
		return orders.Order{}, err
	}
	p, err := a.d.Catalog.Get(ctx, productID)
	if err != nil {
		return orders.Order{}, err
	}
	now := a.d.Now()
	o, err := orders.NewOrder(u, p, now, a.d.DefaultPrep)
	if err != nil {
		return orders.Order{}, err
	}

	updated, err := a.d.Catalog.AdjustStock(ctx, p.ID, -1)
	if err != nil {
		return orders.Order{}, err
	}
	if err := a.d.Ledger.Append(ctx, o); err != nil {
		if _, rerr := a.d.Catalog.AdjustStock(ctx, p.ID, 1); rerr != nil {
			a.d.Logger.WithError(rerr).WithField("product_id", p.ID).Error("Failed to restore stock")
		}
		return orders.Order{}, fmt.Errorf("place order: %w", err)
	}

	a.d.Logger.WithFields(logrus.Fields{
		"order_id":    o.ID,
		"product_id":  p.ID,
		"merchant_id": o.MerchantID,
		"stock_left":  updated.Stock,
	}).Info("Order placed")
	a.publish(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, o.ID,
		orders.OrderPlacedPayload{Order: o, RemainingStock: updated.Stock})
	a.observeMerchant(ctx, o.MerchantID)
	return o, nil
}

// UpdateOrderStatus moves one of the merchant's orders along the status
// graph and notifies both parties.
func (a *App) UpdateOrderStatus(ctx context.Context, sid, orderID string, to orders.Status) (orders.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleMerchant)
	if err != nil {
		return orders.Order{}, err
	}
	o, err := a.d.Ledger.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.MerchantID != u.ID {
		return orders.Order{}, fmt.Errorf("%w: order %s belongs to another merchant", ErrForbidden, orderID)
	}
	if _, err := orders.Transition(o, to); err != nil {
		return orders.Order{}, err
	}
	saved, err := a.d.Ledger.SetStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		return orders.Order{}, err
	}

	a.d.Logger.WithFields(logrus.Fields{
		"order_id": o.ID,
		"from":     o.Status,
		"to":       to,
	}).Info("Order status changed")
	a.publish(ctx, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, o.ID,
		orders.OrderStatusChangedPayload{Order: saved, From: o.Status, To: to})
	a.observeCustomer(ctx, saved.CustomerID)
	a.observeMerchant(ctx, saved.MerchantID)
	return saved, nil
}

func (a *App) observeCustomer(ctx context.Context, customerID string) {
	list, err := a.d.Ledger.ByCustomer(ctx, customerID)
	if err != nil {
		a.d.Logger.WithError(err).WithField("customer_id", customerID).Warn("Failed to load orders for notifications")
		return
	}
	a.d.Center.ObserveCustomer(ctx, customerID, list, a.d.Now())
}

func (a *App) observeMerchant(ctx context.Context, merchantID string) {
	list, err := a.d.Ledger.ByMerchant(ctx, merchantID)
	if err != nil {
		a.d.Logger.WithError(err).WithField("merchant_id", merchantID).Warn("Failed to load orders for notifications")
		return
	}
	a.d.Center.ObserveMerchant(merchantID, list, a.d.Now())
}
