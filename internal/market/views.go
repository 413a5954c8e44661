package market

import (
	"context"
	"fmt"
	"time"

	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
)

const stockLabelRunes = 10

type ActiveOrder struct {
	orders.Order
	RemainingMinutes int `json:"remainingMinutes"`
}

type CustomerOrders struct {
	Active  []ActiveOrder  `json:"active"`
	History []orders.Order `json:"history"`
}

type StockLevel struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type Dashboard struct {
	Merchant      orders.User           `json:"merchant"`
	Products      []orders.Product      `json:"products"`
	Orders        []orders.Order        `json:"orders"`
	PendingCount  int                   `json:"pendingCount"`
	StockLevels   []StockLevel          `json:"stockLevels"`
	Notifications []notify.Notification `json:"notifications"`
}

// SplitOrders separates orders still waiting on the merchant from finished
// ones.
func SplitOrders(list []orders.Order, now time.Time) CustomerOrders {
	out := CustomerOrders{Active: []ActiveOrder{}, History: []orders.Order{}}
	for _, o := range list {
		switch o.Status {
		case orders.StatusPending, orders.StatusAccepted:
			out.Active = append(out.Active, ActiveOrder{Order: o, RemainingMinutes: orders.Remaining(o, now)})
		default:
			out.History = append(out.History, o)
		}
	}
	return out
}

// CustomerOrders lists the customer's orders and derives any notifications
// they now warrant.
func (a *App) CustomerOrders(ctx context.Context, sid string) (CustomerOrders, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleCustomer)
	if err != nil {
		return CustomerOrders{}, err
	}
	list, err := a.d.Ledger.ByCustomer(ctx, u.ID)
	if err != nil {
		return CustomerOrders{}, err
	}
	now := a.d.Now()
	a.d.Center.ObserveCustomer(ctx, u.ID, list, now)
	return SplitOrders(list, now), nil
}

// MerchantDashboard also repairs any of the merchant's products whose
// merchant fields drifted from the merchant record.
func (a *App) MerchantDashboard(ctx context.Context, sid string) (Dashboard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleMerchant)
	if err != nil {
		return Dashboard{}, err
	}
	if _, err := a.d.Catalog.Repair(ctx, u); err != nil {
		return Dashboard{}, fmt.Errorf("repair catalog: %w", err)
	}
	all, err := a.d.Catalog.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	list, err := a.d.Ledger.ByMerchant(ctx, u.ID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		Merchant:     u,
		Products:     []orders.Product{},
		Orders:       list,
		PendingCount: notify.PendingCount(list),
		StockLevels:  []StockLevel{},
	}
	for _, p := range all {
		if p.MerchantID != u.ID {
			continue
		}
		d.Products = append(d.Products, p)
		d.StockLevels = append(d.StockLevels, StockLevel{Name: truncate(p.Name, stockLabelRunes), Stock: p.Stock})
	}
	a.d.Center.ObserveMerchant(u.ID, list, a.d.Now())
	d.Notifications = a.d.Center.Visible(u.ID)
	return d, nil
}

func (a *App) Notifications(ctx context.Context, sid string) ([]notify.Notification, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.user(ctx, sid)
	if err != nil {
		return nil, err
	}
	return a.d.Center.Visible(u.ID), nil
}

// Tick pushes fresh countdowns to every customer with notification state
// and derives notifications for status changes made elsewhere. Customers
// with nothing active and nothing on their board are pruned.
func (a *App) Tick(ctx context.Context, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range a.d.Center.Customers() {
		list, err := a.d.Ledger.ByCustomer(ctx, id)
		if err != nil {
			a.d.Logger.WithError(err).WithField("customer_id", id).Warn("Failed to load orders for countdown")
			continue
		}
		a.d.Center.ObserveCustomer(ctx, id, list, now)
		split := SplitOrders(list, now)
		if len(split.Active) > 0 {
			a.d.Sink.SendTo(id, notify.TypeCountdown, split.Active)
			continue
		}
		if a.d.Center.Prune(id, split.History) {
			a.d.Logger.WithField("customer_id", id).Debug("Pruned idle notification feed")
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
