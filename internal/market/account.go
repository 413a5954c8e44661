package market

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/session"
)

// Currencies a store may price in.
var Currencies = []string{"€", "$", "£", "¥", "ARS", "MXN", "CLP", "COP", "PEN"}

// Settings is a merchant's store configuration. Nil optional fields keep
// their current value.
type Settings struct {
	StoreName    string   `json:"storeName"`
	OpeningTime  string   `json:"openingTime"`
	ClosingTime  string   `json:"closingTime"`
	OpeningTime2 string   `json:"openingTime2"`
	ClosingTime2 string   `json:"closingTime2"`
	Currency     string   `json:"currency"`
	IsOpen       *bool    `json:"isOpen,omitempty"`
	BasePrepTime *int     `json:"basePrepTime,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

func (s Settings) validate() error {
	if s.StoreName == "" {
		return orders.Invalid("storeName", "required")
	}
	if err := checkClock("openingTime", s.OpeningTime); err != nil {
		return err
	}
	if err := checkClock("closingTime", s.ClosingTime); err != nil {
		return err
	}
	if (s.OpeningTime2 == "") != (s.ClosingTime2 == "") {
		return orders.Invalid("openingTime2", "second shift needs both opening and closing")
	}
	if s.OpeningTime2 != "" {
		if err := checkClock("openingTime2", s.OpeningTime2); err != nil {
			return err
		}
		if err := checkClock("closingTime2", s.ClosingTime2); err != nil {
			return err
		}
	}
	if !slices.Contains(Currencies, s.Currency) {
		return orders.Invalid("currency", fmt.Sprintf("unsupported currency %q", s.Currency))
	}
	if s.BasePrepTime != nil && *s.BasePrepTime < 0 {
		return orders.Invalid("basePrepTime", "must not be negative")
	}
	return nil
}

func checkClock(field, v string) error {
	if _, err := catalog.ParseClock(v); err != nil {
		return orders.Invalid(field, fmt.Sprintf("%q is not HH:mm", v))
	}
	return nil
}

func (a *App) Login(ctx context.Context, sid string, creds session.Credentials) (orders.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, err := a.d.Sessions.Login(ctx, sid, creds)
	if err != nil {
		return orders.User{}, err
	}
	a.d.Logger.WithField("user_id", u.ID).WithField("role", u.Role).Info("User logged in")
	return u, nil
}

func (a *App) Logout(ctx context.Context, sid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok, err := a.d.Sessions.Current(ctx, sid); err == nil && ok {
		a.d.Center.Forget(u.ID)
	}
	return a.d.Sessions.Logout(ctx, sid)
}

func (a *App) CurrentUser(ctx context.Context, sid string) (orders.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user(ctx, sid)
}

// UpdateSettings rewrites the merchant and, in the same command, every one of
// the merchant's products. It returns the number of products rewritten.
func (a *App) UpdateSettings(ctx context.Context, sid string, s Settings) (orders.User, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.userWithRole(ctx, sid, orders.RoleMerchant)
	if err != nil {
		return orders.User{}, 0, err
	}
	if err := s.validate(); err != nil {
		return orders.User{}, 0, err
	}

	u.StoreName = s.StoreName
	u.OpeningTime = s.OpeningTime
	u.ClosingTime = s.ClosingTime
	u.OpeningTime2 = s.OpeningTime2
	u.ClosingTime2 = s.ClosingTime2
	u.Currency = s.Currency
	if s.IsOpen != nil {
		u.IsOpen = *s.IsOpen
	}
	if s.BasePrepTime != nil {
		u.BasePrepTime = *s.BasePrepTime
	}
	if s.Lat != nil && s.Lng != nil {
		u.Lat, u.Lng = s.Lat, s.Lng
	}

	n, err := a.saveMerchant(ctx, sid, u)
	if err != nil {
		return orders.User{}, 0, err
	}
	a.publish(ctx, orders.TopicStoreSettingsUpdated, orders.EventStoreSettingsUpdated, u.ID,
		orders.StoreSettingsUpdatedPayload{
			MerchantID:      u.ID,
			StoreName:       u.StoreName,
			Currency:        u.Currency,
			ProductsUpdated: n,
		})
	return u, n, nil
}

func (a *App) saveMerchant(ctx context.Context, sid string, u orders.User) (int, error) {
	if err := a.d.Sessions.Save(ctx, sid, u); err != nil {
		return 0, err
	}
	n, err := a.d.Catalog.ApplyMerchant(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("propagate settings: %w", err)
	}
	return n, nil
}

// Locate attaches the provider's coordinates to the user. A declined
// provider is logged and leaves the user unchanged.
func (a *App) Locate(ctx context.Context, sid string, loc session.Locator) (orders.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.user(ctx, sid)
	if err != nil {
		return orders.User{}, err
	}
	lat, lng, err := loc.Locate(ctx)
	if errors.Is(err, session.ErrPermissionDenied) {
		a.d.Logger.WithField("user_id", u.ID).Warn("Location access denied")
		return u, nil
	}
	if err != nil {
		return orders.User{}, fmt.Errorf("locate: %w", err)
	}
	u.Lat, u.Lng = &lat, &lng

	if u.Role == orders.RoleMerchant {
		if _, err := a.saveMerchant(ctx, sid, u); err != nil {
			return orders.User{}, err
		}
		return u, nil
	}
	if err := a.d.Sessions.Save(ctx, sid, u); err != nil {
		return orders.User{}, err
	}
	return u, nil
}
