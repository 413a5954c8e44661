// Package market is the application state container: every command a client
// can issue runs here, serialized against every other command.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/session"
)

var (
	ErrUnauthenticated = errors.New("no user logged in")
	ErrForbidden       = errors.New("not allowed for this user")
)

type Deps struct {
	Sessions    *session.Store
	Catalog     *catalog.Catalog
	Ledger      orders.Ledger
	Publisher   orders.Publisher
	Center      *notify.Center
	Sink        notify.Sink
	Logger      *logrus.Logger
	ServiceName string
	DefaultPrep int
	Now         func() time.Time
}

type App struct {
	mu sync.Mutex
	d  Deps
}

func New(d Deps) *App {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.DefaultPrep <= 0 {
		d.DefaultPrep = orders.DefaultPrepMinutes
	}
	if d.Publisher == nil {
		d.Publisher = orders.NopPublisher{}
	}
	return &App{d: d}
}

func (a *App) user(ctx context.Context, sid string) (orders.User, error) {
	u, ok, err := a.d.Sessions.Current(ctx, sid)
	if err != nil {
		return orders.User{}, err
	}
	if !ok {
		return orders.User{}, ErrUnauthenticated
	}
	return u, nil
}

func (a *App) userWithRole(ctx context.Context, sid string, role orders.Role) (orders.User, error) {
	u, err := a.user(ctx, sid)
	if err != nil {
		return orders.User{}, err
	}
	if u.Role != role {
		return orders.User{}, fmt.Errorf("%w: requires %s", ErrForbidden, role)
	}
	return u, nil
}

// publish sends an event. Failures are logged and never fail the command.
func (a *App) publish(ctx context.Context, topic, eventType, correlationID string, payload any) {
	log := a.d.Logger.WithFields(logrus.Fields{
		"topic":          topic,
		"event_type":     eventType,
		"correlation_id": correlationID,
	})
	env, err := orders.NewEnvelope(eventType, a.d.ServiceName, correlationID, payload, a.d.Now())
	if err != nil {
		log.WithError(err).Error("Failed to build event")
		return
	}
	if err := a.d.Publisher.Publish(ctx, topic, env); err != nil {
		log.WithError(err).Warn("Failed to publish event")
	}
}
