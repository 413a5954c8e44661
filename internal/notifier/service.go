// Package notifier derives customer notifications from order status events
// published by the API.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/burelanicolas23/24seven/internal/kafka"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/redisx"
)

type Service struct {
	Redis       redis.Cmdable
	Center      *notify.Center
	ServiceName string
	Logger      *logrus.Logger
	Now         func() time.Time
}

// HandleStatusChanged is installed as the consumer handler. Each event is
// processed at most once across restarts, keyed by its event id.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		return err
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := redisx.MarkOnce(ctx, s.Redis, key, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.Logger.WithField("event_id", env.EventID).Debug("Skipping duplicate event")
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	fresh := s.Center.ObserveCustomer(ctx, p.Order.CustomerID, []orders.Order{p.Order}, now)
	s.Logger.WithFields(logrus.Fields{
		"order_id":      p.Order.ID,
		"from":          p.From,
		"to":            p.To,
		"notifications": len(fresh),
	}).Info("Status change processed")
	return nil
}
