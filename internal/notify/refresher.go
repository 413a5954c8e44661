package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Ticker is the periodic work a Refresher drives.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) error
}

// Refresher calls Tick every interval until ctx is done.
type Refresher struct {
	interval time.Duration
	target   Ticker
	logger   *logrus.Logger
}

func NewRefresher(interval time.Duration, target Ticker, logger *logrus.Logger) *Refresher {
	return &Refresher{interval: interval, target: target, logger: logger}
}

func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := r.target.Tick(ctx, now); err != nil {
				r.logger.WithError(err).Warn("Refresh tick failed")
			}
		}
	}
}
