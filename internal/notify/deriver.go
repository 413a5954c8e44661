package notify

import (
	"time"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// stage orders statuses along the lifecycle. Terminal statuses share the
// last stage.
var stage = map[orders.Status]int{
	orders.StatusPending:   0,
	orders.StatusAccepted:  1,
	orders.StatusReady:     2,
	orders.StatusCompleted: 3,
	orders.StatusCancelled: 3,
}

// Deriver turns customer orders into notifications. Each (order, status)
// fires at most once for the life of the Deriver, and an observation older
// than one already seen for the same order is ignored.
type Deriver struct {
	fired  map[string]struct{}
	latest map[string]int
}

func NewDeriver() *Deriver {
	return &Deriver{
		fired:  make(map[string]struct{}),
		latest: make(map[string]int),
	}
}

// Derive returns the notifications not yet fired for list and marks them.
func (d *Deriver) Derive(list []orders.Order, now time.Time) []Notification {
	var out []Notification
	for _, o := range list {
		if d.stale(o) {
			continue
		}
		msg, ok := CustomerMessage(o, now)
		if !ok {
			continue
		}
		key := Key(o)
		if _, seen := d.fired[key]; seen {
			continue
		}
		d.fired[key] = struct{}{}
		out = append(out, Notification{ID: key, OrderID: o.ID, Message: msg})
	}
	return out
}

// stale records o's stage and reports whether a later stage was already
// seen for the order.
func (d *Deriver) stale(o orders.Order) bool {
	s := stage[o.Status]
	if prev, ok := d.latest[o.ID]; ok && s < prev {
		return true
	}
	d.latest[o.ID] = s
	return false
}

// Settle marks every notification list could produce as already fired
// without returning it.
func (d *Deriver) Settle(list []orders.Order) {
	for _, o := range list {
		if !d.stale(o) {
			d.fired[Key(o)] = struct{}{}
		}
	}
}

func (d *Deriver) Fired(key string) bool {
	_, ok := d.fired[key]
	return ok
}
