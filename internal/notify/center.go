package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// Sink delivers a typed payload to every connection of one user.
type Sink interface {
	SendTo(userID, messageType string, data any)
}

// Chime plays the new-notification sound for a user. Failures are ignored.
type Chime func(ctx context.Context, userID string) error

type Options struct {
	Cap   int
	TTL   time.Duration
	Chime Chime
}

type customerFeed struct {
	deriver *Deriver
	board   *Board
}

// Center holds the notification state of every user seen so far: a deriver
// and expiring board per customer, a non-expiring board per merchant.
type Center struct {
	mu        sync.Mutex
	opts      Options
	customers map[string]*customerFeed
	retired   map[string][]orders.Order
	merchants map[string]*Board
	sink      Sink
	logger    *logrus.Logger
}

func NewCenter(opts Options, sink Sink, logger *logrus.Logger) *Center {
	return &Center{
		opts:      opts,
		customers: make(map[string]*customerFeed),
		retired:   make(map[string][]orders.Order),
		merchants: make(map[string]*Board),
		sink:      sink,
		logger:    logger,
	}
}

func (c *Center) feed(customerID string) *customerFeed {
	f, ok := c.customers[customerID]
	if !ok {
		f = &customerFeed{deriver: NewDeriver(), board: NewBoard(c.opts.Cap, c.opts.TTL)}
		if past, ok := c.retired[customerID]; ok {
			f.deriver.Settle(past)
			delete(c.retired, customerID)
		}
		c.customers[customerID] = f
	}
	return f
}

// ObserveCustomer derives notifications for the customer's orders, shows the
// new ones and chimes once if there were any.
func (c *Center) ObserveCustomer(ctx context.Context, customerID string, list []orders.Order, now time.Time) []Notification {
	c.mu.Lock()
	f := c.feed(customerID)
	fresh := f.deriver.Derive(list, now)
	pushed := make([]Notification, 0, len(fresh))
	for _, n := range fresh {
		pushed = append(pushed, f.board.Push(n, now))
	}
	c.mu.Unlock()

	if len(pushed) == 0 {
		return nil
	}
	for _, n := range pushed {
		c.sink.SendTo(customerID, TypeNotification, n)
	}
	c.chime(ctx, customerID)
	return pushed
}

// ObserveMerchant shows the pending-orders notice when the merchant has work
// queued and the same notice is not already on the board.
func (c *Center) ObserveMerchant(merchantID string, list []orders.Order, now time.Time) (Notification, bool) {
	pending := PendingCount(list)
	if pending == 0 {
		return Notification{}, false
	}
	msg := MerchantMessage(pending)

	c.mu.Lock()
	b, ok := c.merchants[merchantID]
	if !ok {
		b = NewBoard(c.opts.Cap, 0)
		c.merchants[merchantID] = b
	}
	if b.HasMessage(msg) {
		c.mu.Unlock()
		return Notification{}, false
	}
	n := b.Push(Notification{ID: merchantID + "-pending-" + now.Format("150405.000"), Message: msg}, now)
	c.mu.Unlock()

	c.sink.SendTo(merchantID, TypeNotification, n)
	return n, true
}

// Visible returns the user's board, newest first.
func (c *Center) Visible(userID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.customers[userID]; ok {
		return f.board.Visible()
	}
	if b, ok := c.merchants[userID]; ok {
		return b.Visible()
	}
	return []Notification{}
}

// Customers lists the customers with notification state.
func (c *Center) Customers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.customers))
	for id := range c.customers {
		ids = append(ids, id)
	}
	return ids
}

// Prune drops the customer's feed once its board is empty. history holds the
// customer's finished orders; they are remembered as already notified so a
// later feed does not fire them again.
func (c *Center) Prune(customerID string, history []orders.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.customers[customerID]
	if !ok || len(f.board.Visible()) > 0 {
		return false
	}
	past := make([]orders.Order, 0, len(history))
	for _, o := range history {
		past = append(past, orders.Order{ID: o.ID, Status: o.Status})
	}
	delete(c.customers, customerID)
	c.retired[customerID] = past
	return true
}

// Evict expires notifications and sends the new board to every user whose
// board changed.
func (c *Center) Evict(now time.Time) int {
	c.mu.Lock()
	changed := map[string][]Notification{}
	total := 0
	for id, f := range c.customers {
		if n := f.board.Evict(now); n > 0 {
			total += n
			changed[id] = f.board.Visible()
		}
	}
	c.mu.Unlock()

	for id, board := range changed {
		c.sink.SendTo(id, TypeBoard, board)
	}
	return total
}

// Tick evicts expired notifications. It lets a Refresher drive eviction.
func (c *Center) Tick(_ context.Context, now time.Time) error {
	c.Evict(now)
	return nil
}

// Forget drops all state for the user.
func (c *Center) Forget(userID string) {
	c.mu.Lock()
	delete(c.customers, userID)
	delete(c.retired, userID)
	delete(c.merchants, userID)
	c.mu.Unlock()
}

func (c *Center) chime(ctx context.Context, userID string) {
	if c.opts.Chime == nil {
		return
	}
	if err := c.opts.Chime(ctx, userID); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Debug("Chime failed")
	}
}

// LogSink writes every delivery to the logger. Used where no client is
// connected to receive pushes.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) SendTo(userID, messageType string, data any) {
	s.Logger.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    messageType,
		"data":    data,
	}).Info("Notification")
}
