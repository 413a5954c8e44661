package orders

import (
	"context"
	"fmt"
	"sync"
)

// Ledger is the append-only order list. Listings are newest first.
type Ledger interface {
	Append(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// SetStatus moves the order from `from` to `to`. It fails with
	// ErrIllegalTransition when the stored status is no longer `from`.
	SetStatus(ctx context.Context, id string, from, to Status) (Order, error)
	ByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ByMerchant(ctx context.Context, merchantID string) ([]Order, error)
}

// MemoryLedger keeps orders for the life of the process only.
type MemoryLedger struct {
	mu     sync.RWMutex
	orders []Order // newest first
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, o Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.orders {
		if existing.ID == o.ID {
			return fmt.Errorf("append order %s: duplicate id", o.ID)
		}
	}
	l.orders = append([]Order{o}, l.orders...)
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

func (l *MemoryLedger) SetStatus(_ context.Context, id string, from, to Status) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.orders {
		if l.orders[i].ID != id {
			continue
		}
		if l.orders[i].Status != from {
			return Order{}, &ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("order %s is %s, not %s", id, l.orders[i].Status, from),
				Err:    ErrIllegalTransition,
			}
		}
		l.orders[i].Status = to
		return l.orders[i], nil
	}
	return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

func (l *MemoryLedger) ByCustomer(_ context.Context, customerID string) ([]Order, error) {
	return l.filter(func(o Order) bool { return o.CustomerID == customerID }), nil
}

func (l *MemoryLedger) ByMerchant(_ context.Context, merchantID string) ([]Order, error) {
	return l.filter(func(o Order) bool { return o.MerchantID == merchantID }), nil
}

func (l *MemoryLedger) filter(keep func(Order) bool) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range l.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
