package notify

import "time"

// Board is the capped list of visible notifications, newest first. Entries
// expire ttl after they were pushed; a zero ttl keeps them until they are
// pushed off the end.
type Board struct {
	cap   int
	ttl   time.Duration
	items []Notification
}

func NewBoard(capacity int, ttl time.Duration) *Board {
	if capacity <= 0 {
		capacity = 1
	}
	return &Board{cap: capacity, ttl: ttl}
}

// Push puts n on top, dropping any older entry for the same order.
func (b *Board) Push(n Notification, now time.Time) Notification {
	n.CreatedAt = now
	if b.ttl > 0 {
		exp := now.Add(b.ttl)
		n.ExpiresAt = &exp
	}
	kept := make([]Notification, 0, b.cap)
	kept = append(kept, n)
	for _, it := range b.items {
		if len(kept) == b.cap {
			break
		}
		if n.OrderID != "" && it.OrderID == n.OrderID {
			continue
		}
		kept = append(kept, it)
	}
	b.items = kept
	return n
}

// Evict drops expired entries and reports how many went.
func (b *Board) Evict(now time.Time) int {
	kept := b.items[:0]
	for _, it := range b.items {
		if it.ExpiresAt != nil && !now.Before(*it.ExpiresAt) {
			continue
		}
		kept = append(kept, it)
	}
	n := len(b.items) - len(kept)
	b.items = kept
	return n
}

func (b *Board) Visible() []Notification {
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Board) HasMessage(msg string) bool {
	for _, it := range b.items {
		if it.Message == msg {
			return true
		}
	}
	return false
}

func (b *Board) HasID(id string) bool {
	for _, it := range b.items {
		if it.ID == id {
			return true
		}
	}
	return false
}
