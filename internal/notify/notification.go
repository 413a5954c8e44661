// Package notify derives short-lived messages from order state and delivers
// them to connected clients.
package notify

import (
	"fmt"
	"time"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// Message types pushed to clients.
const (
	TypeNotification = "notification"
	TypeBoard        = "notifications"
	TypeCountdown    = "orders.countdown"
	TypeChime        = "chime"
)

type Notification struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"orderId,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Key identifies one (order, status) message.
func Key(o orders.Order) string {
	return fmt.Sprintf("%s-%s", o.ID, o.Status)
}

// CustomerMessage is the text shown to the customer for o, if any.
func CustomerMessage(o orders.Order, now time.Time) (string, bool) {
	switch o.Status {
	case orders.StatusAccepted:
		return fmt.Sprintf("%s is being prepared. About %d min remaining.", o.ProductName, orders.Remaining(o, now)), true
	case orders.StatusReady:
		return fmt.Sprintf("Your %s order is ready! Come pick it up.", o.ProductName), true
	}
	return "", false
}

// PendingCount counts orders the merchant still has to prepare.
func PendingCount(list []orders.Order) int {
	n := 0
	for _, o := range list {
		if o.Status.Active() {
			n++
		}
	}
	return n
}

func MerchantMessage(pending int) string {
	return fmt.Sprintf("Attention: you have %d pending orders to prepare.", pending)
}
