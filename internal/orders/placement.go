package orders

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultPrepMinutes applies when the customer has no base prep time.
const DefaultPrepMinutes = 5

// EstimatedMinutes is the customer's base prep time plus the product's
// adjustment, never below zero.
func EstimatedMinutes(customer User, p Product, defaultPrep int) int {
	base := customer.BasePrepTime
	if base <= 0 {
		base = defaultPrep
	}
	if m := base + p.PrepTimeAdjustment; m > 0 {
		return m
	}
	return 0
}

// NewOrder builds a PENDING pickup order for one unit of p. It does not touch
// stock; callers decrement it alongside appending the order.
func NewOrder(customer User, p Product, now time.Time, defaultPrep int) (Order, error) {
	if customer.Role != RoleCustomer {
		return Order{}, Invalid("role", "only customers can place orders")
	}
	if p.Stock <= 0 {
		return Order{}, &ValidationError{
			Field:  "stock",
			Reason: fmt.Sprintf("product %s is out of stock", p.ID),
			Err:    ErrOutOfStock,
		}
	}
	return Order{
		ID:               uuid.NewString(),
		CustomerID:       customer.ID,
		MerchantID:       p.MerchantID,
		ProductID:        p.ID,
		ProductName:      p.Name,
		UnitPrice:        p.Price,
		Currency:         p.Currency,
		Status:           StatusPending,
		EstimatedMinutes: EstimatedMinutes(customer, p, defaultPrep),
		CreatedAt:        now,
		Type:             TypePickup,
	}, nil
}

// Remaining is the whole minutes left on the estimate at now, floored at 0.
func Remaining(o Order, now time.Time) int {
	elapsed := now.Sub(o.CreatedAt).Minutes()
	left := math.Ceil(float64(o.EstimatedMinutes) - elapsed)
	if left < 0 {
		return 0
	}
	return int(left)
}

// Transition returns o moved to status to, or a ValidationError wrapping
// ErrIllegalTransition.
func Transition(o Order, to Status) (Order, error) {
	if !to.Valid() {
		return o, Invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	if !CanTransition(o.Status, to) {
		return o, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot move order %s from %s to %s", o.ID, o.Status, to),
			Err:    ErrIllegalTransition,
		}
	}
	o.Status = to
	return o, nil
}
