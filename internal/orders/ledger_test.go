package orders

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	first := Order{ID: "o1", CustomerID: "c1", MerchantID: "m1", Status: StatusPending, CreatedAt: t0}
	second := Order{ID: "o2", CustomerID: "c2", MerchantID: "m1", Status: StatusPending, CreatedAt: t0}
	if err := l.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, first); err == nil {
		t.Fatal("duplicate id should be rejected")
	}

	byMerchant, _ := l.ByMerchant(ctx, "m1")
	if len(byMerchant) != 2 || byMerchant[0].ID != "o2" {
		t.Fatalf("ByMerchant = %+v, want newest first", byMerchant)
	}
	byCustomer, _ := l.ByCustomer(ctx, "c1")
	if len(byCustomer) != 1 || byCustomer[0].ID != "o1" {
		t.Fatalf("ByCustomer = %+v", byCustomer)
	}
	none, _ := l.ByCustomer(ctx, "nobody")
	if none == nil || len(none) != 0 {
		t.Fatalf("ByCustomer(nobody) = %#v, want empty slice", none)
	}

	got, err := l.SetStatus(ctx, "o1", StatusPending, StatusAccepted)
	if err != nil || got.Status != StatusAccepted {
		t.Fatalf("SetStatus: %v %+v", err, got)
	}
	if _, err := l.SetStatus(ctx, "o1", StatusPending, StatusCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("stale SetStatus err = %v, want ErrIllegalTransition", err)
	}
	if _, err := l.SetStatus(ctx, "missing", StatusPending, StatusAccepted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing SetStatus err = %v, want ErrNotFound", err)
	}

	stored, err := l.Get(ctx, "o1")
	if err != nil || stored.Status != StatusAccepted {
		t.Fatalf("Get: %v %+v", err, stored)
	}
	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}
}

func TestMemoryLedgerReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.Append(ctx, Order{ID: "o1", CustomerID: "c1", Status: StatusPending})

	list, _ := l.ByCustomer(ctx, "c1")
	list[0].Status = StatusCompleted

	stored, _ := l.Get(ctx, "o1")
	if stored.Status != StatusPending {
		t.Fatalf("ledger mutated through returned slice: %s", stored.Status)
	}
}
