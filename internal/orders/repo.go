package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repo needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the durable Ledger backed by the orders table.
type Repo struct{ DB DB }

var _ Ledger = (*Repo)(nil)

const orderColumns = `id, customer_id, merchant_id, product_id, product_name, unit_price, currency, status, estimated_minutes, created_at, order_type`

func (r *Repo) Append(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, customer_id, merchant_id, product_id, product_name, unit_price, currency,
		                   status, estimated_minutes, created_at, order_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.CustomerID, o.MerchantID, o.ProductID, o.ProductName, o.UnitPrice, o.Currency,
		string(o.Status), o.EstimatedMinutes, o.CreatedAt, string(o.Type),
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, err
}

// SetStatus is a compare-and-set on status, so concurrent transitions of the
// same order cannot both win.
func (r *Repo) SetStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderColumns, id, string(from), string(to))
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, err
	}
	// distinguish a missing order from a lost race
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return Order{}, getErr
	}
	return Order{}, &ValidationError{
		Field:  "status",
		Reason: fmt.Sprintf("order %s is no longer %s", id, from),
		Err:    ErrIllegalTransition,
	}
}

func (r *Repo) ByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
}

func (r *Repo) ByMerchant(ctx context.Context, merchantID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE merchant_id=$1 ORDER BY created_at DESC`, merchantID)
}

func (r *Repo) list(ctx context.Context, sql string, arg string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o            Order
		status, kind string
		createdAt    time.Time
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.MerchantID, &o.ProductID, &o.ProductName, &o.UnitPrice, &o.Currency,
		&status, &o.EstimatedMinutes, &createdAt, &kind)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.Type = OrderType(kind)
	o.CreatedAt = createdAt
	return o, nil
}
