// Package order implements checkout, the order state machine and the
// PostgreSQL repository for orders, their items and payments.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/db"
	"github.com/MikeMC777/storefront-ecom/internal/product"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "order not found")
)

// Placement is everything checkout writes in one transaction.
type Placement struct {
	Order   *Order // Items filled, ids empty
	Payment *Payment
	CartID  int64
	// Taken are the cart lines the order was built from. Only these leave
	// the cart.
	Taken []cart.Item
	// Labels names variants for out-of-stock messages.
	Labels map[int64]string
}

type Repository interface {
	// Place decrements stock, writes the order, its items and payment and
	// removes the taken lines from the cart, all or nothing. It fails with
	// cart.ErrCartChanged when a taken line changed since it was read.
	Place(ctx context.Context, p Placement) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
	// Apply writes t only if the order is still in t.From.
	Apply(ctx context.Context, id int64, t Transition) (*Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Place(ctx context.Context, p Placement) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o := p.Order
	var id int64
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		// Locks the taken lines, so concurrent edits of them wait for us.
		if err := cart.TakeTx(ctx, tx, p.CartID, p.Taken); err != nil {
			return err
		}

		// Lock variants in id order so concurrent checkouts cannot deadlock.
		items := append([]Item(nil), o.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].VariantID < items[j].VariantID })
		for _, it := range items {
			tag, err := tx.Exec(ctx, `
				UPDATE product_variants
				SET stock_quantity = stock_quantity - $2
				WHERE id = $1 AND stock_quantity >= $2
			`, it.VariantID, it.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return outOfStock(it.VariantID, p.Labels)
			}
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, status, total_amount, payment_provider)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, o.UserID, string(o.Status), o.TotalAmount.StringFixed(2), string(o.PaymentProvider)).Scan(&id); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_variant_id, quantity, price_at_purchase)
				VALUES ($1,$2,$3,$4)
			`, id, it.VariantID, it.Quantity, it.PriceAtPurchase.StringFixed(2)); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if p.Payment != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO payments (order_id, provider, status, external_id)
				VALUES ($1,$2,$3,$4)
			`, id, string(p.Payment.Provider), string(p.Payment.Status), p.Payment.ExternalID); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return getOrder(ctx, r.db, id)
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return getOrder(ctx, r.db, id)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = page(limit, offset)
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = page(limit, offset)
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *PGRepo) Apply(ctx context.Context, id int64, t Transition) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $3,
			    cancellation_reason = COALESCE(NULLIF($4, ''), cancellation_reason),
			    refund_status = COALESCE(NULLIF($5, ''), refund_status),
			    updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, id, string(t.From), string(t.To), t.Reason, string(t.RefundStatus))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// lost a race with another status change
			return ErrInvalidTransition
		}
		if !t.Restock {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE product_variants v
			SET stock_quantity = v.stock_quantity + oi.quantity
			FROM order_items oi
			WHERE oi.order_id = $1 AND v.id = oi.product_variant_id
		`, id); err != nil {
			return fmt.Errorf("restock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return getOrder(ctx, r.db, id)
}

const orderColumns = `id, user_id, status, total_amount::text, payment_provider, tracking_number,
	cancellation_reason, refund_status, created_at, updated_at`

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	items, err := itemsOf(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []Item{}
		}
	}
	return out, nil
}

func getOrder(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := itemsOf(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []Item{}
	}

	var pay Payment
	err = q.QueryRow(ctx, `
		SELECT id, order_id, provider, status, external_id, created_at
		FROM payments WHERE order_id=$1
	`, id).Scan(&pay.ID, &pay.OrderID, &pay.Provider, &pay.Status, &pay.ExternalID, &pay.CreatedAt)
	switch {
	case err == nil:
		o.Payment = &pay
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return o, nil
}

func itemsOf(ctx context.Context, q db.Querier, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT `+product.Columns("p")+`,
		       oi.id, oi.order_id, oi.product_variant_id, oi.quantity, oi.price_at_purchase::text,
		       v.id, v.product_id, v.color, v.sku, v.stock_quantity
		FROM order_items oi
		JOIN product_variants v ON v.id = oi.product_variant_id
		JOIN products p ON p.id = v.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it    Item
			price string
			vd    cart.VariantDetail
		)
		v := &vd.Variant
		p, err := product.ScanProduct(rows,
			&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &price,
			&v.ID, &v.ProductID, &v.Color, &v.SKU, &v.StockQuantity)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if it.PriceAtPurchase, err = product.ParsePrice(price); err != nil {
			return nil, err
		}
		vd.Product = *p
		it.Variant = &vd
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		total  string
		refund *string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &total, &o.PaymentProvider, &o.TrackingNumber,
		&o.CancellationReason, &refund, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.TotalAmount, err = product.ParsePrice(total); err != nil {
		return nil, err
	}
	if refund != nil {
		rs := RefundStatus(*refund)
		o.RefundStatus = &rs
	}
	return &o, nil
}

func outOfStock(variantID int64, labels map[int64]string) error {
	if name, ok := labels[variantID]; ok {
		return apperr.Newf(apperr.OutOfStock, "Product %s is out of stock", name)
	}
	return apperr.Newf(apperr.OutOfStock, "product variant %d is out of stock", variantID)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
