// Package cart owns carts and their items: the store, the service used by
// the HTTP boundary and the reconciliation of guest carts at login.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/db"
	"github.com/MikeMC777/storefront-ecom/internal/product"
)

var (
	ErrNotFound          = apperr.New(apperr.NotFound, "cart not found")
	ErrItemNotFound      = apperr.New(apperr.NotFound, "cart item not found")
	ErrInsufficientStock = apperr.New(apperr.OutOfStock, "product is out of stock")
	ErrUserNotFound      = apperr.New(apperr.NotFound, "user not found")
	ErrCartChanged       = apperr.New(apperr.Conflict, "cart changed during checkout, please retry")
)

type Repository interface {
	CreateGuest(ctx context.Context) (*Cart, error)
	// EnsureForUser returns the user's cart, creating it when the user has
	// none. Concurrent calls for one user agree on a single cart.
	EnsureForUser(ctx context.Context, userID int64) (*Cart, error)
	GetByID(ctx context.Context, id int64) (*Cart, error)
	// LatestByUser returns the user's current cart or ErrNotFound.
	LatestByUser(ctx context.Context, userID int64) (*Cart, error)
	// AddItem adds qty to the (cart, variant) line, creating it if needed.
	// It fails with ErrInsufficientStock when the resulting quantity would
	// exceed the variant's stock.
	AddItem(ctx context.Context, cartID, variantID int64, qty int) (*Item, error)
	SetQuantity(ctx context.Context, cartID, itemID int64, qty int) (*Item, error)
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
	ListItems(ctx context.Context, cartID int64) ([]Line, error)
	// Reconcile folds the guest cart into the user's current cart as decided
	// by Plan, atomically.
	Reconcile(ctx context.Context, guestCartID, userID int64) (Outcome, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) CreateGuest(ctx context.Context) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return insertCart(ctx, r.db, nil)
}

func (r *PGRepo) EnsureForUser(ctx context.Context, userID int64) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c *Cart
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := latestByUser(ctx, tx, userID, false)
		switch {
		case err == nil:
			c = cur
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}
		c, err = insertCart(ctx, tx, &userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func insertCart(ctx context.Context, q db.Querier, userID *int64) (*Cart, error) {
	c := Cart{UserID: userID}
	if err := q.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		RETURNING id, created_at
	`, userID).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}
	return &c, nil
}

// lockUser serializes cart ownership changes of one user: creation of the
// user's cart and reconciliation.
func lockUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return getCart(ctx, r.db, id, false)
}

func (r *PGRepo) LatestByUser(ctx context.Context, userID int64) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return latestByUser(ctx, r.db, userID, false)
}

func (r *PGRepo) AddItem(ctx context.Context, cartID, variantID int64, qty int) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Single statement: the upsert takes the row lock, so concurrent adds to
	// the same line serialize and the stock guard sees the summed quantity.
	var it Item
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_variant_id, quantity)
		SELECT $1, v.id, $3 FROM product_variants v
		WHERE v.id = $2 AND v.stock_quantity >= $3
		ON CONFLICT (cart_id, product_variant_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= (
			SELECT stock_quantity FROM product_variants WHERE id = EXCLUDED.product_variant_id
		)
		RETURNING id, cart_id, product_variant_id, quantity
	`, cartID, variantID, qty).Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product_variants WHERE id=$1)`, variantID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check variant: %w", err)
		}
		if !exists {
			return nil, product.ErrVariantNotFound
		}
		return nil, ErrInsufficientStock
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return &it, nil
}

func (r *PGRepo) SetQuantity(ctx context.Context, cartID, itemID int64, qty int) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var it Item
	err := r.db.QueryRow(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE id = $1 AND cart_id = $2
		RETURNING id, cart_id, product_variant_id, quantity
	`, itemID, cartID, qty).Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &it, nil
}

func (r *PGRepo) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND cart_id=$2`, itemID, cartID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *PGRepo) Clear(ctx context.Context, cartID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return fmt.Errorf("clear cart %d: %w", cartID, err)
	}
	return nil
}

// TakeTx removes exactly the given lines from the cart through q, matching
// on id and quantity. Lines added or changed after they were read stay in
// the cart and the call fails with ErrCartChanged. The order repository
// calls it inside the checkout transaction.
func TakeTx(ctx context.Context, q db.Querier, cartID int64, lines []Item) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]int64, len(lines))
	qtys := make([]int32, len(lines))
	for i, it := range lines {
		ids[i], qtys[i] = it.ID, int32(it.Quantity)
	}
	tag, err := q.Exec(ctx, `
		DELETE FROM cart_items ci
		USING unnest($2::bigint[], $3::int[]) AS t(id, quantity)
		WHERE ci.cart_id = $1 AND ci.id = t.id AND ci.quantity = t.quantity
	`, cartID, ids, qtys)
	if err != nil {
		return fmt.Errorf("take cart %d: %w", cartID, err)
	}
	if tag.RowsAffected() != int64(len(lines)) {
		return ErrCartChanged
	}
	return nil
}

func (r *PGRepo) ListItems(ctx context.Context, cartID int64) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+product.Columns("p")+`,
		       ci.id, ci.cart_id, ci.product_variant_id, ci.quantity,
		       v.id, v.product_id, v.color, v.sku, v.stock_quantity
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.product_variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	out := []Line{}
	for rows.Next() {
		var l Line
		v := &l.Variant.Variant
		p, err := product.ScanProduct(rows,
			&l.ID, &l.CartID, &l.Item.VariantID, &l.Quantity,
			&v.ID, &v.ProductID, &v.Color, &v.SKU, &v.StockQuantity)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		l.Variant.Product = *p
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) Reconcile(ctx context.Context, guestCartID, userID int64) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	outcome := Noop
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		guest, err := getCart(ctx, tx, guestCartID, true)
		if errors.Is(err, ErrNotFound) {
			guest = nil
		} else if err != nil {
			return err
		}
		current, err := latestByUser(ctx, tx, userID, true)
		if errors.Is(err, ErrNotFound) {
			current = nil
		} else if err != nil {
			return err
		}

		outcome = Plan(guest, current)
		switch outcome {
		case Assign:
			if _, err := tx.Exec(ctx, `UPDATE carts SET user_id=$2 WHERE id=$1 AND user_id IS NULL`, guest.ID, userID); err != nil {
				return fmt.Errorf("assign cart: %w", err)
			}
		case MergeCarts:
			return mergeTx(ctx, tx, guest.ID, current.ID)
		}
		return nil
	})
	if err != nil {
		return Noop, err
	}
	return outcome, nil
}

func mergeTx(ctx context.Context, tx pgx.Tx, guestID, dstID int64) error {
	src, err := itemsTx(ctx, tx, guestID)
	if err != nil {
		return err
	}
	dst, err := itemsTx(ctx, tx, dstID)
	if err != nil {
		return err
	}
	before := make(map[int64]int, len(dst))
	for _, it := range dst {
		before[it.ID] = it.Quantity
	}

	for _, it := range Merge(dstID, dst, src) {
		if it.ID == 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_items (cart_id, product_variant_id, quantity) VALUES ($1,$2,$3)
			`, dstID, it.VariantID, it.Quantity); err != nil {
				return fmt.Errorf("move item: %w", err)
			}
			continue
		}
		if before[it.ID] == it.Quantity {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity=$2 WHERE id=$1`, it.ID, it.Quantity); err != nil {
			return fmt.Errorf("merge item: %w", err)
		}
	}

	// cart_items cascade
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, guestID); err != nil {
		return fmt.Errorf("delete guest cart: %w", err)
	}
	return nil
}

func itemsTx(ctx context.Context, q db.Querier, cartID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, cart_id, product_variant_id, quantity
		FROM cart_items WHERE cart_id=$1 ORDER BY id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func getCart(ctx context.Context, q db.Querier, id int64, lock bool) (*Cart, error) {
	sql := `SELECT id, user_id, created_at FROM carts WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var c Cart
	err := q.QueryRow(ctx, sql, id).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart %d: %w", id, err)
	}
	return &c, nil
}

func latestByUser(ctx context.Context, q db.Querier, userID int64, lock bool) (*Cart, error) {
	sql := `
		SELECT id, user_id, created_at FROM carts
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var c Cart
	err := q.QueryRow(ctx, sql, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest cart of user %d: %w", userID, err)
	}
	return &c, nil
}
