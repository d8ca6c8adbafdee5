// Package product provides the catalog: products, their variants and the
// PostgreSQL repository behind them.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/db"
)

var (
	ErrNotFound        = apperr.New(apperr.NotFound, "product not found")
	ErrVariantNotFound = apperr.New(apperr.NotFound, "product variant not found")
)

type Query struct {
	Q      string
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context, q Query) ([]Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetVariant(ctx context.Context, id int64) (*Variant, error)
	Count(ctx context.Context) (int, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// Create inserts the product and its variants in one transaction, filling
// the generated ids back into p.
func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	images, err := json.Marshal(nonNil(p.Images))
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO products (name, slug, price, description, micro_story, images, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id, created_at, updated_at
		`, p.Name, p.Slug, p.Price.StringFixed(2), p.Description, p.MicroStory, images, p.IsActive,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		for i := range p.Variants {
			v := &p.Variants[i]
			v.ProductID = p.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO product_variants (product_id, color, sku, stock_quantity)
				VALUES ($1,$2,$3,$4)
				RETURNING id
			`, v.ProductID, v.Color, v.SKU, v.StockQuantity).Scan(&v.ID); err != nil {
				return fmt.Errorf("insert variant %s: %w", v.SKU, err)
			}
		}
		return nil
	})
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	search := strings.TrimSpace(q.Q)

	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		  AND ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Variants, err = r.variants(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PGRepo) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE slug=$1
	`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Variants, err = r.variants(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PGRepo) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var v Variant
	err := r.db.QueryRow(ctx, `
		SELECT id, product_id, color, sku, stock_quantity
		FROM product_variants WHERE id=$1
	`, id).Scan(&v.ID, &v.ProductID, &v.Color, &v.SKU, &v.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant %d: %w", id, err)
	}
	return &v, nil
}

func (r *PGRepo) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *PGRepo) variants(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, color, sku, stock_quantity
		FROM product_variants WHERE product_id=$1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	out := []Variant{}
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color, &v.SKU, &v.StockQuantity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const productColumns = `id, name, slug, price::text, description, micro_story, images, is_active, created_at, updated_at`

// ScanProduct reads productColumns from row. Exported for the cart and order
// repositories, which join products into their own queries.
func ScanProduct(row pgx.Row, extra ...any) (*Product, error) {
	var (
		p      Product
		price  string
		images []byte
	)
	dest := append([]any{&p.ID, &p.Name, &p.Slug, &price, &p.Description, &p.MicroStory, &images, &p.IsActive, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := p.decode(price, images); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProduct(row pgx.Row) (*Product, error) { return ScanProduct(row) }

// Columns returns productColumns qualified with alias.
func Columns(alias string) string {
	cols := strings.Split(productColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func (p *Product) decode(price string, images []byte) error {
	var err error
	if p.Price, err = ParsePrice(price); err != nil {
		return err
	}
	p.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return fmt.Errorf("decode images: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
