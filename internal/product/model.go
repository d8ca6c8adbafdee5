package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	MicroStory  string `json:"micro_story"`
	// NUMERIC(10,2) in Postgres, scanned through its text form
	Price     decimal.Decimal `json:"price"`
	Images    []string        `json:"images"`
	IsActive  bool            `json:"is_active"`
	Variants  []Variant       `json:"variants,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Variant struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Color         string `json:"color"`
	SKU           string `json:"sku"`
	StockQuantity int    `json:"stock_quantity"`
}

// ListResponse represents a page of the catalog.
// swagger:model ProductList
type ListResponse struct {
	Q      string    `json:"q,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}
