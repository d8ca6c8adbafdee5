package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront-ecom/internal/product"
)

type Cart struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Anonymous reports whether the cart has no owner yet.
func (c *Cart) Anonymous() bool { return c.UserID == nil }

// OwnedBy reports whether userID owns the cart.
func (c *Cart) OwnedBy(userID int64) bool { return c.UserID != nil && *c.UserID == userID }

type Item struct {
	ID        int64 `json:"id"`
	CartID    int64 `json:"cart_id"`
	VariantID int64 `json:"product_variant_id"`
	Quantity  int   `json:"quantity"`
}

// Line is a cart item enriched with its variant and product, as needed for
// pricing and display.
type Line struct {
	Item
	Variant VariantDetail `json:"variant"`
}

type VariantDetail struct {
	product.Variant
	Product product.Product `json:"product"`
}

func (l Line) Price() decimal.Decimal { return l.Variant.Product.Price }

func (l Line) Subtotal() decimal.Decimal { return product.LineTotal(l.Price(), l.Quantity) }

// View is the cart payload returned to clients.
// swagger:model CartView
type View struct {
	ID    int64           `json:"id"`
	Items []Line          `json:"items"`
	Total decimal.Decimal `json:"total" swaggertype:"string" example:"1598.00"`
}

// AddItemRequest payload of add-to-cart.
// swagger:model AddItemRequest
type AddItemRequest struct {
	VariantID int64 `json:"variantId" example:"1"`
	Quantity  int   `json:"quantity"  example:"2"`
}

// UpdateItemRequest payload of quantity change. Zero removes the line.
// swagger:model UpdateItemRequest
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" example:"3"`
}

// Total sums price × quantity over lines with exact decimal arithmetic.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
