package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront-ecom/internal/cart"
)

type Order struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	Status             Status          `json:"status"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaymentProvider    Provider        `json:"payment_provider"`
	TrackingNumber     *string         `json:"tracking_number"`
	CancellationReason *string         `json:"cancellation_reason"`
	RefundStatus       *RefundStatus   `json:"refund_status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []Item          `json:"items"`
	Payment            *Payment        `json:"payment,omitempty"`
}

// Item is immutable once written: PriceAtPurchase is the unit price at
// checkout time, independent of later catalog changes.
type Item struct {
	ID              int64               `json:"id"`
	OrderID         int64               `json:"order_id"`
	VariantID       int64               `json:"product_variant_id"`
	Quantity        int                 `json:"quantity"`
	PriceAtPurchase decimal.Decimal     `json:"price_at_purchase"`
	Variant         *cart.VariantDetail `json:"variant,omitempty"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
)

type Payment struct {
	ID         int64         `json:"id"`
	OrderID    int64         `json:"order_id"`
	Provider   Provider      `json:"provider"`
	Status     PaymentStatus `json:"status"`
	ExternalID *string       `json:"external_id"`
	CreatedAt  time.Time     `json:"created_at"`
}
