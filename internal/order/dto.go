package order

// CreateOrderRequest payload of checkout. The cart of the caller is ordered.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	PaymentProvider string `json:"paymentProvider" example:"upi_mock" enums:"upi_mock,razorpay_mock,stripe_mock,cod"`
}

// CancelOrderRequest payload of cancellation.
// swagger:model CancelOrderRequest
type CancelOrderRequest struct {
	Reason string `json:"reason" example:"Changed my mind"`
}

// ListResponse represents a page of orders.
// swagger:model
type ListResponse struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Order `json:"items"`
}
