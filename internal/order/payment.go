package order

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
)

type Provider string

const (
	ProviderUPI      Provider = "upi_mock"
	ProviderRazorpay Provider = "razorpay_mock"
	ProviderStripe   Provider = "stripe_mock"
	ProviderCOD      Provider = "cod"
)

var ErrInvalidProvider = apperr.New(apperr.ValidationFailed, "payment provider must be one of upi_mock, razorpay_mock, stripe_mock, cod")

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.TrimSpace(s)); p {
	case ProviderUPI, ProviderRazorpay, ProviderStripe, ProviderCOD:
		return p, nil
	}
	return "", ErrInvalidProvider
}

// PaymentOutcome is the deterministic result of the mock gateway.
type PaymentOutcome struct {
	OrderStatus Status
	Payment     *Payment // nil for cash on delivery
}

// MockPayment never calls out. Cash on delivery leaves the order pending
// with no payment record; every other provider succeeds immediately.
func MockPayment(p Provider) PaymentOutcome {
	if p == ProviderCOD {
		return PaymentOutcome{OrderStatus: StatusPending}
	}
	ref := "mock_" + string(p) + "_" + strings.ToLower(ulid.Make().String())
	return PaymentOutcome{
		OrderStatus: StatusPaid,
		Payment: &Payment{
			Provider:   p,
			Status:     PaymentSuccess,
			ExternalID: &ref,
		},
	}
}
