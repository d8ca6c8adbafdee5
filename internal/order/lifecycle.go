package order

import "github.com/MikeMC777/storefront-ecom/internal/apperr"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type RefundStatus string

const (
	RefundNone       RefundStatus = "none"
	RefundProcessing RefundStatus = "processing"
)

const defaultCancelReason = "User cancelled"

var ErrInvalidTransition = apperr.New(apperr.InvalidTransition, "order cannot be cancelled in its current state")

// Cancellable reports whether an order in s may still be cancelled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusPaid, StatusProcessing:
		return true
	}
	return false
}

// Transition is a status change together with the auxiliary fields it sets.
// From guards the write: it only applies if the order is still in From.
type Transition struct {
	From         Status
	To           Status
	Reason       string
	RefundStatus RefundStatus
	Restock      bool
}

// CancelTransition computes the cancellation of an order currently in from.
// Paid orders owe a refund; pending cash-on-delivery orders do not.
func CancelTransition(from Status, reason string) (Transition, error) {
	if !from.Cancellable() {
		return Transition{}, ErrInvalidTransition
	}
	if reason == "" {
		reason = defaultCancelReason
	}
	refund := RefundNone
	if from == StatusPaid {
		refund = RefundProcessing
	}
	return Transition{
		From:         from,
		To:           StatusCancelled,
		Reason:       reason,
		RefundStatus: refund,
		Restock:      true,
	}, nil
}
