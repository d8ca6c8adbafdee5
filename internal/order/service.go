package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
)

var ErrEmptyCart = apperr.New(apperr.EmptyCart, "Cart is empty")

// CartSource is what checkout reads from the cart store.
type CartSource interface {
	ListItems(ctx context.Context, cartID int64) ([]cart.Line, error)
}

type Service struct {
	repo  Repository
	carts CartSource
	log   *zap.Logger
	pay   func(Provider) PaymentOutcome
}

func NewService(repo Repository, carts CartSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, carts: carts, log: log, pay: MockPayment}
}

// Checkout turns the caller's cart into an order. Validation happens up
// front; the repository re-checks stock and the cart lines while committing.
func (s *Service) Checkout(ctx context.Context, caller access.Principal, cartID int64, provider string) (*Order, error) {
	if err := access.RequireUser(caller); err != nil {
		return nil, err
	}
	prov, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}

	lines, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	labels := make(map[int64]string, len(lines))
	for _, l := range lines {
		labels[l.VariantID] = label(l)
		if l.Variant.StockQuantity < l.Quantity {
			return nil, apperr.Newf(apperr.OutOfStock, "Product %s is out of stock", labels[l.VariantID])
		}
	}

	total := decimal.Zero
	items := make([]Item, 0, len(lines))
	taken := make([]cart.Item, 0, len(lines))
	for _, l := range lines {
		taken = append(taken, l.Item)
		total = total.Add(l.Subtotal())
		items = append(items, Item{
			VariantID:       l.VariantID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price(),
		})
	}

	outcome := s.pay(prov)
	o, err := s.repo.Place(ctx, Placement{
		Order: &Order{
			UserID:          caller.UserID,
			Status:          outcome.OrderStatus,
			TotalAmount:     total,
			PaymentProvider: prov,
			Items:           items,
		},
		Payment: outcome.Payment,
		CartID:  cartID,
		Taken:   taken,
		Labels:  labels,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.String("status", string(o.Status)),
		zap.String("provider", string(o.PaymentProvider)),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.Int("items", len(o.Items)))
	return o, nil
}

// List returns every order for staff and the caller's own orders otherwise.
func (s *Service) List(ctx context.Context, caller access.Principal, limit, offset int) ([]Order, error) {
	if err := access.RequireUser(caller); err != nil {
		return nil, err
	}
	if access.CanListAllOrders(caller.Role) {
		return s.repo.ListAll(ctx, limit, offset)
	}
	return s.repo.ListByUser(ctx, caller.UserID, limit, offset)
}

// Get hides orders the caller may not see behind ErrNotFound.
func (s *Service) Get(ctx context.Context, caller access.Principal, id int64) (*Order, error) {
	if err := access.RequireUser(caller); err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewOrder(caller, o.UserID) {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) Cancel(ctx context.Context, caller access.Principal, id int64, reason string) (*Order, error) {
	o, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	t, err := CancelTransition(o.Status, reason)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Apply(ctx, id, t)
	if err != nil {
		return nil, err
	}
	s.log.Info("order cancelled",
		zap.Int64("order_id", id),
		zap.Int64("by", caller.UserID),
		zap.String("from", string(t.From)),
		zap.String("refund_status", string(t.RefundStatus)))
	return updated, nil
}

func label(l cart.Line) string {
	return fmt.Sprintf("%s (%s)", l.Variant.Product.Name, l.Variant.Color)
}
