package cart

import (
	"context"

	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/product"
)

var ErrInvalidQuantity = apperr.New(apperr.ValidationFailed, "quantity must be at least 1")

// VariantLookup is the slice of the catalog the cart needs.
type VariantLookup interface {
	GetVariant(ctx context.Context, id int64) (*product.Variant, error)
}

type Service struct {
	repo     Repository
	variants VariantLookup
	log      *zap.Logger
}

func NewService(repo Repository, variants VariantLookup, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, variants: variants, log: log}
}

// CurrentForUser returns the user's current cart, creating one on first use.
func (s *Service) CurrentForUser(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.repo.LatestByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}
	return s.repo.EnsureForUser(ctx, userID)
}

// NewGuestCart creates an anonymous cart.
func (s *Service) NewGuestCart(ctx context.Context) (*Cart, error) {
	return s.repo.CreateGuest(ctx)
}

// GuestCart returns the cart only if it exists and is still anonymous.
func (s *Service) GuestCart(ctx context.Context, id int64) (*Cart, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Anonymous() {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, cartID, variantID int64, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	v, err := s.variants.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if v.StockQuantity < qty {
		return nil, ErrInsufficientStock
	}
	return s.repo.AddItem(ctx, cartID, variantID, qty)
}

// UpdateItem sets the absolute quantity of a line; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, cartID, itemID int64, qty int) error {
	switch {
	case qty < 0:
		return apperr.New(apperr.ValidationFailed, "quantity must not be negative")
	case qty == 0:
		return s.repo.RemoveItem(ctx, cartID, itemID)
	}
	_, err := s.repo.SetQuantity(ctx, cartID, itemID, qty)
	return err
}

// RemoveItem is idempotent.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	return s.repo.RemoveItem(ctx, cartID, itemID)
}

func (s *Service) Clear(ctx context.Context, cartID int64) error {
	return s.repo.Clear(ctx, cartID)
}

func (s *Service) ListItems(ctx context.Context, cartID int64) ([]Line, error) {
	return s.repo.ListItems(ctx, cartID)
}

func (s *Service) View(ctx context.Context, cartID int64) (*View, error) {
	lines, err := s.repo.ListItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return &View{ID: cartID, Items: lines, Total: Total(lines)}, nil
}

// Reconcile runs once per authentication. guestCartID is the verified id
// from the guest cookie, zero when there was none.
func (s *Service) Reconcile(ctx context.Context, guestCartID, userID int64) error {
	if guestCartID == 0 {
		return nil
	}
	outcome, err := s.repo.Reconcile(ctx, guestCartID, userID)
	if err != nil {
		return err
	}
	if outcome != Noop {
		s.log.Info("guest cart reconciled",
			zap.Int64("guest_cart_id", guestCartID),
			zap.Int64("user_id", userID),
			zap.Stringer("outcome", outcome))
	}
	return nil
}
