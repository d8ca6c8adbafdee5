package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/order"
	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/testutil"
)

type fixture struct {
	store    *testutil.MemStore
	carts    *cart.Service
	orders   *order.Service
	product  *product.Product
	black    int64
	beige    int64
	customer access.Principal
	cartID   int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := testutil.NewMemStore()
	p := store.AddProduct("Urban Essential", "799.00",
		testutil.VariantSpec{Color: "Black", Stock: 5},
		testutil.VariantSpec{Color: "Beige", Stock: 5},
	)
	carts := cart.NewService(store.Carts(), store.Products(), nil)
	u := store.AddUser("ana@example.com", access.Customer)
	c, err := carts.CurrentForUser(context.Background(), u.ID)
	require.NoError(t, err)
	return fixture{
		store:    store,
		carts:    carts,
		orders:   order.NewService(store.Orders(), store.Carts(), nil),
		product:  p,
		black:    p.Variants[0].ID,
		beige:    p.Variants[1].ID,
		customer: u.Principal(),
		cartID:   c.ID,
	}
}

func (f fixture) add(t *testing.T, variantID int64, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), f.cartID, variantID, qty)
	require.NoError(t, err)
}

func (f fixture) checkout(t *testing.T, provider string) *order.Order {
	t.Helper()
	o, err := f.orders.Checkout(context.Background(), f.customer, f.cartID, provider)
	require.NoError(t, err)
	return o
}

func TestCheckoutPaid(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 2)
	f.add(t, f.beige, 1)

	o := f.checkout(t, "upi_mock")

	assert.Equal(t, order.StatusPaid, o.Status)
	assert.Equal(t, "2397.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, f.customer.UserID, o.UserID)
	require.Len(t, o.Items, 2)
	require.NotNil(t, o.Payment)
	assert.Equal(t, order.PaymentSuccess, o.Payment.Status)
	assert.Equal(t, 3, f.store.Stock(f.black))
	assert.Equal(t, 4, f.store.Stock(f.beige))
	assert.Empty(t, f.store.CartItems(f.cartID), "el carrito debía vaciarse")
}

func TestCheckoutCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)

	o := f.checkout(t, "cod")

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Nil(t, o.Payment)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Checkout(context.Background(), f.customer, f.cartID, "upi_mock")

	assert.ErrorIs(t, err, order.ErrEmptyCart)
	assert.Equal(t, "Cart is empty", apperr.Message(err))
	assert.Zero(t, f.store.OrderCount())
}

func TestCheckoutRejects(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	ctx := context.Background()

	_, err := f.orders.Checkout(ctx, access.Principal{}, f.cartID, "upi_mock")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	_, err = f.orders.Checkout(ctx, f.customer, f.cartID, "bitcoin")
	assert.ErrorIs(t, err, order.ErrInvalidProvider)

	assert.Zero(t, f.store.OrderCount())
	assert.Len(t, f.store.CartItems(f.cartID), 1)
}

func TestCheckoutOutOfStockCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.beige, 1)
	f.add(t, f.black, 3)
	f.store.SetStock(f.black, 2)

	_, err := f.orders.Checkout(context.Background(), f.customer, f.cartID, "upi_mock")

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.OutOfStock))
	assert.Contains(t, apperr.Message(err), "Urban Essential (Black)")
	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.OrderItemCount())
	assert.Equal(t, 5, f.store.Stock(f.beige))
	assert.Equal(t, 2, f.store.Stock(f.black))
	assert.Len(t, f.store.CartItems(f.cartID), 2)
}

func TestCheckoutStoreFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	f.store.PlaceErr = errors.New("connection reset")

	_, err := f.orders.Checkout(context.Background(), f.customer, f.cartID, "stripe_mock")

	require.Error(t, err)
	assert.Zero(t, f.store.OrderCount())
	assert.Equal(t, 5, f.store.Stock(f.black))
	assert.Len(t, f.store.CartItems(f.cartID), 1)
}

// editingCart runs edit right after the cart was read, as a second tab
// mutating the cart mid-checkout would.
type editingCart struct {
	order.CartSource
	edit func()
}

func (e editingCart) ListItems(ctx context.Context, cartID int64) ([]cart.Line, error) {
	lines, err := e.CartSource.ListItems(ctx, cartID)
	e.edit()
	return lines, err
}

func TestCheckoutKeepsLineAddedMidway(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	orders := order.NewService(f.store.Orders(), editingCart{
		CartSource: f.store.Carts(),
		edit:       func() { f.add(t, f.beige, 2) },
	}, nil)

	o, err := orders.Checkout(context.Background(), f.customer, f.cartID, "upi_mock")
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, f.black, o.Items[0].VariantID)
	left := f.store.CartItems(f.cartID)
	require.Len(t, left, 1, "la línea agregada durante el checkout debía quedar en el carrito")
	assert.Equal(t, f.beige, left[0].VariantID)
	assert.Equal(t, 2, left[0].Quantity)
	assert.Equal(t, 5, f.store.Stock(f.beige))
	assert.Equal(t, 4, f.store.Stock(f.black))
}

func TestCheckoutAbortsWhenLineChangedMidway(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	itemID := f.store.CartItems(f.cartID)[0].ID
	orders := order.NewService(f.store.Orders(), editingCart{
		CartSource: f.store.Carts(),
		edit: func() {
			require.NoError(t, f.carts.UpdateItem(context.Background(), f.cartID, itemID, 3))
		},
	}, nil)

	_, err := orders.Checkout(context.Background(), f.customer, f.cartID, "upi_mock")

	assert.ErrorIs(t, err, cart.ErrCartChanged)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Zero(t, f.store.OrderCount())
	assert.Equal(t, 5, f.store.Stock(f.black))
	left := f.store.CartItems(f.cartID)
	require.Len(t, left, 1)
	assert.Equal(t, 3, left[0].Quantity)

	// a retry orders the current cart
	o := f.checkout(t, "upi_mock")
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Empty(t, f.store.CartItems(f.cartID))
}

func TestCheckoutSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 2)
	o := f.checkout(t, "razorpay_mock")

	f.store.SetPrice(f.product.ID, "999.00")

	got, err := f.orders.Get(context.Background(), f.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "799.00", got.Items[0].PriceAtPurchase.StringFixed(2))
	assert.Equal(t, "1598.00", got.TotalAmount.StringFixed(2))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	store := testutil.NewMemStore()
	p := store.AddProduct("Urban Essential", "799.00", testutil.VariantSpec{Color: "Black", Stock: 3})
	vid := p.Variants[0].ID
	carts := cart.NewService(store.Carts(), store.Products(), nil)
	orders := order.NewService(store.Orders(), store.Carts(), nil)
	ctx := context.Background()

	const buyers = 6
	principals := make([]access.Principal, buyers)
	cartIDs := make([]int64, buyers)
	for i := range principals {
		u := store.AddUser(string(rune('a'+i))+"@example.com", access.Customer)
		c, err := carts.CurrentForUser(ctx, u.ID)
		require.NoError(t, err)
		_, err = carts.AddItem(ctx, c.ID, vid, 1)
		require.NoError(t, err)
		principals[i], cartIDs[i] = u.Principal(), c.ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := orders.Checkout(ctx, principals[i], cartIDs[i], "upi_mock"); err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, placed)
	assert.Equal(t, 0, store.Stock(vid))
}

func TestCancelPaidOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 2)
	o := f.checkout(t, "upi_mock")

	got, err := f.orders.Cancel(context.Background(), f.customer, o.ID, "")
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, got.Status)
	require.NotNil(t, got.RefundStatus)
	assert.Equal(t, order.RefundProcessing, *got.RefundStatus)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "User cancelled", *got.CancellationReason)
	assert.Equal(t, 5, f.store.Stock(f.black))
}

func TestCancelPendingOrderNoRefund(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	o := f.checkout(t, "cod")

	got, err := f.orders.Cancel(context.Background(), f.customer, o.ID, "wrong size")
	require.NoError(t, err)

	require.NotNil(t, got.RefundStatus)
	assert.Equal(t, order.RefundNone, *got.RefundStatus)
	assert.Equal(t, "wrong size", *got.CancellationReason)
}

func TestCancelTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	o := f.checkout(t, "upi_mock")
	ctx := context.Background()

	_, err := f.orders.Cancel(ctx, f.customer, o.ID, "")
	require.NoError(t, err)
	_, err = f.orders.Cancel(ctx, f.customer, o.ID, "")

	assert.True(t, apperr.Is(err, apperr.InvalidTransition), "esperaba InvalidTransition, got %v", err)
	assert.Equal(t, 5, f.store.Stock(f.black), "el stock no debía reponerse dos veces")
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.black, 1)
	o := f.checkout(t, "upi_mock")
	ctx := context.Background()

	stranger := f.store.AddUser("luis@example.com", access.Customer).Principal()
	employee := f.store.AddUser("staff@example.com", access.Employee).Principal()

	_, err := f.orders.Get(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
	_, err = f.orders.Cancel(ctx, stranger, o.ID, "")
	assert.ErrorIs(t, err, order.ErrNotFound)

	got, err := f.orders.Get(ctx, employee, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.orders.Get(ctx, access.Principal{}, o.ID)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	_, err = f.orders.Get(ctx, f.customer, 424242)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, f.black, 1)
	f.checkout(t, "upi_mock")

	other := f.store.AddUser("luis@example.com", access.Customer)
	c, err := f.carts.CurrentForUser(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, f.beige, 1)
	require.NoError(t, err)
	_, err = f.orders.Checkout(ctx, other.Principal(), c.ID, "cod")
	require.NoError(t, err)

	mine, err := f.orders.List(ctx, f.customer, 20, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	admin := f.store.AddUser("admin@example.com", access.Admin).Principal()
	all, err := f.orders.List(ctx, admin, 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Greater(t, all[0].ID, all[1].ID, "esperaba orden descendente")

	_, err = f.orders.List(ctx, access.Principal{}, 20, 0)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}
