// Package testutil provides an in-memory implementation of the repositories
// with the same atomicity guarantees as the PostgreSQL ones, for tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/order"
	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

type MemStore struct {
	mu     sync.Mutex
	nextID int64
	base   time.Time

	users      map[int64]*user.User
	products   map[int64]*product.Product
	variants   map[int64]*product.Variant
	carts      map[int64]*cart.Cart
	items      map[int64]*cart.Item
	orders     map[int64]*order.Order
	orderItems map[int64]*order.Item
	payments   map[int64]*order.Payment // by order id

	// PlaceErr, when set, makes the next Place fail after validation,
	// as a store outage would.
	PlaceErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		base:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:      map[int64]*user.User{},
		products:   map[int64]*product.Product{},
		variants:   map[int64]*product.Variant{},
		carts:      map[int64]*cart.Cart{},
		items:      map[int64]*cart.Item{},
		orders:     map[int64]*order.Order{},
		orderItems: map[int64]*order.Item{},
		payments:   map[int64]*order.Payment{},
	}
}

func (s *MemStore) Users() user.Repository       { return userRepo{s} }
func (s *MemStore) Products() product.Repository { return productRepo{s} }
func (s *MemStore) Carts() cart.Repository       { return cartRepo{s} }
func (s *MemStore) Orders() order.Repository     { return orderRepo{s} }

// id and clock; callers hold mu
func (s *MemStore) id() (int64, time.Time) {
	s.nextID++
	return s.nextID, s.base.Add(time.Duration(s.nextID) * time.Second)
}

// ---------- fixtures ----------

type VariantSpec struct {
	Color string
	Stock int
}

// AddProduct stores a product with one variant per spec.
func (s *MemStore) AddProduct(name, price string, specs ...VariantSpec) *product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, now := s.id()
	p := &product.Product{
		ID:        id,
		Name:      name,
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Price:     decimal.RequireFromString(price),
		Images:    []string{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.products[id] = p
	for i, sp := range specs {
		vid, _ := s.id()
		v := &product.Variant{ID: vid, ProductID: id, Color: sp.Color, SKU: p.Slug + "-" + string(rune('a'+i)), StockQuantity: sp.Stock}
		s.variants[vid] = v
		p.Variants = append(p.Variants, *v)
	}
	out := *p
	return &out
}

func (s *MemStore) AddUser(email string, role access.Role) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, now := s.id()
	u := &user.User{ID: id, Email: email, Name: email, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.users[id] = u
	out := *u
	return &out
}

// AddOrder stores an empty pending cash-on-delivery order for userID.
func (s *MemStore) AddOrder(userID int64) *order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, now := s.id()
	s.orders[id] = &order.Order{
		ID:              id,
		UserID:          userID,
		Status:          order.StatusPending,
		TotalAmount:     decimal.Zero,
		PaymentProvider: order.ProviderCOD,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.order(id)
}

func (s *MemStore) SetPrice(productID int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productID].Price = decimal.RequireFromString(price)
}

func (s *MemStore) SetStock(variantID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[variantID].StockQuantity = n
}

func (s *MemStore) Stock(variantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variants[variantID].StockQuantity
}

func (s *MemStore) CartExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[id]
	return ok
}

// CartItems returns the raw items of a cart ordered by id.
func (s *MemStore) CartItems(cartID int64) []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartItems(cartID)
}

func (s *MemStore) CartsOf(userID int64) []cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cart.Cart
	for _, c := range s.carts {
		if c.OwnedBy(userID) {
			out = append(out, *c)
		}
	}
	return out
}

func (s *MemStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *MemStore) OrderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderItems)
}

func (s *MemStore) cartItems(cartID int64) []cart.Item {
	var out []cart.Item
	for _, it := range s.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) itemByVariant(cartID, variantID int64) *cart.Item {
	for _, it := range s.items {
		if it.CartID == cartID && it.VariantID == variantID {
			return it
		}
	}
	return nil
}

func (s *MemStore) latest(userID int64) *cart.Cart {
	var best *cart.Cart
	for _, c := range s.carts {
		if !c.OwnedBy(userID) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID > best.ID) {
			best = c
		}
	}
	return best
}

func (s *MemStore) detail(variantID int64) cart.VariantDetail {
	v := s.variants[variantID]
	p := *s.products[v.ProductID]
	p.Variants = nil
	return cart.VariantDetail{Variant: *v, Product: p}
}

// ---------- users ----------

type userRepo struct{ s *MemStore }

func (r userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.users {
		if strings.EqualFold(ex.Email, u.Email) {
			return user.ErrAlreadyExist
		}
	}
	u.ID, u.CreatedAt = r.s.id()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r userRepo) List(_ context.Context) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []user.User{}
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r userRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return false, nil
	}
	for _, o := range r.s.orders {
		if o.UserID == id {
			return false, user.ErrHasOrders
		}
	}
	delete(r.s.users, id)
	return true, nil
}

func (r userRepo) SetRole(_ context.Context, id int64, role access.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Role = role
	return nil
}

// ---------- products ----------

type productRepo struct{ s *MemStore }

func (r productRepo) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID, p.CreatedAt = r.s.id()
	p.UpdatedAt = p.CreatedAt
	for i := range p.Variants {
		p.Variants[i].ID, _ = r.s.id()
		p.Variants[i].ProductID = p.ID
		v := p.Variants[i]
		r.s.variants[v.ID] = &v
	}
	cp := *p
	cp.Variants = nil
	r.s.products[p.ID] = &cp
	return nil
}

func (r productRepo) List(_ context.Context, q product.Query) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []product.Product{}
	for _, p := range r.s.products {
		if !p.IsActive {
			continue
		}
		if q.Q != "" && !containsFold(p.Name, q.Q) && !containsFold(p.Description, q.Q) {
			continue
		}
		out = append(out, r.withVariants(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	limit, offset := q.Limit, q.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []product.Product{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r productRepo) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.Slug == slug {
			out := r.withVariants(p)
			return &out, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r productRepo) GetVariant(_ context.Context, id int64) (*product.Variant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.variants[id]
	if !ok {
		return nil, product.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}

func (r productRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.products), nil
}

func (r productRepo) withVariants(p *product.Product) product.Product {
	out := *p
	out.Variants = nil
	for _, v := range r.s.variants {
		if v.ProductID == p.ID {
			out.Variants = append(out.Variants, *v)
		}
	}
	sort.Slice(out.Variants, func(i, j int) bool { return out.Variants[i].ID < out.Variants[j].ID })
	return out
}

// ---------- carts ----------

type cartRepo struct{ s *MemStore }

func (r cartRepo) CreateGuest(_ context.Context) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.newCart(nil), nil
}

func (r cartRepo) EnsureForUser(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return nil, cart.ErrUserNotFound
	}
	if c := r.s.latest(userID); c != nil {
		cp := *c
		return &cp, nil
	}
	return r.s.newCart(&userID), nil
}

// callers hold mu
func (s *MemStore) newCart(userID *int64) *cart.Cart {
	id, now := s.id()
	c := &cart.Cart{ID: id, CreatedAt: now}
	if userID != nil {
		uid := *userID
		c.UserID = &uid
	}
	s.carts[id] = c
	cp := *c
	return &cp
}

func (r cartRepo) GetByID(_ context.Context, id int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r cartRepo) LatestByUser(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.latest(userID)
	if c == nil {
		return nil, cart.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r cartRepo) AddItem(_ context.Context, cartID, variantID int64, qty int) (*cart.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.variants[variantID]
	if !ok {
		return nil, product.ErrVariantNotFound
	}
	if _, ok := r.s.carts[cartID]; !ok {
		return nil, cart.ErrNotFound
	}
	if it := r.s.itemByVariant(cartID, variantID); it != nil {
		if it.Quantity+qty > v.StockQuantity {
			return nil, cart.ErrInsufficientStock
		}
		it.Quantity += qty
		cp := *it
		return &cp, nil
	}
	if qty > v.StockQuantity {
		return nil, cart.ErrInsufficientStock
	}
	id, _ := r.s.id()
	it := &cart.Item{ID: id, CartID: cartID, VariantID: variantID, Quantity: qty}
	r.s.items[id] = it
	cp := *it
	return &cp, nil
}

func (r cartRepo) SetQuantity(_ context.Context, cartID, itemID int64, qty int) (*cart.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok || it.CartID != cartID {
		return nil, cart.ErrItemNotFound
	}
	it.Quantity = qty
	cp := *it
	return &cp, nil
}

func (r cartRepo) RemoveItem(_ context.Context, cartID, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if it, ok := r.s.items[itemID]; ok && it.CartID == cartID {
		delete(r.s.items, itemID)
	}
	return nil
}

func (r cartRepo) Clear(_ context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clear(cartID)
	return nil
}

func (s *MemStore) clear(cartID int64) {
	for id, it := range s.items {
		if it.CartID == cartID {
			delete(s.items, id)
		}
	}
}

func (r cartRepo) ListItems(_ context.Context, cartID int64) ([]cart.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []cart.Line{}
	for _, it := range r.s.cartItems(cartID) {
		out = append(out, cart.Line{Item: it, Variant: r.s.detail(it.VariantID)})
	}
	return out, nil
}

func (r cartRepo) Reconcile(_ context.Context, guestCartID, userID int64) (cart.Outcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return cart.Noop, cart.ErrUserNotFound
	}
	guest := r.s.carts[guestCartID]
	current := r.s.latest(userID)

	outcome := cart.Plan(guest, current)
	switch outcome {
	case cart.Assign:
		uid := userID
		guest.UserID = &uid
	case cart.MergeCarts:
		merged := cart.Merge(current.ID, r.s.cartItems(current.ID), r.s.cartItems(guest.ID))
		for _, it := range merged {
			if it.ID == 0 {
				it.ID, _ = r.s.id()
			}
			cp := it
			r.s.items[it.ID] = &cp
		}
		r.s.clear(guest.ID)
		delete(r.s.carts, guest.ID)
	}
	return outcome, nil
}

// ---------- orders ----------

type orderRepo struct{ s *MemStore }

func (r orderRepo) Place(_ context.Context, p order.Placement) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// validate everything before the first write
	need := map[int64]int{}
	for _, it := range p.Order.Items {
		need[it.VariantID] += it.Quantity
	}
	for vid, qty := range need {
		v, ok := r.s.variants[vid]
		if !ok || v.StockQuantity < qty {
			return nil, apperr.Newf(apperr.OutOfStock, "Product %s is out of stock", p.Labels[vid])
		}
	}
	for _, t := range p.Taken {
		it, ok := r.s.items[t.ID]
		if !ok || it.CartID != p.CartID || it.Quantity != t.Quantity {
			return nil, cart.ErrCartChanged
		}
	}
	if r.s.PlaceErr != nil {
		err := r.s.PlaceErr
		r.s.PlaceErr = nil
		return nil, err
	}

	for vid, qty := range need {
		r.s.variants[vid].StockQuantity -= qty
	}
	id, now := r.s.id()
	o := *p.Order
	o.ID, o.CreatedAt, o.UpdatedAt, o.Items = id, now, now, nil
	r.s.orders[id] = &o
	for _, it := range p.Order.Items {
		it.ID, _ = r.s.id()
		it.OrderID = id
		cp := it
		r.s.orderItems[it.ID] = &cp
	}
	if p.Payment != nil {
		pay := *p.Payment
		pay.ID, pay.CreatedAt = r.s.id()
		pay.OrderID = id
		r.s.payments[id] = &pay
	}
	for _, t := range p.Taken {
		delete(r.s.items, t.ID)
	}
	return r.s.order(id), nil
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return nil, order.ErrNotFound
	}
	return r.s.order(id), nil
}

func (r orderRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]order.Order, error) {
	return r.list(func(o *order.Order) bool { return o.UserID == userID }, limit, offset), nil
}

func (r orderRepo) ListAll(_ context.Context, limit, offset int) ([]order.Order, error) {
	return r.list(func(*order.Order) bool { return true }, limit, offset), nil
}

func (r orderRepo) list(keep func(*order.Order) bool, limit, offset int) []order.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []order.Order{}
	for id, o := range r.s.orders {
		if keep(o) {
			out = append(out, *r.s.order(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []order.Order{}
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r orderRepo) Apply(_ context.Context, id int64, t order.Transition) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != t.From {
		return nil, order.ErrInvalidTransition
	}
	o.Status = t.To
	if t.Reason != "" {
		reason := t.Reason
		o.CancellationReason = &reason
	}
	if t.RefundStatus != "" {
		rs := t.RefundStatus
		o.RefundStatus = &rs
	}
	_, o.UpdatedAt = r.s.id()
	if t.Restock {
		for _, it := range r.s.orderItems {
			if it.OrderID == id {
				r.s.variants[it.VariantID].StockQuantity += it.Quantity
			}
		}
	}
	return r.s.order(id), nil
}

func (s *MemStore) order(id int64) *order.Order {
	o := *s.orders[id]
	o.Items = []order.Item{}
	for _, it := range s.orderItems {
		if it.OrderID == id {
			cp := *it
			d := s.detail(it.VariantID)
			cp.Variant = &d
			o.Items = append(o.Items, cp)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	if p, ok := s.payments[id]; ok {
		cp := *p
		o.Payment = &cp
	}
	return &o
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
