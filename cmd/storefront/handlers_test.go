package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/order"
	prod "github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/session"
	"github.com/MikeMC777/storefront-ecom/internal/testutil"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

//
// ===== ENTORNO DE PRUEBAS: store en memoria + router real =====
//

type env struct {
	store  *testutil.MemStore
	app    *app
	router *gin.Engine
	black  int64
	olive  int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := testutil.NewMemStore()
	p := store.AddProduct("Urban Essential", "799.00",
		testutil.VariantSpec{Color: "Black", Stock: 3},
		testutil.VariantSpec{Color: "Olive", Stock: 0},
	)
	a, err := newApp(stores{
		products: store.Products(),
		users:    store.Users(),
		carts:    store.Carts(),
		orders:   store.Orders(),
	}, session.Config{Secret: "test-secret-0123456789abcdef"}, nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return &env{
		store:  store,
		app:    a,
		router: newRouter(a, nil, nil),
		black:  p.Variants[0].ID,
		olive:  p.Variants[1].ID,
	}
}

// browser keeps cookies between requests like a real client.
type browser struct {
	t       *testing.T
	e       *env
	cookies map[string]string
}

func (e *env) browser(t *testing.T) *browser {
	return &browser{t: t, e: e, cookies: map[string]string{}}
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}
	w := httptest.NewRecorder()
	b.e.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return w
}

func (b *browser) login(email, password string) {
	b.t.Helper()
	w := b.do(http.MethodPost, "/api/auth/login", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if w.Code != http.StatusOK {
		b.t.Fatalf("login: status=%d body=%s", w.Code, w.Body.String())
	}
}

func (e *env) addUser(t *testing.T, email string, role access.Role) {
	t.Helper()
	svc := user.NewService(e.store.Users(), nil)
	u, err := svc.Register(context.Background(), user.RegisterRequest{Email: email, Password: "s3cret-pass", Name: email})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if role != access.Customer {
		if err := e.store.Users().SetRole(context.Background(), u.ID, role); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json inválido: %v body=%s", err, w.Body.String())
	}
	return out
}

func expect(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("esperaba %d, got %d body=%s", code, w.Code, w.Body.String())
	}
}

//
// ===== TESTS =====
//

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.browser(t).do(http.MethodGet, "/healthz", "")
	expect(t, w, http.StatusOK)
	if w.Body.String() != "ok" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

// /api/products y /api/products/:slug
func TestCatalog(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)

	{
		w := b.do(http.MethodGet, "/api/products?limit=10", "")
		expect(t, w, http.StatusOK)
		got := decode[prod.ListResponse](t, w)
		if len(got.Items) != 1 || len(got.Items[0].Variants) != 2 {
			t.Fatalf("catálogo inesperado: %+v", got)
		}
	}
	{
		w := b.do(http.MethodGet, "/api/products/urban-essential", "")
		expect(t, w, http.StatusOK)
	}
	{
		w := b.do(http.MethodGet, "/api/products/nope", "")
		expect(t, w, http.StatusNotFound)
		if got := decode[httpx.HTTPError](t, w); got.Error != "not_found" {
			t.Fatalf("error=%q", got.Error)
		}
	}
}

// El invitado obtiene un carrito estable vía cookie firmada.
func TestGuestCartFlow(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)

	first := decode[cart.View](t, b.do(http.MethodGet, "/api/cart", ""))
	if _, ok := b.cookies[session.CartCookieName]; !ok {
		t.Fatalf("debió emitirse la cookie del carrito")
	}

	w := b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":2}`, e.black))
	expect(t, w, http.StatusOK)
	v := decode[cart.View](t, w)
	if v.ID != first.ID || len(v.Items) != 1 || v.Total.StringFixed(2) != "1598.00" {
		t.Fatalf("carrito inesperado: %+v", v)
	}

	// 2 + 2 > stock 3
	w = b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":2}`, e.black))
	expect(t, w, http.StatusBadRequest)
	if got := decode[httpx.HTTPError](t, w); got.Error != "out_of_stock" {
		t.Fatalf("error=%q", got.Error)
	}

	// agotado
	w = b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":1}`, e.olive))
	expect(t, w, http.StatusBadRequest)

	// variante inexistente
	w = b.do(http.MethodPost, "/api/cart/items", `{"variantId":999,"quantity":1}`)
	expect(t, w, http.StatusNotFound)

	itemID := v.Items[0].ID
	w = b.do(http.MethodPatch, fmt.Sprintf("/api/cart/items/%d", itemID), `{"quantity":3}`)
	expect(t, w, http.StatusOK)
	if got := decode[cart.View](t, w); got.Items[0].Quantity != 3 {
		t.Fatalf("cantidad=%d", got.Items[0].Quantity)
	}

	w = b.do(http.MethodPatch, fmt.Sprintf("/api/cart/items/%d", itemID), `{}`)
	expect(t, w, http.StatusBadRequest)

	w = b.do(http.MethodPatch, fmt.Sprintf("/api/cart/items/%d", itemID), `{"quantity":0}`)
	expect(t, w, http.StatusOK)
	if got := decode[cart.View](t, w); len(got.Items) != 0 {
		t.Fatalf("quantity 0 debía eliminar la línea: %+v", got.Items)
	}

	w = b.do(http.MethodDelete, fmt.Sprintf("/api/cart/items/%d", itemID), "")
	expect(t, w, http.StatusOK)
}

func TestTamperedCartCookieGetsFreshCart(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.cookies[session.CartCookieName] = "1"

	w := b.do(http.MethodGet, "/api/cart", "")
	expect(t, w, http.StatusOK)
	if b.cookies[session.CartCookieName] == "1" {
		t.Fatalf("la cookie manipulada debía reemplazarse")
	}
}

func TestCheckoutRequiresLogin(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":1}`, e.black))

	w := b.do(http.MethodPost, "/api/orders", `{"paymentProvider":"upi_mock"}`)
	expect(t, w, http.StatusUnauthorized)

	w = b.do(http.MethodGet, "/api/orders", "")
	expect(t, w, http.StatusUnauthorized)
}

// invitado llena el carrito → se registra → compra → cancela
func TestRegisterCheckoutCancel(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)

	w := b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":2}`, e.black))
	expect(t, w, http.StatusOK)

	w = b.do(http.MethodPost, "/api/auth/register", `{"email":"ana@example.com","password":"s3cret-pass","name":"Ana"}`)
	expect(t, w, http.StatusCreated)
	if _, ok := b.cookies[session.CartCookieName]; ok {
		t.Fatalf("la cookie de invitado debía borrarse tras el login")
	}

	me := decode[user.Profile](t, b.do(http.MethodGet, "/api/auth/me", ""))
	if me.Email != "ana@example.com" || me.Role != access.Customer {
		t.Fatalf("me inesperado: %+v", me)
	}

	v := decode[cart.View](t, b.do(http.MethodGet, "/api/cart", ""))
	if len(v.Items) != 1 || v.Items[0].Quantity != 2 {
		t.Fatalf("el carrito invitado debía pasar a la cuenta: %+v", v)
	}

	w = b.do(http.MethodPost, "/api/orders", `{"paymentProvider":"stripe_mock"}`)
	expect(t, w, http.StatusCreated)
	o := decode[order.Order](t, w)
	if o.Status != order.StatusPaid || o.TotalAmount.StringFixed(2) != "1598.00" || o.Payment == nil {
		t.Fatalf("orden inesperada: %+v", o)
	}
	if e.store.Stock(e.black) != 1 {
		t.Fatalf("stock=%d, esperado=1", e.store.Stock(e.black))
	}

	v = decode[cart.View](t, b.do(http.MethodGet, "/api/cart", ""))
	if len(v.Items) != 0 {
		t.Fatalf("el carrito debía quedar vacío")
	}

	list := decode[order.ListResponse](t, b.do(http.MethodGet, "/api/orders", ""))
	if len(list.Items) != 1 || list.Items[0].ID != o.ID {
		t.Fatalf("listado inesperado: %+v", list)
	}

	w = b.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", o.ID), "")
	expect(t, w, http.StatusOK)
	got := decode[order.Order](t, w)
	if got.Status != order.StatusCancelled || got.RefundStatus == nil || *got.RefundStatus != order.RefundProcessing {
		t.Fatalf("cancelación inesperada: %+v", got)
	}

	w = b.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", o.ID), `{"reason":"again"}`)
	expect(t, w, http.StatusBadRequest)
	if got := decode[httpx.HTTPError](t, w); got.Error != "invalid_transition" {
		t.Fatalf("error=%q", got.Error)
	}
}

func TestCheckoutEmptyCartAndBadProvider(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "ana@example.com", access.Customer)
	b := e.browser(t)
	b.login("ana@example.com", "s3cret-pass")

	w := b.do(http.MethodPost, "/api/orders", `{"paymentProvider":"cod"}`)
	expect(t, w, http.StatusBadRequest)
	if got := decode[httpx.HTTPError](t, w); got.Message != "Cart is empty" {
		t.Fatalf("message=%q", got.Message)
	}

	b.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":1}`, e.black))
	w = b.do(http.MethodPost, "/api/orders", `{"paymentProvider":"paypal"}`)
	expect(t, w, http.StatusBadRequest)
	if e.store.OrderCount() != 0 {
		t.Fatalf("no debía crearse ninguna orden")
	}
}

func TestOrderOfAnotherUserIsHidden(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "ana@example.com", access.Customer)
	e.addUser(t, "luis@example.com", access.Customer)
	e.addUser(t, "staff@example.com", access.Employee)

	ana := e.browser(t)
	ana.login("ana@example.com", "s3cret-pass")
	ana.do(http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"variantId":%d,"quantity":1}`, e.black))
	o := decode[order.Order](t, ana.do(http.MethodPost, "/api/orders", `{"paymentProvider":"cod"}`))

	luis := e.browser(t)
	luis.login("luis@example.com", "s3cret-pass")
	expect(t, luis.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", o.ID), ""), http.StatusNotFound)
	expect(t, luis.do(http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", o.ID), ""), http.StatusNotFound)

	staff := e.browser(t)
	staff.login("staff@example.com", "s3cret-pass")
	expect(t, staff.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", o.ID), ""), http.StatusOK)
	list := decode[order.ListResponse](t, staff.do(http.MethodGet, "/api/orders", ""))
	if len(list.Items) != 1 {
		t.Fatalf("el empleado debía ver todas las órdenes: %+v", list)
	}

	expect(t, ana.do(http.MethodGet, "/api/orders/abc", ""), http.StatusBadRequest)
}

func TestLoginLogout(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "ana@example.com", access.Customer)
	b := e.browser(t)

	w := b.do(http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"wrong"}`)
	expect(t, w, http.StatusUnauthorized)

	b.login("ana@example.com", "s3cret-pass")
	w = b.do(http.MethodPost, "/api/auth/logout", "")
	expect(t, w, http.StatusOK)

	w = b.do(http.MethodGet, "/api/auth/me", "")
	expect(t, w, http.StatusOK)
	if w.Body.String() != "null" {
		t.Fatalf("me tras logout=%s", w.Body.String())
	}
}

// /api/users: solo admin
func TestUserAdministration(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, "admin@example.com", access.Admin)
	e.addUser(t, "ana@example.com", access.Customer)

	admin := e.browser(t)
	admin.login("admin@example.com", "s3cret-pass")

	w := admin.do(http.MethodPost, "/api/users", `{"email":"staff@example.com","password":"s3cret-pass","name":"Luis"}`)
	expect(t, w, http.StatusCreated)
	staff := decode[user.Profile](t, w)
	if staff.Role != access.Employee {
		t.Fatalf("rol por defecto=%q", staff.Role)
	}

	w = admin.do(http.MethodPost, "/api/users", `{"email":"staff@example.com","password":"s3cret-pass","name":"Luis"}`)
	expect(t, w, http.StatusBadRequest)

	w = admin.do(http.MethodPost, "/api/users", `{"email":"x@example.com","password":"s3cret-pass","name":"X","role":"root"}`)
	expect(t, w, http.StatusBadRequest)

	list := decode[[]user.Profile](t, admin.do(http.MethodGet, "/api/users", ""))
	if len(list) != 3 {
		t.Fatalf("len=%d, esperado=3", len(list))
	}

	customer := e.browser(t)
	customer.login("ana@example.com", "s3cret-pass")
	expect(t, customer.do(http.MethodGet, "/api/users", ""), http.StatusForbidden)
	expect(t, customer.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", staff.ID), ""), http.StatusForbidden)
	expect(t, e.browser(t).do(http.MethodGet, "/api/users", ""), http.StatusUnauthorized)

	me := decode[user.Profile](t, admin.do(http.MethodGet, "/api/auth/me", ""))
	expect(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", me.ID), ""), http.StatusBadRequest)
	expect(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", staff.ID), ""), http.StatusNoContent)
	expect(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", staff.ID), ""), http.StatusNotFound)
}
