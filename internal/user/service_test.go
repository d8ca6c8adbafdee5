package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/testutil"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

func newService() (*user.Service, *testutil.MemStore) {
	store := testutil.NewMemStore()
	return user.NewService(store.Users(), nil), store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, user.RegisterRequest{Email: " Ana@Example.com ", Password: "s3cret-pass", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, access.Customer, u.Role)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	cases := map[string]user.RegisterRequest{
		"missing name":   {Email: "ana@example.com", Password: "s3cret-pass"},
		"bad email":      {Email: "ana", Password: "s3cret-pass", Name: "Ana"},
		"short password": {Email: "ana@example.com", Password: "123", Name: "Ana"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, in)
			assert.True(t, apperr.Is(err, apperr.ValidationFailed), "esperaba ValidationFailed, got %v", err)
		})
	}

	_, err := svc.Register(ctx, user.RegisterRequest{Email: "ana@example.com", Password: "s3cret-pass", Name: "Ana"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, user.RegisterRequest{Email: "ANA@example.com", Password: "s3cret-pass", Name: "Ana"})
	assert.ErrorIs(t, err, user.ErrAlreadyExist)
}

func TestCreateUser(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	admin := store.AddUser("admin@example.com", access.Admin).Principal()
	employee := store.AddUser("staff@example.com", access.Employee).Principal()

	u, err := svc.Create(ctx, admin, user.CreateUserRequest{Email: "new@example.com", Password: "s3cret-pass", Name: "Luis"})
	require.NoError(t, err)
	assert.Equal(t, access.Employee, u.Role, "el rol por defecto es employee")

	_, err = svc.Create(ctx, admin, user.CreateUserRequest{Email: "x@example.com", Password: "s3cret-pass", Name: "X", Role: "superuser"})
	assert.ErrorIs(t, err, access.ErrInvalidRole)

	_, err = svc.Create(ctx, employee, user.CreateUserRequest{Email: "y@example.com", Password: "s3cret-pass", Name: "Y"})
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.Create(ctx, access.Principal{}, user.CreateUserRequest{Email: "z@example.com", Password: "s3cret-pass", Name: "Z"})
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestListUsersAdminOnly(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	admin := store.AddUser("admin@example.com", access.Admin).Principal()
	customer := store.AddUser("ana@example.com", access.Customer).Principal()

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, customer)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestDeleteUserRules(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	admin := store.AddUser("admin@example.com", access.Admin)
	otherAdmin := store.AddUser("root@example.com", access.Admin)
	employee := store.AddUser("staff@example.com", access.Employee)
	customer := store.AddUser("ana@example.com", access.Customer)
	caller := admin.Principal()

	assert.ErrorIs(t, svc.Delete(ctx, caller, admin.ID), access.ErrDeleteSelf)
	assert.ErrorIs(t, svc.Delete(ctx, caller, otherAdmin.ID), access.ErrDeleteAdmin)
	assert.ErrorIs(t, svc.Delete(ctx, caller, customer.ID), access.ErrDeleteCustomer)
	assert.ErrorIs(t, svc.Delete(ctx, employee.Principal(), customer.ID), access.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, caller, 9999), user.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, caller, employee.ID))
	_, err := svc.Get(ctx, employee.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestDeleteUserWithOrdersKeepsHistory(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	admin := store.AddUser("admin@example.com", access.Admin)
	employee := store.AddUser("staff@example.com", access.Employee)
	store.AddOrder(employee.ID)

	err := svc.Delete(ctx, admin.Principal(), employee.ID)

	assert.ErrorIs(t, err, user.ErrHasOrders)
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
	assert.Equal(t, 1, store.OrderCount(), "el historial de pedidos debía conservarse")
	_, err = svc.Get(ctx, employee.ID)
	assert.NoError(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	u, err := svc.EnsureAdmin(ctx, "admin@urbanturban.com", "admin123", "Admin")
	require.NoError(t, err)
	assert.Equal(t, access.Admin, u.Role)

	again, err := svc.EnsureAdmin(ctx, "admin@urbanturban.com", "admin123", "Admin")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	existing := store.AddUser("boss@example.com", access.Customer)
	promoted, err := svc.EnsureAdmin(ctx, "boss@example.com", "whatever1", "Boss")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, promoted.ID)
	got, err := svc.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, access.Admin, got.Role)
}
