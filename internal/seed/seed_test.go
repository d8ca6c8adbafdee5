package seed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/seed"
	"github.com/MikeMC777/storefront-ecom/internal/testutil"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

func TestRunSeedsOnce(t *testing.T) {
	store := testutil.NewMemStore()
	users := user.NewService(store.Users(), nil)
	ctx := context.Background()

	seed.Run(ctx, store.Products(), users, "admin123", nil)
	seed.Run(ctx, store.Products(), users, "admin123", nil)

	n, err := store.Products().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := store.Products().GetBySlug(ctx, "urban-essential-cap")
	require.NoError(t, err)
	require.Len(t, p.Variants, 3)
	assert.Equal(t, 0, p.Variants[2].StockQuantity)
	assert.Equal(t, "799.00", p.Price.StringFixed(2))

	admin, err := users.Authenticate(ctx, seed.AdminEmail, "admin123")
	require.NoError(t, err)
	assert.Equal(t, access.Admin, admin.Role)
}

type failingProducts struct{ product.Repository }

func (failingProducts) Count(context.Context) (int, error) { return 0, errors.New("relation does not exist") }

func TestRunToleratesFailures(t *testing.T) {
	store := testutil.NewMemStore()
	core, logs := observer.New(zap.WarnLevel)

	seed.Run(context.Background(), failingProducts{store.Products()}, user.NewService(store.Users(), nil), "admin123", zap.New(core))

	assert.Equal(t, 1, logs.Len())
	_, err := store.Users().GetByEmail(context.Background(), seed.AdminEmail)
	assert.NoError(t, err, "el admin debía crearse aunque falle el catálogo")
}
