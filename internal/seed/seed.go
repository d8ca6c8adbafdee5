// Package seed loads the demo catalog and the bootstrap admin account.
package seed

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

const (
	AdminEmail = "admin@urbanturban.com"
	adminName  = "System Admin"
)

type Admins interface {
	EnsureAdmin(ctx context.Context, email, password, name string) (*user.User, error)
}

// DemoProduct is the catalog entry created on an empty store.
func DemoProduct() *product.Product {
	return &product.Product{
		Name:        "The Urban Essential",
		Slug:        "urban-essential-cap",
		Price:       decimal.RequireFromString("799.00"),
		Description: "A minimalist dad cap designed for the modern urban explorer. Crafted from 100% premium cotton twill with an adjustable strap.",
		MicroStory:  "Inspired by the concrete jungle, built for comfort. The Urban Essential isn't just a cap; it's a statement of calm confidence amidst the chaos.",
		Images:      []string{"/products/urban-essential.jpg"},
		IsActive:    true,
		Variants: []product.Variant{
			{Color: "Black", SKU: "UE-BLK-001", StockQuantity: 100},
			{Color: "Beige", SKU: "UE-BGE-001", StockQuantity: 100},
			{Color: "Olive", SKU: "UE-OLV-001", StockQuantity: 0},
		},
	}
}

// Run is best effort: failures are logged and never stop the caller.
func Run(ctx context.Context, products product.Repository, admins Admins, adminPassword string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	n, err := products.Count(ctx)
	switch {
	case err != nil:
		log.Warn("seed: count products", zap.Error(err))
	case n > 0:
		log.Debug("seed: catalog not empty, skipping", zap.Int("products", n))
	default:
		p := DemoProduct()
		if err := products.Create(ctx, p); err != nil {
			log.Warn("seed: create demo product", zap.Error(err))
		} else {
			log.Info("seed: demo product created", zap.Int64("product_id", p.ID), zap.String("slug", p.Slug))
		}
	}

	if adminPassword == "" {
		log.Warn("seed: no admin password configured, skipping admin")
		return
	}
	u, err := admins.EnsureAdmin(ctx, AdminEmail, adminPassword, adminName)
	if err != nil {
		log.Warn("seed: ensure admin", zap.Error(err))
		return
	}
	log.Info("seed: admin ready", zap.Int64("user_id", u.ID))
}
