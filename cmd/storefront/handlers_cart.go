package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
)

// Every cart endpoint answers with the resulting cart.
func writeCart(c *gin.Context, carts *cart.Service, cartID int64) {
	v, err := carts.View(c.Request.Context(), cartID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// getCartHandler godoc
// @Summary  Current cart, created on first visit
// @Tags     cart
// @Produce  json
// @Success  200  {object}  cart.View
// @Router   /api/cart [get]
func getCartHandler(carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := resolve(c, ids)
		if !ok {
			return
		}
		writeCart(c, carts, who.CartID)
	}
}

// addCartItemHandler godoc
// @Summary  Add a variant to the cart
// @Tags     cart
// @Accept   json
// @Produce  json
// @Param    body  body  cart.AddItemRequest  true  "variant and quantity"
// @Success  200  {object}  cart.View
// @Failure  400  {object}  httpx.HTTPError
// @Failure  404  {object}  httpx.HTTPError
// @Router   /api/cart/items [post]
func addCartItemHandler(carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.AddItemRequest
		if err := c.ShouldBindJSON(&in); err != nil || in.VariantID <= 0 {
			httpx.BadRequest(c, "variantId and quantity are required")
			return
		}
		who, ok := resolve(c, ids)
		if !ok {
			return
		}
		if _, err := carts.AddItem(c.Request.Context(), who.CartID, in.VariantID, in.Quantity); err != nil {
			httpx.WriteError(c, err)
			return
		}
		writeCart(c, carts, who.CartID)
	}
}

// updateCartItemHandler godoc
// @Summary  Set the quantity of a cart line; 0 removes it
// @Tags     cart
// @Accept   json
// @Produce  json
// @Param    id    path  int                     true  "cart item id"
// @Param    body  body  cart.UpdateItemRequest  true  "quantity"
// @Success  200  {object}  cart.View
// @Failure  404  {object}  httpx.HTTPError
// @Router   /api/cart/items/{id} [patch]
func updateCartItemHandler(carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := pathID(c)
		if !ok {
			return
		}
		var in cart.UpdateItemRequest
		if err := c.ShouldBindJSON(&in); err != nil || in.Quantity == nil {
			httpx.BadRequest(c, "quantity is required")
			return
		}
		who, ok := resolve(c, ids)
		if !ok {
			return
		}
		if err := carts.UpdateItem(c.Request.Context(), who.CartID, itemID, *in.Quantity); err != nil {
			httpx.WriteError(c, err)
			return
		}
		writeCart(c, carts, who.CartID)
	}
}

func removeCartItemHandler(carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := pathID(c)
		if !ok {
			return
		}
		who, ok := resolve(c, ids)
		if !ok {
			return
		}
		if err := carts.RemoveItem(c.Request.Context(), who.CartID, itemID); err != nil {
			httpx.WriteError(c, err)
			return
		}
		writeCart(c, carts, who.CartID)
	}
}

func clearCartHandler(carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := resolve(c, ids)
		if !ok {
			return
		}
		if err := carts.Clear(c.Request.Context(), who.CartID); err != nil {
			httpx.WriteError(c, err)
			return
		}
		writeCart(c, carts, who.CartID)
	}
}
