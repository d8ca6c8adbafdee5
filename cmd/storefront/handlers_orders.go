package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
	"github.com/MikeMC777/storefront-ecom/internal/order"
)

// createOrderHandler godoc
// @Summary  Check out the caller's cart
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    body  body  order.CreateOrderRequest  true  "payment provider"
// @Success  201  {object}  order.Order
// @Failure  400  {object}  httpx.HTTPError
// @Failure  401  {object}  httpx.HTTPError
// @Failure  409  {object}  httpx.HTTPError
// @Router   /api/orders [post]
func createOrderHandler(orders *order.Service, carts *cart.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid JSON body")
			return
		}
		u, ok := currentUser(c, ids)
		if !ok {
			return
		}
		cur, err := carts.CurrentForUser(c.Request.Context(), u.ID)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		o, err := orders.Checkout(c.Request.Context(), u.Principal(), cur.ID, in.PaymentProvider)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// listOrdersHandler godoc
// @Summary  Orders of the caller; staff see every order
// @Tags     orders
// @Produce  json
// @Param    limit   query  int  false  "page size"  default(20)
// @Param    offset  query  int  false  "offset"     default(0)
// @Success  200  {object}  order.ListResponse
// @Failure  401  {object}  httpx.HTTPError
// @Router   /api/orders [get]
func listOrdersHandler(orders *order.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		items, err := orders.List(c.Request.Context(), caller, limit, offset)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

func getOrderHandler(orders *order.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		o, err := orders.Get(c.Request.Context(), caller, id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// cancelOrderHandler godoc
// @Summary  Cancel an order that has not shipped
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    id    path  int                       true   "order id"
// @Param    body  body  order.CancelOrderRequest  false  "reason"
// @Success  200  {object}  order.Order
// @Failure  400  {object}  httpx.HTTPError
// @Failure  404  {object}  httpx.HTTPError
// @Router   /api/orders/{id}/cancel [post]
func cancelOrderHandler(orders *order.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var in order.CancelOrderRequest
		if !bindOptional(c, &in) {
			return
		}
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		o, err := orders.Cancel(c.Request.Context(), caller, id, in.Reason)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
