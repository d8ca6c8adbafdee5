package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

// registerHandler godoc
// @Summary  Create a customer account and log in
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body  user.RegisterRequest  true  "account"
// @Success  201  {object}  user.Profile
// @Failure  400  {object}  httpx.HTTPError
// @Router   /api/auth/register [post]
func registerHandler(users *user.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid JSON body")
			return
		}
		u, err := users.Register(c.Request.Context(), in)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if err := ids.Login(c.Request.Context(), c.Writer, c.Request, u); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u.Profile())
	}
}

// loginHandler godoc
// @Summary  Log in; the guest cart is merged into the account's cart
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body  user.LoginRequest  true  "credentials"
// @Success  200  {object}  user.Profile
// @Failure  401  {object}  httpx.HTTPError
// @Router   /api/auth/login [post]
func loginHandler(users *user.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid JSON body")
			return
		}
		u, err := users.Authenticate(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if err := ids.Login(c.Request.Context(), c.Writer, c.Request, u); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, u.Profile())
	}
}

func logoutHandler(ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids.Logout(c.Writer)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// meHandler answers null for guests.
func meHandler(ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := ids.User(c.Request.Context(), c.Request)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if u == nil {
			c.JSON(http.StatusOK, nil)
			return
		}
		c.JSON(http.StatusOK, u.Profile())
	}
}
