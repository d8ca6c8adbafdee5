package main

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

// resolve writes the error response itself and reports false on failure.
func resolve(c *gin.Context, ids *identity.Resolver) (identity.Identity, bool) {
	id, err := ids.Resolve(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		httpx.WriteError(c, err)
		return identity.Identity{}, false
	}
	return id, true
}

// principal is the caller for operations that do not touch the cart. Guests
// get the zero principal and the services reject them.
func principal(c *gin.Context, ids *identity.Resolver) (access.Principal, bool) {
	u, err := ids.User(c.Request.Context(), c.Request)
	if err != nil {
		httpx.WriteError(c, err)
		return access.Principal{}, false
	}
	if u == nil {
		return access.Principal{}, true
	}
	return u.Principal(), true
}

func currentUser(c *gin.Context, ids *identity.Resolver) (*user.User, bool) {
	u, err := ids.User(c.Request.Context(), c.Request)
	if err != nil {
		httpx.WriteError(c, err)
		return nil, false
	}
	if u == nil {
		httpx.WriteError(c, access.ErrUnauthenticated)
		return nil, false
	}
	return u, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// bindOptional binds a JSON body that may be absent.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		httpx.BadRequest(c, "invalid JSON body")
		return false
	}
	return true
}
