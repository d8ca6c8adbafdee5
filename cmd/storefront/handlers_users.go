package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/identity"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

// createUserHandler godoc
// @Summary  Provision a staff account (admin)
// @Tags     users
// @Accept   json
// @Produce  json
// @Param    body  body  user.CreateUserRequest  true  "account; role defaults to employee"
// @Success  201  {object}  user.Profile
// @Failure  400  {object}  httpx.HTTPError
// @Failure  403  {object}  httpx.HTTPError
// @Router   /api/users [post]
func createUserHandler(users *user.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.CreateUserRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadRequest(c, "invalid JSON body")
			return
		}
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		u, err := users.Create(c.Request.Context(), caller, in)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u.Profile())
	}
}

func listUsersHandler(users *user.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		all, err := users.List(c.Request.Context(), caller)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		out := make([]user.Profile, 0, len(all))
		for i := range all {
			out = append(out, all[i].Profile())
		}
		c.JSON(http.StatusOK, out)
	}
}

// deleteUserHandler godoc
// @Summary  Delete an employee account (admin)
// @Tags     users
// @Param    id  path  int  true  "user id"
// @Success  204
// @Failure  400  {object}  httpx.HTTPError
// @Failure  403  {object}  httpx.HTTPError
// @Failure  404  {object}  httpx.HTTPError
// @Router   /api/users/{id} [delete]
func deleteUserHandler(users *user.Service, ids *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		caller, ok := principal(c, ids)
		if !ok {
			return
		}
		if err := users.Delete(c.Request.Context(), caller, id); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
