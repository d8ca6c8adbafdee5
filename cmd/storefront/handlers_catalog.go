package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	prod "github.com/MikeMC777/storefront-ecom/internal/product"
)

// listProductsHandler godoc
// @Summary  List active products
// @Tags     products
// @Produce  json
// @Param    q       query  string  false  "name or description contains"
// @Param    limit   query  int     false  "page size"  default(20)
// @Param    offset  query  int     false  "offset"     default(0)
// @Success  200  {object}  prod.ListResponse
// @Failure  500  {object}  httpx.HTTPError
// @Router   /api/products [get]
func listProductsHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		q := strings.TrimSpace(c.Query("q"))
		items, err := repo.List(c.Request.Context(), prod.Query{Q: q, Limit: limit, Offset: offset})
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, prod.ListResponse{Q: q, Limit: limit, Offset: offset, Items: items})
	}
}

// getProductHandler godoc
// @Summary  Product with its variants
// @Tags     products
// @Produce  json
// @Param    slug  path  string  true  "product slug"
// @Success  200  {object}  prod.Product
// @Failure  404  {object}  httpx.HTTPError
// @Router   /api/products/{slug} [get]
func getProductHandler(repo prod.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
