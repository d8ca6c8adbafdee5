// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/storefront/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List active products",
                "parameters": [
                    {"type": "string", "description": "name or description contains", "name": "q", "in": "query"},
                    {"type": "integer", "default": 20, "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.ListResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/products/{slug}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Product with its variants",
                "parameters": [
                    {"type": "string", "description": "product slug", "name": "slug", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Create a customer account and log in",
                "parameters": [
                    {"description": "account", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/user.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/user.Profile"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in; the guest cart is merged into the account's cart",
                "parameters": [
                    {"description": "credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/user.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/user.Profile"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/cart": {
            "get": {
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Current cart, created on first visit",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.View"}}
                }
            }
        },
        "/api/cart/items": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Add a variant to the cart",
                "parameters": [
                    {"description": "variant and quantity", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/cart.AddItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.View"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/cart/items/{id}": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Set the quantity of a cart line; 0 removes it",
                "parameters": [
                    {"type": "integer", "description": "cart item id", "name": "id", "in": "path", "required": true},
                    {"description": "quantity", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/cart.UpdateItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Orders of the caller; staff see every order",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.ListResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Check out the caller's cart",
                "parameters": [
                    {"description": "payment provider", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "409": {"description": "Cart changed during checkout", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/orders/{id}/cancel": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel an order that has not shipped",
                "parameters": [
                    {"type": "integer", "description": "order id", "name": "id", "in": "path", "required": true},
                    {"description": "reason", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/order.CancelOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/users": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Provision a staff account (admin)",
                "parameters": [
                    {"description": "account; role defaults to employee", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/user.CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/user.Profile"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        },
        "/api/users/{id}": {
            "delete": {
                "tags": ["users"],
                "summary": "Delete an employee account (admin)",
                "parameters": [
                    {"type": "integer", "description": "user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpx.HTTPError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.HTTPError"}}
                }
            }
        }
    },
    "definitions": {
        "httpx.HTTPError": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "order not found"},
                "request_id": {"type": "string"}
            }
        },
        "product.Variant": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "product_id": {"type": "integer"},
                "color": {"type": "string"},
                "sku": {"type": "string"},
                "stock_quantity": {"type": "integer"}
            }
        },
        "product.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "slug": {"type": "string"},
                "description": {"type": "string"},
                "micro_story": {"type": "string"},
                "price": {"type": "string", "example": "799.00"},
                "images": {"type": "array", "items": {"type": "string"}},
                "is_active": {"type": "boolean"},
                "variants": {"type": "array", "items": {"$ref": "#/definitions/product.Variant"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "product.ListResponse": {
            "type": "object",
            "properties": {
                "q": {"type": "string"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/product.Product"}}
            }
        },
        "user.Profile": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 7},
                "email": {"type": "string", "example": "ana@example.com"},
                "name": {"type": "string", "example": "Ana"},
                "role": {"type": "string", "example": "customer"}
            }
        },
        "user.RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "ana@example.com"},
                "password": {"type": "string", "example": "s3cret-pass"},
                "name": {"type": "string", "example": "Ana"}
            }
        },
        "user.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "ana@example.com"},
                "password": {"type": "string", "example": "s3cret-pass"}
            }
        },
        "user.CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "staff@example.com"},
                "password": {"type": "string", "example": "s3cret-pass"},
                "name": {"type": "string", "example": "Luis"},
                "role": {"type": "string", "example": "employee"}
            }
        },
        "cart.AddItemRequest": {
            "type": "object",
            "properties": {
                "variantId": {"type": "integer", "example": 1},
                "quantity": {"type": "integer", "example": 2}
            }
        },
        "cart.UpdateItemRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer", "example": 3}
            }
        },
        "cart.Line": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "cart_id": {"type": "integer"},
                "product_variant_id": {"type": "integer"},
                "quantity": {"type": "integer"},
                "variant": {"type": "object"}
            }
        },
        "cart.View": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/cart.Line"}},
                "total": {"type": "string", "example": "1598.00"}
            }
        },
        "order.CreateOrderRequest": {
            "type": "object",
            "properties": {
                "paymentProvider": {"type": "string", "enum": ["upi_mock", "razorpay_mock", "stripe_mock", "cod"], "example": "upi_mock"}
            }
        },
        "order.CancelOrderRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string", "example": "Changed my mind"}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "status": {"type": "string", "enum": ["pending", "paid", "processing", "shipped", "delivered", "cancelled"]},
                "total_amount": {"type": "string", "example": "1598.00"},
                "payment_provider": {"type": "string"},
                "tracking_number": {"type": "string"},
                "cancellation_reason": {"type": "string"},
                "refund_status": {"type": "string", "enum": ["none", "processing"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "items": {"type": "array", "items": {"type": "object"}},
                "payment": {"type": "object"}
            }
        },
        "order.ListResponse": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Guest and member carts, checkout with mock payments, order lifecycle and staff management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
