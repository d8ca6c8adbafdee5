// Command storefront serves the shop API: catalog, carts, checkout and
// order management.
//
// @title          Storefront API
// @version        1.0
// @description    Guest and member carts, checkout with mock payments, order lifecycle and staff management.
// @BasePath       /
package main

func main() {
	Execute()
}
