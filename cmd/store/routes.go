package main

import (
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/users"
)

type handlers struct {
	catalog  *catalog.Handler
	checkout *checkout.Handler
	orders   *orders.Handler
	users    *users.Handler
	mw       *auth.Middleware
}

func (h handlers) register(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	admin, session := h.mw.RequireAdmin, h.mw.RequireSession

	route("GET /products", h.catalog.HandleListProducts)
	route("GET /products/featured", h.catalog.HandleFeatured)
	route("GET /products/search", h.catalog.HandleSearch)
	route("GET /products/offers", h.catalog.HandleListOffers)
	route("GET /products/offers/{id}", h.catalog.HandleGetOffer)
	route("GET /products/{id}", h.catalog.HandleGetProduct)
	route("POST /products/addproduct", admin(h.catalog.HandleCreateProduct))
	route("PATCH /products/editproduct/{id}", admin(h.catalog.HandleEditProduct))
	route("PATCH /products/togglefeatured/{id}", admin(h.catalog.HandleToggleFeatured))
	route("DELETE /products/deleteproduct/{id}", admin(h.catalog.HandleDeleteProduct))
	route("POST /products/addoffer", admin(h.catalog.HandleCreateOffer))
	route("PATCH /products/editoffer/{id}", admin(h.catalog.HandleEditOffer))
	route("DELETE /products/deleteoffer/{id}", admin(h.catalog.HandleDeleteOffer))

	route("POST /products/checkout", session(h.checkout.HandleCheckout))
	route("GET /products/orders", admin(h.orders.HandleList))
	route("PATCH /products/editorder/{id}", admin(h.orders.HandleUpdateStatus))
	route("DELETE /products/deleteorder/{id}", admin(h.orders.HandleDelete))

	route("POST /users/register", h.users.HandleRegister)
	route("POST /users/login", h.users.HandleLogin)
	route("GET /users/logout", h.users.HandleLogout)
	route("GET /users", admin(h.users.HandleList))
	route("GET /users/{id}/orders", session(h.orders.HandleUserOrders))
	route("PATCH /users/{id}/changerole", admin(h.users.HandleChangeRole))
	route("POST /users/forgotpassword", h.users.HandleForgotPassword)
	route("POST /users/resetpassword", h.users.HandleResetPassword)
	route("POST /users/newsletter", h.users.HandleSubscribe)
	route("POST /users/sendnewsletter", admin(h.users.HandleBroadcast))
}
