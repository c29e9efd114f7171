package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/users"
)

func TestAdminRoutesRequireAdminSession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := auth.NewIssuer("test-secret", time.Hour, false)
	h := handlers{
		catalog:  catalog.NewHandler(nil, nil, logger),
		checkout: checkout.NewHandler(nil, logger),
		orders:   orders.NewHandler(nil, logger),
		users:    users.NewHandler(nil, issuer, nil, "", logger),
		mw:       auth.NewMiddleware(issuer, logger),
	}
	mux := http.NewServeMux()
	h.register(mux)

	buyerToken, err := issuer.Issue(&domain.User{ID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	adminRoutes := []struct{ method, path string }{
		{http.MethodPost, "/products/addproduct"},
		{http.MethodPatch, "/products/editproduct/p1"},
		{http.MethodPatch, "/products/togglefeatured/p1"},
		{http.MethodDelete, "/products/deleteproduct/p1"},
		{http.MethodPost, "/products/addoffer"},
		{http.MethodPatch, "/products/editoffer/o1"},
		{http.MethodDelete, "/products/deleteoffer/o1"},
		{http.MethodGet, "/products/orders"},
		{http.MethodPatch, "/products/editorder/o1"},
		{http.MethodDelete, "/products/deleteorder/o1"},
		{http.MethodGet, "/users"},
		{http.MethodPatch, "/users/u1/changerole"},
		{http.MethodPost, "/users/sendnewsletter"},
	}

	for _, rt := range adminRoutes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 without session, got %d", rec.Code)
			}

			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer "+buyerToken)
			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Errorf("expected status 403 for non-admin, got %d", rec.Code)
			}
		})
	}

	sessionRoutes := []struct{ method, path string }{
		{http.MethodPost, "/products/checkout"},
		{http.MethodGet, "/users/u1/orders"},
	}
	for _, rt := range sessionRoutes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 without session, got %d", rec.Code)
			}
		})
	}
}
