package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/web"
)

type Store interface {
	List(ctx context.Context) ([]domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.List(r.Context())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	web.WriteJSON(w, h.logger, http.StatusOK, orders)
}

// HandleUserOrders serves a user's order history to that user or an admin.
func (h *Handler) HandleUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		web.WriteError(w, h.logger, http.StatusUnauthorized, "please log in")
		return
	}
	if claims.ID != userID && !claims.IsAdmin {
		h.logger.Warn("order history denied", "user_id", userID, "requested_by", claims.ID)
		web.WriteError(w, h.logger, http.StatusForbidden, "you can only view your own orders")
		return
	}

	orders, err := h.store.ListForUser(r.Context(), userID)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list user orders", "user_id", userID)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var update domain.StatusUpdate
	if err := web.DecodeJSON(r, &update); err != nil {
		web.Fail(w, h.logger, err, "rejected order edit", "order_id", orderID)
		return
	}

	switch {
	case update.PaymentStatus == nil && update.OrderStatus == nil:
		web.WriteError(w, h.logger, http.StatusBadRequest, "paymentStatus or orderStatus is required")
		return
	case update.PaymentStatus != nil && !update.PaymentStatus.Valid():
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid payment status")
		return
	case update.OrderStatus != nil && !update.OrderStatus.Valid():
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid order status")
		return
	}

	order, err := h.store.UpdateStatus(r.Context(), orderID, update)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to update order status", "order_id", orderID)
		return
	}

	h.logger.Info("order status updated", "order_id", orderID,
		"payment_status", order.PaymentStatus, "order_status", order.OrderStatus)
	web.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if err := h.store.Delete(r.Context(), orderID); err != nil {
		web.Fail(w, h.logger, err, "failed to delete order", "order_id", orderID)
		return
	}

	h.logger.Info("order deleted", "order_id", orderID)
	w.WriteHeader(http.StatusNoContent)
}
