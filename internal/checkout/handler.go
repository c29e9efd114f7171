package checkout

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/web"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleCheckout places an order for the session's user. Admins may place
// orders on behalf of another user by naming them in userId.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		web.WriteError(w, h.logger, http.StatusUnauthorized, "please log in")
		return
	}

	var req Request
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected checkout")
		return
	}

	switch {
	case req.UserID == "":
		req.UserID = claims.ID
	case req.UserID != claims.ID && !claims.IsAdmin:
		h.logger.Warn("checkout for another user denied", "user_id", req.UserID, "requested_by", claims.ID)
		web.WriteError(w, h.logger, http.StatusForbidden, "you can only check out for yourself")
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), req)
	if err != nil {
		web.Fail(w, h.logger, err, "checkout failed", "user_id", req.UserID)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusCreated, order)
}
