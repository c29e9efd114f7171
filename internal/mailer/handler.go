package mailer

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/web"
)

type Handler struct {
	mailbox *Mailbox
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(mailbox *Mailbox, logger *slog.Logger) *Handler {
	return &Handler{
		mailbox: mailbox,
		logger:  logger,
		now:     time.Now,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg notify.Message
	if err := web.DecodeJSON(r, &msg); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(msg.To) == "" || strings.TrimSpace(msg.Subject) == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "to and subject are required")
		return
	}

	h.mailbox.Deliver(Envelope{Message: msg, ReceivedAt: h.now().UTC()})

	h.logger.Info("email accepted", "to", msg.To, "subject", msg.Subject)
	web.WriteJSON(w, h.logger, http.StatusAccepted, sendResponse{Status: "queued"})
}

func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, h.logger, http.StatusOK, h.mailbox.List(r.URL.Query().Get("to")))
}
