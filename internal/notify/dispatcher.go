package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type Dispatcher struct {
	sender     Sender
	adminEmail string
	logger     *slog.Logger
}

func NewDispatcher(sender Sender, adminEmail string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, adminEmail: adminEmail, logger: logger}
}

// OrderPlaced sends the buyer confirmation and the admin alert.
func (d *Dispatcher) OrderPlaced(ctx context.Context, evt domain.OrderPlacedEvent) error {
	buyer, err := BuyerConfirmation(evt)
	if err != nil {
		return err
	}
	admin, err := AdminAlert(evt, d.adminEmail)
	if err != nil {
		return err
	}

	var errs []error
	for _, msg := range []Message{buyer, admin} {
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error("failed to send notification", "error", err, "order_id", evt.OrderID, "to", msg.To)
			errs = append(errs, err)
			continue
		}
		d.logger.Info("notification sent", "order_id", evt.OrderID, "to", msg.To, "subject", msg.Subject)
	}

	return errors.Join(errs...)
}

// Handle never returns an error; bad events and failed sends are logged and skipped.
func (d *Dispatcher) Handle(ctx context.Context, eventType string, payload []byte) error {
	if eventType != "" && eventType != messaging.OrderPlacedType {
		d.logger.Warn("skipping unknown event", "event_type", eventType)
		return nil
	}

	var evt domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		d.logger.Error("failed to decode order placed event", "error", err)
		return nil
	}

	d.logger.Info("processing order placed event", "order_id", evt.OrderID, "user_id", evt.UserID)

	if err := d.OrderPlaced(ctx, evt); err != nil {
		d.logger.Error("order notifications incomplete", "error", err, "order_id", evt.OrderID)
	}
	return nil
}
