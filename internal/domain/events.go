package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted once an order has been committed. It carries
// everything the notification templates need so consumers never read the
// stores.
type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	City          string          `json:"city"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []LineItem      `json:"items"`
	PlacedAt      time.Time       `json:"placed_at"`
}

func NewOrderPlacedEvent(order *Order, buyer *User) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:       order.ID,
		UserID:        buyer.ID,
		Username:      buyer.Username,
		Email:         order.Email,
		City:          order.City,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		Items:         order.Items,
		PlacedAt:      order.CreatedAt,
	}
}
