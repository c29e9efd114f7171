package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const publishTimeout = 5 * time.Second

var tracer = otel.Tracer("storefront/checkout")

type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	PlaceOrder(ctx context.Context, order *domain.Order) error
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt domain.OrderPlacedEvent) error
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Request struct {
	UserID          string `json:"userId"`
	Items           []Item `json:"items"`
	ShippingAddress string `json:"shippingAddress"`
	Email           string `json:"email"`
	City            string `json:"city"`
	PostalCode      string `json:"postalCode"`
	PaymentMethod   string `json:"paymentMethod"`
}

func (r *Request) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrValidation)
	}
	for _, item := range r.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: every item needs a productId", domain.ErrValidation)
		}
		if err := domain.ValidateQuantity("quantity for product "+item.ProductID, item.Quantity, 1); err != nil {
			return err
		}
	}

	required := []struct{ name, value string }{
		{"userId", r.UserID},
		{"shippingAddress", r.ShippingAddress},
		{"email", r.Email},
		{"city", r.City},
		{"postalCode", r.PostalCode},
		{"paymentMethod", r.PaymentMethod},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrValidation, f.name)
		}
	}
	return nil
}

type Service struct {
	store          Store
	publisher      Publisher
	metrics        *telemetry.CheckoutMetrics
	logger         *slog.Logger
	now            func() time.Time
	publishTimeout time.Duration
}

func NewService(store Store, publisher Publisher, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) *Service {
	return &Service{
		store:          store,
		publisher:      publisher,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
		publishTimeout: publishTimeout,
	}
}

// PlaceOrder commits the order and then announces it. Re-submitting the same
// request places a second order.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*domain.Order, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "checkout.place_order",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int("checkout.items", len(req.Items)),
		),
	)
	defer span.End()

	order, buyer, err := s.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.Rejected(ctx, rejectReason(err), started)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	s.metrics.Placed(ctx, started)

	if s.publisher != nil {
		// The order is committed; the event must outlive the request.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		defer cancel()
		if err := s.publisher.PublishOrderPlaced(pubCtx, domain.NewOrderPlacedEvent(order, buyer)); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, req Request) (*domain.Order, *domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	buyer, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	total := decimal.Zero
	for _, it := range req.Items {
		product, err := s.store.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, nil, err
		}
		line := domain.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  it.Quantity,
			Price:     product.Price,
		}
		total = total.Add(line.Subtotal())
		items = append(items, line)
	}

	if err := domain.ValidateAmount("order total", total); err != nil {
		return nil, nil, err
	}

	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          buyer.ID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
		Email:           req.Email,
		City:            req.City,
		PostalCode:      req.PostalCode,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		OrderStatus:     domain.OrderStatusPending,
		CreatedAt:       s.now().UTC(),
	}
	order.UpdatedAt = order.CreatedAt

	if err := s.store.PlaceOrder(ctx, order); err != nil {
		return nil, nil, err
	}

	s.logger.Info("order placed", "order_id", order.ID, "user_id", buyer.ID,
		"items", len(items), "total", total.StringFixed(2))
	return order, buyer, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "error"
	}
}
