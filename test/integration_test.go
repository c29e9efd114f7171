//go:build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/users"
)

const (
	seedShirt = "seed-tshirt"
	seedMug   = "seed-mug"
)

type repos struct {
	catalog  *catalog.Repository
	users    *users.Repository
	orders   *orders.Repository
	checkout *checkout.Service
}

func setup(ctx context.Context, t *testing.T, pub checkout.Publisher) *repos {
	t.Helper()

	pg := SetupPostgres(ctx, t)
	t.Cleanup(pg.Cleanup)
	db := OpenDB(ctx, t, pg.ConnStr)

	r := &repos{
		catalog: catalog.NewRepository(db),
		users:   users.NewRepository(db),
		orders:  orders.NewRepository(db),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.checkout = checkout.NewService(checkout.NewPostgresStore(db, r.catalog, r.users), pub, nil, logger)
	return r
}

func createBuyer(ctx context.Context, t *testing.T, r *repos, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Phone: "555"}
	if err := r.users.Create(ctx, u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func checkoutRequest(userID string, items ...checkout.Item) checkout.Request {
	return checkout.Request{
		UserID:          userID,
		Items:           items,
		ShippingAddress: "1 Main St",
		Email:           "buyer@example.com",
		City:            "Lisbon",
		PostalCode:      "1000-001",
		PaymentMethod:   "card",
	}
}

func quantity(ctx context.Context, t *testing.T, r *repos, id string) int {
	t.Helper()
	p, err := r.catalog.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("failed to get product %s: %v", id, err)
	}
	return p.Quantity
}

func TestCheckoutCommitsOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	buyer := createBuyer(ctx, t, r, "alice")

	order, err := r.checkout.PlaceOrder(ctx, checkoutRequest(buyer.ID,
		checkout.Item{ProductID: seedShirt, Quantity: 2},
		checkout.Item{ProductID: seedMug, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.RequireFromString("27.50")) {
		t.Errorf("expected total 27.50, got %s", order.TotalAmount)
	}
	if got := quantity(ctx, t, r, seedShirt); got != 98 {
		t.Errorf("expected shirt stock 98, got %d", got)
	}
	if got := quantity(ctx, t, r, seedMug); got != 49 {
		t.Errorf("expected mug stock 49, got %d", got)
	}

	stored, err := r.users.GetByID(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to reload buyer: %v", err)
	}
	if len(stored.OrderHistory) != 1 || stored.OrderHistory[0] != order.ID {
		t.Errorf("expected order history [%s], got %v", order.ID, stored.OrderHistory)
	}

	history, err := r.orders.ListForUser(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to list user orders: %v", err)
	}
	if len(history) != 1 || len(history[0].Items) != 2 {
		t.Fatalf("expected one order with two items, got %+v", history)
	}
	if history[0].Items[0].Name != "Plain T-Shirt" || history[0].OrderStatus != domain.OrderStatusPending {
		t.Errorf("unexpected stored order: %+v", history[0])
	}
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	buyer := createBuyer(ctx, t, r, "bob")

	_, err := r.checkout.PlaceOrder(ctx, checkoutRequest(buyer.ID,
		checkout.Item{ProductID: seedShirt, Quantity: 3},
		checkout.Item{ProductID: seedMug, Quantity: 51},
	))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := quantity(ctx, t, r, seedShirt); got != 100 {
		t.Errorf("expected shirt stock restored to 100, got %d", got)
	}
	all, err := r.orders.List(ctx)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no orders, got %d", len(all))
	}
	stored, err := r.users.GetByID(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to reload buyer: %v", err)
	}
	if len(stored.OrderHistory) != 0 {
		t.Errorf("expected empty order history, got %v", stored.OrderHistory)
	}
}

func TestCheckoutUnknownProductPersistsNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	buyer := createBuyer(ctx, t, r, "carol")

	_, err := r.checkout.PlaceOrder(ctx, checkoutRequest(buyer.ID,
		checkout.Item{ProductID: seedShirt, Quantity: 1},
		checkout.Item{ProductID: "missing", Quantity: 1},
	))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := quantity(ctx, t, r, seedShirt); got != 100 {
		t.Errorf("expected shirt stock 100, got %d", got)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)

	product := &domain.Product{Name: "Limited Print", Description: "Signed", Price: decimal.NewFromInt(50), Quantity: 5, Category: "Art"}
	if err := r.catalog.CreateProduct(ctx, product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	const buyers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	placed, rejected := 0, 0
	for i := range buyers {
		buyer := createBuyer(ctx, t, r, fmt.Sprintf("buyer%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.checkout.PlaceOrder(ctx, checkoutRequest(buyer.ID, checkout.Item{ProductID: product.ID, Quantity: 2}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if placed != 2 || rejected != buyers-2 {
		t.Errorf("expected 2 placed and %d rejected, got %d and %d", buyers-2, placed, rejected)
	}
	if got := quantity(ctx, t, r, product.ID); got != 1 {
		t.Errorf("expected remaining stock 1, got %d", got)
	}
}

func TestSearchIsCaseInsensitiveLiteral(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)

	for _, q := range []string{"shirt", "SHIRT", "shIRts"} {
		products, err := r.catalog.Search(ctx, q)
		if err != nil {
			t.Fatalf("search %q failed: %v", q, err)
		}
		if len(products) != 1 || products[0].ID != seedShirt {
			t.Errorf("search %q: expected [%s], got %+v", q, seedShirt, products)
		}
	}

	products, err := r.catalog.Search(ctx, "%")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("expected wildcard to match literally, got %d products", len(products))
	}
}

func TestEditProductLinksOfferOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)

	now := time.Now().UTC()
	offer := &domain.Offer{Title: "Summer", DiscountPercentage: decimal.NewFromInt(15), StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	if err := r.catalog.CreateOffer(ctx, offer); err != nil {
		t.Fatalf("failed to create offer: %v", err)
	}

	for range 2 {
		if _, err := r.catalog.UpdateProduct(ctx, seedMug, domain.ProductPatch{OfferID: &offer.ID}); err != nil {
			t.Fatalf("failed to edit product: %v", err)
		}
	}
	if _, err := r.catalog.UpdateProduct(ctx, seedShirt, domain.ProductPatch{OfferID: &offer.ID}); err != nil {
		t.Fatalf("failed to edit product: %v", err)
	}

	got, err := r.catalog.GetOffer(ctx, offer.ID)
	if err != nil {
		t.Fatalf("failed to reload offer: %v", err)
	}
	if len(got.ApplicableProducts) != 2 || got.ApplicableProducts[0] != seedMug || got.ApplicableProducts[1] != seedShirt {
		t.Errorf("expected [%s %s], got %v", seedMug, seedShirt, got.ApplicableProducts)
	}

	valid, err := r.catalog.ListValidOffers(ctx, now)
	if err != nil {
		t.Fatalf("failed to list offers: %v", err)
	}
	if len(valid) != 1 {
		t.Errorf("expected 1 valid offer, got %d", len(valid))
	}

	missing := "no-such-offer"
	p, err := r.catalog.UpdateProduct(ctx, seedShirt, domain.ProductPatch{OfferID: &missing})
	if err != nil {
		t.Fatalf("editing with unknown offer should still succeed: %v", err)
	}
	if p.OfferID == nil || *p.OfferID != missing {
		t.Errorf("expected offer reference %s, got %v", missing, p.OfferID)
	}
}

func TestToggleMutators(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	buyer := createBuyer(ctx, t, r, "dave")

	for i, want := range []bool{false, true} {
		p, err := r.catalog.ToggleFeatured(ctx, seedShirt)
		if err != nil {
			t.Fatalf("toggle %d failed: %v", i, err)
		}
		if p.IsFeatured != want {
			t.Errorf("toggle %d: expected featured=%v, got %v", i, want, p.IsFeatured)
		}

		u, err := r.users.ToggleAdmin(ctx, buyer.ID)
		if err != nil {
			t.Fatalf("role toggle %d failed: %v", i, err)
		}
		if u.IsAdmin == want {
			t.Errorf("role toggle %d: expected admin=%v, got %v", i, !want, u.IsAdmin)
		}
	}

	if _, err := r.catalog.ToggleFeatured(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUniqueUsersAndSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	createBuyer(ctx, t, r, "erin")

	dup := &domain.User{Username: "erin", Email: "other@example.com", PasswordHash: "x", Phone: "1"}
	if err := r.users.Create(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict for duplicate username, got %v", err)
	}

	if _, err := r.users.Subscribe(ctx, "news@example.com"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := r.users.Subscribe(ctx, "news@example.com"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict for duplicate subscriber, got %v", err)
	}
}

func TestPasswordResetTokens(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	r := setup(ctx, t, nil)
	buyer := createBuyer(ctx, t, r, "frank")
	now := time.Now().UTC()

	live := domain.PasswordReset{TokenHash: "live", UserID: buyer.ID, ExpiresAt: now.Add(domain.PasswordResetTTL)}
	stale := domain.PasswordReset{TokenHash: "stale", UserID: buyer.ID, ExpiresAt: now.Add(-time.Minute)}
	for _, reset := range []domain.PasswordReset{live, stale} {
		if err := r.users.CreateReset(ctx, reset); err != nil {
			t.Fatalf("failed to store reset: %v", err)
		}
	}

	if err := r.users.ResetPassword(ctx, "stale", "new-hash", now); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
	if err := r.users.ResetPassword(ctx, "live", "new-hash", now); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := r.users.ResetPassword(ctx, "live", "again", now); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected used token to be rejected, got %v", err)
	}

	u, err := r.users.GetByID(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if u.PasswordHash != "new-hash" {
		t.Errorf("expected password hash to be updated, got %s", u.PasswordHash)
	}

	if err := r.users.CreateReset(ctx, domain.PasswordReset{TokenHash: "old", UserID: buyer.ID, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("failed to store reset: %v", err)
	}
	n, err := r.users.PurgeExpiredResets(ctx, now)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged token, got %d", n)
	}
}

type captureSender struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (s *captureSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestOrderPlacedEventReachesWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	const topic = "order.placed.test"
	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	r := setup(ctx, t, producer)
	buyer := createBuyer(ctx, t, r, "grace")

	order, err := r.checkout.PlaceOrder(ctx, checkoutRequest(buyer.ID, checkout.Item{ProductID: seedMug, Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	sender := &captureSender{}
	dispatcher := notify.NewDispatcher(sender, "admin@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	consumer := messaging.NewConsumer(brokers, topic, "integration-worker", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Consume(consumeCtx, dispatcher.Handle) }()

	deadline := time.After(90 * time.Second)
	for sender.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 notifications, got %d", sender.count())
		case <-time.After(250 * time.Millisecond):
		}
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.msgs[0].Subject != "Order Confirmation: "+order.ID {
		t.Errorf("unexpected buyer subject: %s", sender.msgs[0].Subject)
	}
	if sender.msgs[1].To != "admin@example.com" {
		t.Errorf("expected admin alert, got message to %s", sender.msgs[1].To)
	}
}
