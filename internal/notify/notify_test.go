package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []Message
	failTo string
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if msg.To == s.failTo {
		return errors.New("mailbox unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() domain.OrderPlacedEvent {
	return domain.OrderPlacedEvent{
		OrderID:       "order-42",
		UserID:        "user-1",
		Username:      "ada",
		Email:         "ada@example.com",
		City:          "Lisbon",
		PaymentMethod: "card",
		TotalAmount:   decimal.RequireFromString("27.50"),
		Items: []domain.LineItem{
			{ProductID: "p1", Name: "Mug <large>", Quantity: 2, Price: decimal.RequireFromString("10")},
			{ProductID: "p2", Name: "Spoon", Quantity: 1, Price: decimal.RequireFromString("7.5")},
		},
		PlacedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestDispatcher_OrderPlaced(t *testing.T) {
	t.Run("sends buyer confirmation and admin alert", func(t *testing.T) {
		sender := &recordingSender{}
		d := NewDispatcher(sender, "admin@example.com", testLogger())

		require.NoError(t, d.OrderPlaced(context.Background(), sampleEvent()))

		sent := sender.messages()
		require.Len(t, sent, 2)

		buyer, admin := sent[0], sent[1]
		assert.Equal(t, "ada@example.com", buyer.To)
		assert.Contains(t, buyer.Subject, "order-42")
		assert.Contains(t, buyer.HTML, "27.50")
		assert.Contains(t, buyer.HTML, "Lisbon")
		assert.Contains(t, buyer.HTML, "card")
		assert.Contains(t, buyer.HTML, "Mug &lt;large&gt;")

		assert.Equal(t, "admin@example.com", admin.To)
		for _, want := range []string{"order-42", "ada", "ada@example.com", "27.50", "Lisbon", "card"} {
			assert.Contains(t, admin.Text, want)
		}
	})

	t.Run("still sends admin alert when buyer delivery fails", func(t *testing.T) {
		sender := &recordingSender{failTo: "ada@example.com"}
		d := NewDispatcher(sender, "admin@example.com", testLogger())

		err := d.OrderPlaced(context.Background(), sampleEvent())
		require.Error(t, err)

		sent := sender.messages()
		require.Len(t, sent, 1)
		assert.Equal(t, "admin@example.com", sent[0].To)
	})
}

func TestDispatcher_Handle(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, "admin@example.com", testLogger())

	payload, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), "order.placed", payload))
	assert.Len(t, sender.messages(), 2)

	assert.NoError(t, d.Handle(context.Background(), "order.placed", []byte("not json")))
	assert.NoError(t, d.Handle(context.Background(), "user.registered", payload))
	assert.Len(t, sender.messages(), 2)
}

func TestAsyncPublisher(t *testing.T) {
	sender := &recordingSender{}
	p := NewAsyncPublisher(NewDispatcher(sender, "admin@example.com", testLogger()), time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.PublishOrderPlaced(ctx, sampleEvent()))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, p.Wait(waitCtx))

	assert.Len(t, sender.messages(), 2)
}

func TestMailClient_Send(t *testing.T) {
	t.Run("posts message to mailer", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("expected /send, got %s", r.URL.Path)
			}
			var msg Message
			if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if msg.To != "ada@example.com" {
				t.Errorf("expected recipient ada@example.com, got %s", msg.To)
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		client := NewMailClient(server.URL, server.Client())
		err := client.Send(context.Background(), Message{To: "ada@example.com", Subject: "hi"})
		assert.NoError(t, err)
	})

	t.Run("reports non-success status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewMailClient(server.URL, server.Client())
		err := client.Send(context.Background(), Message{To: "ada@example.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}

func TestNewsletter(t *testing.T) {
	msg := Newsletter("bob@example.com", "Spring sale", "<h1>Sale</h1><p>20% off</p>")
	assert.Equal(t, "Sale20% off", msg.Text)
	assert.True(t, strings.HasPrefix(msg.HTML, "<h1>"))
}

func TestPasswordReset(t *testing.T) {
	user := &domain.User{Username: "ada", Email: "ada@example.com"}
	msg, err := PasswordReset(user, "https://shop.test/reset?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Contains(t, msg.HTML, "https://shop.test/reset?token=abc")
	assert.Contains(t, msg.Text, "10 minutes")
}
