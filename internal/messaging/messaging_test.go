package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducer_PublishOrderPlaced(t *testing.T) {
	t.Run("keys by order id and tags event type", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewProducerWithWriter(w, "order.placed")

		event := domain.OrderPlacedEvent{
			OrderID:     "order-1",
			UserID:      "user-1",
			TotalAmount: decimal.NewFromInt(20),
			PlacedAt:    time.Now().UTC(),
		}
		if err := p.PublishOrderPlaced(context.Background(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(w.msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(w.msgs))
		}
		msg := w.msgs[0]
		if string(msg.Key) != "order-1" {
			t.Errorf("expected key order-1, got %s", msg.Key)
		}
		if got := eventType(&msg); got != OrderPlacedType {
			t.Errorf("expected event type %s, got %s", OrderPlacedType, got)
		}

		var decoded domain.OrderPlacedEvent
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if decoded.OrderID != "order-1" || !decoded.TotalAmount.Equal(decimal.NewFromInt(20)) {
			t.Errorf("unexpected payload: %+v", decoded)
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		writeErr := errors.New("broker down")
		p := NewProducerWithWriter(&fakeWriter{err: writeErr}, "order.placed")

		err := p.PublishOrderPlaced(context.Background(), domain.OrderPlacedEvent{OrderID: "order-1"})
		if !errors.Is(err, writeErr) {
			t.Errorf("expected wrapped writer error, got %v", err)
		}
	})
}

func TestConsumer_Consume(t *testing.T) {
	newMsg := func(key, typ string) kafka.Message {
		msg := kafka.Message{Key: []byte(key), Value: []byte(`{"order_id":"` + key + `"}`)}
		headerCarrier{msg: &msg}.Set(EventTypeHeader, typ)
		return msg
	}

	t.Run("commits each handled message", func(t *testing.T) {
		r := &fakeReader{queue: []kafka.Message{newMsg("a", OrderPlacedType), newMsg("b", OrderPlacedType)}}
		c := NewConsumerWithReader(r, "order.placed", "test")

		var seen []string
		err := c.Consume(context.Background(), func(_ context.Context, typ string, payload []byte) error {
			if typ != OrderPlacedType {
				t.Errorf("expected event type %s, got %s", OrderPlacedType, typ)
			}
			seen = append(seen, string(payload))
			return nil
		})

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled once queue drains, got %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("expected 2 handled messages, got %d", len(seen))
		}
		if len(r.committed) != 2 {
			t.Errorf("expected 2 commits, got %d", len(r.committed))
		}
	})

	t.Run("stops without committing on handler error", func(t *testing.T) {
		r := &fakeReader{queue: []kafka.Message{newMsg("a", OrderPlacedType)}}
		c := NewConsumerWithReader(r, "order.placed", "test")

		handlerErr := errors.New("boom")
		err := c.Consume(context.Background(), func(context.Context, string, []byte) error {
			return handlerErr
		})

		if !errors.Is(err, handlerErr) {
			t.Errorf("expected handler error, got %v", err)
		}
		if len(r.committed) != 0 {
			t.Errorf("expected no commits, got %d", len(r.committed))
		}
	})
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	c := headerCarrier{msg: &msg}

	c.Set("traceparent", "one")
	c.Set("traceparent", "two")
	c.Set("baggage", "k=v")

	if got := c.Get("traceparent"); got != "two" {
		t.Errorf("expected overwritten value, got %s", got)
	}
	if len(c.Keys()) != 2 {
		t.Errorf("expected 2 keys, got %v", c.Keys())
	}
	if c.Get("missing") != "" {
		t.Error("expected empty value for missing key")
	}
}
