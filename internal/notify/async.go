package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// AsyncPublisher dispatches order notifications on a background goroutine
// when no event broker is configured. Requests never wait for delivery.
type AsyncPublisher struct {
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewAsyncPublisher(d *Dispatcher, timeout time.Duration, logger *slog.Logger) *AsyncPublisher {
	return &AsyncPublisher{dispatcher: d, timeout: timeout, logger: logger}
}

func (p *AsyncPublisher) PublishOrderPlaced(ctx context.Context, evt domain.OrderPlacedEvent) error {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.dispatcher.OrderPlaced(ctx, evt); err != nil {
			p.logger.Error("order notifications incomplete", "error", err, "order_id", evt.OrderID)
		}
	}()
	return nil
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (p *AsyncPublisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
