package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/metrics"
	"github.com/rl1809/storefront/internal/port"
)

const publishTimeout = 5 * time.Second

// Pool forwards committed orders from the service queue to the publisher.
type Pool struct {
	queue     <-chan domain.Order
	publisher port.EventPublisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
}

func NewPool(queue <-chan domain.Order, publisher port.EventPublisher, logger *zap.Logger, m *metrics.Metrics) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, publisher: publisher, logger: logger, metrics: m}
}

// Start launches n workers. They exit once the queue is closed and drained.
func (p *Pool) Start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(id)
		}(i)
	}
	p.logger.Info("workers_started", zap.Int("count", n))
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) workerLoop(id int) {
	logger := p.logger.With(zap.Int("worker", id))
	for order := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.publisher.PublishOrderPlaced(ctx, order)
		cancel()

		p.metrics.EventPublished(err)
		if err != nil {
			// the order is committed; only the notification is lost
			logger.Error("order_event_publish_failed", zap.Int64("ord_no", order.OrdNo), zap.Error(err))
			continue
		}
		logger.Debug("order_event_published", zap.Int64("ord_no", order.OrdNo))
	}
}
